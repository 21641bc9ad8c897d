/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the logger type every package accepts.
type Logger = logiface.Logger[logiface.Event]

var levels = map[string]logiface.Level{
	"off":       logiface.LevelDisabled,
	"emerg":     logiface.LevelEmergency,
	"alert":     logiface.LevelAlert,
	"crit":      logiface.LevelCritical,
	"err":       logiface.LevelError,
	"error":     logiface.LevelError,
	"warning":   logiface.LevelWarning,
	"warn":      logiface.LevelWarning,
	"notice":    logiface.LevelNotice,
	"info":      logiface.LevelInformational,
	"debug":     logiface.LevelDebug,
	"trace":     logiface.LevelTrace,
	"":          logiface.LevelInformational,
	"default":   logiface.LevelInformational,
	"emergency": logiface.LevelEmergency,
	"critical":  logiface.LevelCritical,
}

// ParseLevel maps a level name to a logiface.Level. An empty name means
// info.
func ParseLevel(name string) (logiface.Level, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("logging: unknown level %q", name)
}

// New returns a JSON logger writing to w at the named level.
func New(w io.Writer, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(lvl),
	).Logger(), nil
}
