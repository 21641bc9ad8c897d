/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]logiface.Level{
		"":        logiface.LevelInformational,
		"DEBUG":   logiface.LevelDebug,
		" warn ":  logiface.LevelWarning,
		"error":   logiface.LevelError,
		"off":     logiface.LevelDisabled,
		"trace":   logiface.LevelTrace,
		"notice":  logiface.LevelNotice,
		"warning": logiface.LevelWarning,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info")
	require.NoError(t, err)

	logger.Debug().Str("hidden", "x").Log("filtered")
	logger.Info().Str("stream", "golang").Int("handle", 3).Log("stream started")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "stream started", entry["msg"])
	assert.Equal(t, "golang", entry["stream"])
	assert.Equal(t, "info", entry["lvl"])
	assert.Contains(t, entry, "handle")

	_, err = New(&buf, "nope")
	assert.Error(t, err)
}
