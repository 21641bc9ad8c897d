/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package config loads tweetfeed settings from YAML, .env files, and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/crrow/tweetfeed-go/pkg/logging"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

// Host loop kinds accepted in Config.Host.
const (
	HostLoop      = "loop"
	HostFd        = "fd"
	HostEventLoop = "eventloop"
)

// Config is the full set of settings.
type Config struct {
	Log    LogConfig              `yaml:"log"`
	Stream tweetfeed.StreamConfig `yaml:"stream"`
	Server ServerConfig           `yaml:"server"`
	Host   string                 `yaml:"host"`
	Queue  QueueConfig            `yaml:"queue"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig configures the stub stream server.
type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	KeepAlive time.Duration `yaml:"keep_alive"`
	// Statuses the server publishes on an interval, for demos.
	Statuses []string      `yaml:"statuses"`
	Interval time.Duration `yaml:"interval"`
}

// QueueConfig bounds the feed context's queues. Zero means unbounded.
type QueueConfig struct {
	Control int `yaml:"control"`
	Events  int `yaml:"events"`
}

// Default returns the settings used when nothing else is given.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info"},
		Stream: tweetfeed.StreamConfig{Endpoint: "127.0.0.1:8089"},
		Server: ServerConfig{Addr: "127.0.0.1:8089", KeepAlive: 30 * time.Second, Interval: time.Second},
		Host:   HostLoop,
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads each existing file into the process environment without
// overriding variables that are already set.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from TWEETFEED_* variables found by lookup,
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("TWEETFEED_LOG_LEVEL", &c.Log.Level)
	str("TWEETFEED_ENDPOINT", &c.Stream.Endpoint)
	str("TWEETFEED_CONSUMER_KEY", &c.Stream.Credentials.ConsumerKey)
	str("TWEETFEED_CONSUMER_SECRET", &c.Stream.Credentials.ConsumerSecret)
	str("TWEETFEED_TOKEN", &c.Stream.Credentials.Token)
	str("TWEETFEED_TOKEN_SECRET", &c.Stream.Credentials.TokenSecret)
	str("TWEETFEED_SERVER_ADDR", &c.Server.Addr)
	str("TWEETFEED_HOST", &c.Host)

	if v, ok := lookup("TWEETFEED_TRACK"); ok {
		c.Stream.Track = splitList(v)
	}
	if v, ok := lookup("TWEETFEED_RECONNECT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: TWEETFEED_RECONNECT: %w", err)
		}
		c.Stream.Reconnect = b
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Stream.Endpoint == "" {
		errs = append(errs, errors.New("config: stream.endpoint is required"))
	}
	switch c.Host {
	case HostLoop, HostFd, HostEventLoop:
	default:
		errs = append(errs, fmt.Errorf("config: unknown host %q (want %s, %s or %s)", c.Host, HostLoop, HostFd, HostEventLoop))
	}
	if c.Queue.Control < 0 || c.Queue.Events < 0 {
		errs = append(errs, errors.New("config: queue capacities must not be negative"))
	}
	if c.Server.KeepAlive < 0 || c.Server.Interval < 0 {
		errs = append(errs, errors.New("config: server durations must not be negative"))
	}
	return errors.Join(errs...)
}

// FeedOptions translates queue settings into tweetfeed options.
func (c *Config) FeedOptions() []tweetfeed.Option {
	return []tweetfeed.Option{
		tweetfeed.WithControlCapacity(c.Queue.Control),
		tweetfeed.WithEventCapacity(c.Queue.Events),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
