/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Command tweetfeed runs a stub stream server and streams tweets from it
// through a feed context hosted on different kinds of event loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crrow/tweetfeed-go/pkg/config"
	"github.com/crrow/tweetfeed-go/pkg/logging"
	"github.com/crrow/tweetfeed-go/pkg/transport"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

var (
	configPath string
	envFiles   []string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tweetfeed",
	Short:         "Stream tweets into an event loop",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := loaded.ApplyEnv(os.LookupEnv); err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		l, err := logging.New(os.Stderr, loaded.Log.Level)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tweetfeed.yaml", "YAML config file (ignored if missing)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newDriver returns the stub driver when stub is set, otherwise a TCP
// driver for cfg.Stream.Endpoint.
func newDriver(stub bool) tweetfeed.Driver {
	if stub {
		return transport.NewStubDriver()
	}
	return transport.NewNetDriver(transport.WithLogger(logger))
}

// feedOptions are the options every subcommand passes to tweetfeed.New.
func feedOptions(stub bool) []tweetfeed.Option {
	return append(cfg.FeedOptions(),
		tweetfeed.WithLogger(logger),
		tweetfeed.WithDriver(newDriver(stub)),
	)
}
