/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Command tweetfeed-xev hosts a feed context on a libxev loop. Set
// LIBXEV_PATH if the shared library is not on the default search path.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crrow/tweetfeed-go/pkg/config"
	"github.com/crrow/tweetfeed-go/pkg/logging"
	"github.com/crrow/tweetfeed-go/pkg/transport"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
	"github.com/crrow/tweetfeed-go/pkg/xev"
	"github.com/crrow/tweetfeed-go/pkg/xevsignal"
)

const pollInterval = 50 * time.Millisecond

var (
	configPath string
	stub       bool
	limit      int
	duration   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "tweetfeed-xev",
	Short:         "Stream tweets on a libxev event loop",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := logging.New(os.Stderr, cfg.Log.Level)
		if err != nil {
			return err
		}
		return run(cmd.OutOrStdout(), cfg, logger)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "tweetfeed.yaml", "YAML config file (ignored if missing)")
	rootCmd.Flags().BoolVar(&stub, "stub", false, "Replay a canned tweet instead of connecting")
	rootCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Exit after this many tweets (0 streams until interrupted)")
	rootCmd.Flags().DurationVar(&duration, "duration", 0, "Exit after this long (0 runs until interrupted)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, cfg *config.Config, logger *logging.Logger) error {
	if err := xev.Available(); err != nil {
		return err
	}
	loop, err := xev.NewLoop()
	if err != nil {
		return err
	}
	defer loop.Close()

	var driver tweetfeed.Driver = transport.NewNetDriver(transport.WithLogger(logger))
	if stub {
		driver = transport.NewStubDriver()
	}
	signals := xevsignal.NewFactory(loop)
	fc, err := tweetfeed.New(signals, append(cfg.FeedOptions(),
		tweetfeed.WithLogger(logger),
		tweetfeed.WithDriver(driver),
	)...)
	if err != nil {
		return err
	}

	var (
		done     atomic.Bool
		seen     int
		closeErr error
	)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		done.Store(true)
	}()

	fc.OnStreamClosed(func(h tweetfeed.Handle, err error) {
		logger.Info().Uint64("handle", uint64(h)).Err(err).Log("stream closed")
		closeErr = err
		done.Store(true)
	})
	h, err := fc.StreamCreate(cfg.Stream)
	if err != nil {
		_ = fc.Close()
		return err
	}
	err = fc.StreamStart(h, func(_ tweetfeed.Handle, t tweetfeed.Tweet) {
		fmt.Fprintf(out, "@%s: %s\n", t.UserName, t.Body)
		seen++
		if limit > 0 && seen >= limit {
			done.Store(true)
		}
	})
	if err != nil {
		_ = fc.Close()
		return err
	}

	// The watchdog shuts the context down from the loop thread; once the
	// wakeup watcher disarms and the watchdog stops, Run returns.
	watchdog, err := xev.NewTimer()
	if err != nil {
		_ = fc.Close()
		return err
	}
	defer watchdog.Close()
	start := loop.Now()
	err = watchdog.RunFunc(loop, pollInterval, func(*xev.Timer, error) xev.Action {
		if duration > 0 && loop.Now()-start >= duration {
			done.Store(true)
		}
		if !done.Load() {
			return xev.Continue
		}
		if err := fc.Close(); err != nil {
			logger.Warning().Err(err).Log("close feed context")
		}
		return xev.Stop
	})
	if err != nil {
		_ = fc.Close()
		return err
	}

	if err := loop.Run(); err != nil {
		_ = fc.Close()
		return err
	}
	signals.Release()
	logger.Debug().Uint64("wakeups", signals.Wakeups()).Int("tweets", seen).Log("loop finished")
	return closeErr
}
