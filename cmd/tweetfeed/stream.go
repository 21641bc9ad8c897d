/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/spf13/cobra"

	"github.com/crrow/tweetfeed-go/pkg/config"
	"github.com/crrow/tweetfeed-go/pkg/evloopsignal"
	"github.com/crrow/tweetfeed-go/pkg/hostloop"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

var (
	streamStub  bool
	streamLimit int
	streamHost  string
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Print tweets from the configured endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		host := cfg.Host
		if streamHost != "" {
			host = streamHost
		}
		switch host {
		case config.HostLoop:
			return streamOnTaskLoop(cmd.OutOrStdout())
		case config.HostFd:
			return streamOnFd(cmd.OutOrStdout())
		case config.HostEventLoop:
			return streamOnEventLoop(cmd.Context(), cmd.OutOrStdout())
		default:
			return fmt.Errorf("unknown host %q", host)
		}
	},
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().BoolVar(&streamStub, "stub", false, "Replay a canned tweet instead of connecting")
	streamCmd.Flags().IntVarP(&streamLimit, "limit", "n", 0, "Exit after this many tweets (0 streams until interrupted)")
	streamCmd.Flags().StringVar(&streamHost, "host", "", "Host loop: loop, fd or eventloop (default from config)")
}

// printer writes tweets and decides when the stream is finished. Its
// methods run on the host loop goroutine.
type printer struct {
	out   io.Writer
	limit int
	seen  int
	err   error

	once sync.Once
	done chan struct{}
}

func newPrinter(out io.Writer, limit int) *printer {
	return &printer{out: out, limit: limit, done: make(chan struct{})}
}

func (p *printer) finish() {
	p.once.Do(func() { close(p.done) })
}

func (p *printer) onTweet(_ tweetfeed.Handle, t tweetfeed.Tweet) {
	fmt.Fprintf(p.out, "@%s: %s\n", t.UserName, t.Body)
	p.seen++
	if p.limit > 0 && p.seen >= p.limit {
		p.finish()
	}
}

func (p *printer) onClosed(h tweetfeed.Handle, err error) {
	logger.Info().Uint64("handle", uint64(h)).Err(err).Log("stream closed")
	p.err = err
	p.finish()
}

// interruptOn calls fn on SIGINT or SIGTERM until stop is called.
func interruptOn(fn func()) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fn()
		case <-quit:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(quit)
	}
}

// startStream creates and starts the configured stream on fc.
func startStream(fc *tweetfeed.FeedContext, p *printer) error {
	fc.OnStreamClosed(p.onClosed)
	h, err := fc.StreamCreate(cfg.Stream)
	if err != nil {
		return err
	}
	logger.Info().Uint64("handle", uint64(h)).Str("endpoint", cfg.Stream.Endpoint).Log("stream started")
	return fc.StreamStart(h, p.onTweet)
}

func streamOnTaskLoop(out io.Writer) error {
	loop := hostloop.New(hostloop.WithLogger(logger))
	fc, err := tweetfeed.New(loop.WakeupFactory(), feedOptions(streamStub)...)
	if err != nil {
		return err
	}

	p := newPrinter(out, streamLimit)
	stop := interruptOn(p.finish)
	defer stop()
	go func() {
		<-p.done
		loop.Quit()
	}()

	if err := startStream(fc, p); err != nil {
		_ = fc.Close()
		return err
	}
	loop.Run()
	if err := fc.Close(); err != nil {
		return err
	}
	return p.err
}

// streamOnEventLoop runs the loop on its own goroutine; Shutdown drains any
// queued wakeups before Close disposes the registration.
func streamOnEventLoop(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	loop, err := eventloop.New()
	if err != nil {
		return err
	}
	fc, err := tweetfeed.New(evloopsignal.NewFactory(loop), feedOptions(streamStub)...)
	if err != nil {
		_ = loop.Close()
		return err
	}

	p := newPrinter(out, streamLimit)
	stop := interruptOn(p.finish)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ran := make(chan error, 1)
	go func() { ran <- loop.Run(runCtx) }()

	if err := startStream(fc, p); err != nil {
		_ = fc.Close()
		return err
	}

	select {
	case <-p.done:
	case err := <-ran:
		_ = fc.Close()
		return err
	}

	// Close first so no new wakeups are submitted while the loop winds down.
	closeErr := fc.Close()
	if err := loop.Shutdown(ctx); err != nil && !errors.Is(err, eventloop.ErrLoopTerminated) {
		return err
	}
	cancel()
	<-ran
	if closeErr != nil {
		return closeErr
	}
	return p.err
}
