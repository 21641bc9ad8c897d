/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

//go:build unix

package main

import (
	"errors"
	"io"
	"time"

	"github.com/crrow/tweetfeed-go/pkg/fdsignal"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

// streamOnFd hosts the context on a poll loop over a wakeup descriptor.
func streamOnFd(out io.Writer) error {
	var src *fdsignal.Source
	factory := fdsignal.Factory{Attach: func(s *fdsignal.Source) error {
		src = s
		return nil
	}}
	fc, err := tweetfeed.New(factory, feedOptions(streamStub)...)
	if err != nil {
		return err
	}

	p := newPrinter(out, streamLimit)
	stop := interruptOn(p.finish)
	defer stop()

	if err := startStream(fc, p); err != nil {
		_ = fc.Close()
		return err
	}

	for running := true; running; {
		select {
		case <-p.done:
			running = false
			continue
		default:
		}
		ready, err := src.Wait(100 * time.Millisecond)
		if err != nil {
			if errors.Is(err, fdsignal.ErrClosed) {
				break
			}
			_ = fc.Close()
			return err
		}
		if ready {
			src.Dispatch()
		}
	}

	if err := fc.Close(); err != nil {
		return err
	}
	emits, dispatches := src.Stats()
	logger.Debug().Uint64("emits", emits).Uint64("dispatches", dispatches).Log("fd loop done")
	return p.err
}
