/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Package xev is the Go-facing API over the cxev libxev bindings.
//
// It adds error returns, time.Duration delays, handler interfaces, and
// heap-pinned watcher state. The pieces tweetfeed needs are the loop itself,
// timers, and async watchers, the latter being libxev's cross-thread wakeup.
//
// # Quick Start
//
//	loop, _ := xev.NewLoop()
//	defer loop.Close()
//
//	async, _ := xev.NewAsync()
//	defer async.Close()
//
//	async.WaitFunc(loop, func(a *xev.Async, err error) xev.Action {
//	    fmt.Println("notified")
//	    return xev.Continue
//	})
//	go async.Notify() // from any goroutine
//
//	loop.Run()
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│  xevsignal (tweetfeed wakeups)      │
//	├─────────────────────────────────────┤
//	│  xev (high-level Go API)            │  <- This package
//	├─────────────────────────────────────┤
//	│  cxev (libffi bindings)             │
//	├─────────────────────────────────────┤
//	│  libxev                             │
//	└─────────────────────────────────────┘
package xev

import (
	"time"

	"github.com/crrow/tweetfeed-go/pkg/cxev"
)

// Loop wraps the libxev event loop.
type Loop struct {
	inner *cxev.Loop
}

// NewLoop creates and initializes a new event loop.
func NewLoop() (*Loop, error) {
	l := &Loop{inner: new(cxev.Loop)}
	if err := cxev.LoopInit(l.inner); err != nil {
		return nil, err
	}
	return l, nil
}

// Close releases resources associated with the loop.
func (l *Loop) Close() {
	cxev.LoopDeinit(l.inner)
}

// Run processes events until no watchers remain armed.
func (l *Loop) Run() error {
	return cxev.LoopRun(l.inner, cxev.RunUntilDone)
}

// RunOnce blocks until at least one event is ready and processes it.
func (l *Loop) RunOnce() error {
	return cxev.LoopRun(l.inner, cxev.RunOnce)
}

// Poll processes ready events without blocking.
func (l *Loop) Poll() error {
	return cxev.LoopRun(l.inner, cxev.RunNoWait)
}

// Now returns the loop's cached timestamp.
func (l *Loop) Now() time.Duration {
	return time.Duration(cxev.LoopNow(l.inner)) * time.Millisecond
}

// Inner returns the underlying cxev.Loop.
func (l *Loop) Inner() *cxev.Loop {
	return l.inner
}

// Available reports whether libxev could be loaded in this process.
func Available() error {
	return cxev.LoadError()
}
