/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package xevsignal delivers tweetfeed wakeups on a libxev loop.
//
// Each registration owns an xev.Async armed on the loop. The domain
// goroutine notifies it; libxev runs the handler on the loop thread.
// Register touches the loop, so create the FeedContext on the loop's
// goroutine or before the loop runs.
//
//	loop, _ := xev.NewLoop()
//	f := xevsignal.NewFactory(loop)
//	fc, _ := tweetfeed.New(f, ...)
//	...
//	loop.Run() // returns once every registration is disposed
//	f.Release()
package xevsignal

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
	"github.com/crrow/tweetfeed-go/pkg/xev"
)

// Factory implements tweetfeed.WakeupSignalFactory for one xev.Loop.
type Factory struct {
	loop *xev.Loop

	mu      sync.Mutex
	signals []*signal
}

type signal struct {
	async    *xev.Async
	handler  tweetfeed.UISignalHandler
	disposed atomic.Bool
	wakeups  atomic.Uint64
}

// NewFactory binds registrations to loop.
func NewFactory(loop *xev.Loop) *Factory {
	return &Factory{loop: loop}
}

// Register implements tweetfeed.WakeupSignalFactory.
func (f *Factory) Register(handler tweetfeed.UISignalHandler) (tweetfeed.Emitter, tweetfeed.Disposer, error) {
	if handler == nil {
		return nil, nil, errors.New("xevsignal: nil handler")
	}
	if f.loop == nil {
		return nil, nil, errors.New("xevsignal: nil loop")
	}
	async, err := xev.NewAsync()
	if err != nil {
		return nil, nil, err
	}
	s := &signal{async: async, handler: handler}
	if err := async.WaitFunc(f.loop, s.onAsync); err != nil {
		async.Close()
		return nil, nil, err
	}

	f.mu.Lock()
	f.signals = append(f.signals, s)
	f.mu.Unlock()
	return tweetfeed.EmitterFunc(s.emit), tweetfeed.OnceDisposer(s.dispose), nil
}

func (s *signal) emit() {
	if s.disposed.Load() {
		return
	}
	_ = s.async.Notify()
}

// dispose lets the loop see the registration go away: the pending callback
// returns Stop and the watcher disarms.
func (s *signal) dispose() {
	s.disposed.Store(true)
	_ = s.async.Notify()
}

func (s *signal) onAsync(_ *xev.Async, _ error) xev.Action {
	if s.disposed.Load() {
		return xev.Stop
	}
	s.wakeups.Add(1)
	s.handler.Wakeup()
	if s.disposed.Load() {
		return xev.Stop
	}
	return xev.Continue
}

// Wakeups returns how many handler runs the loop has performed.
func (f *Factory) Wakeups() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n uint64
	for _, s := range f.signals {
		n += s.wakeups.Load()
	}
	return n
}

// Release closes the watchers of disposed registrations. Call it on the
// loop goroutine after Run returns.
func (f *Factory) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.signals[:0]
	for _, s := range f.signals {
		if s.disposed.Load() {
			s.async.Close()
			continue
		}
		kept = append(kept, s)
	}
	f.signals = kept
}
