/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package evloopsignal wakes a feed context on a go-eventloop Loop. Emits
// become submitted tasks, so handlers run on the loop goroutine.
package evloopsignal

import (
	"errors"
	"sync/atomic"

	eventloop "github.com/joeycumines/go-eventloop"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

// Factory implements tweetfeed.WakeupSignalFactory for one loop.
type Factory struct {
	loop   *eventloop.Loop
	failed atomic.Uint64
}

// NewFactory binds registrations to loop.
func NewFactory(loop *eventloop.Loop) *Factory {
	return &Factory{loop: loop}
}

// Register implements tweetfeed.WakeupSignalFactory.
func (f *Factory) Register(handler tweetfeed.UISignalHandler) (tweetfeed.Emitter, tweetfeed.Disposer, error) {
	if handler == nil {
		return nil, nil, errors.New("evloopsignal: nil handler")
	}
	if f.loop == nil {
		return nil, nil, errors.New("evloopsignal: nil loop")
	}
	var disposed atomic.Bool
	run := func() {
		if !disposed.Load() {
			handler.Wakeup()
		}
	}
	emit := tweetfeed.EmitterFunc(func() {
		if disposed.Load() {
			return
		}
		if err := f.loop.Submit(run); err != nil {
			f.failed.Add(1)
		}
	})
	return emit, tweetfeed.OnceDisposer(func() { disposed.Store(true) }), nil
}

// Failed counts emits the loop refused, normally because it had terminated.
func (f *Factory) Failed() uint64 {
	return f.failed.Load()
}
