/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/crrow/tweetfeed-go/pkg/cxev"
)

// ErrClosed is returned when notifying a closed Async.
var ErrClosed = errors.New("xev: async closed")

// Async is a watcher that other goroutines can wake. Notify is the only
// method safe to call off the loop thread.
type Async struct {
	watcher    *cxev.Watcher
	completion *cxev.Completion
	handler    AsyncHandler
	callbackID uintptr

	mu     sync.RWMutex
	closed bool
}

// NewAsync creates an async watcher. Call Close when done.
func NewAsync() (*Async, error) {
	a := &Async{watcher: new(cxev.Watcher), completion: new(cxev.Completion)}
	if err := cxev.AsyncInit(a.watcher); err != nil {
		return nil, err
	}
	return a, nil
}

// WaitWithHandler arms the watcher on loop.
func (a *Async) WaitWithHandler(loop *Loop, handler AsyncHandler) error {
	if handler == nil {
		return errors.New("xev: nil async handler")
	}
	if a.callbackID != 0 {
		cxev.UnregisterCallback(a.callbackID)
	}
	a.handler = handler
	a.callbackID = cxev.AsyncWaitWithCallback(a.watcher, loop.inner, a.completion, a.callback)
	return nil
}

// WaitFunc arms the watcher with a callback function. Return Continue to
// keep waiting for notifications.
func (a *Async) WaitFunc(loop *Loop, fn func(a *Async, result error) Action) error {
	return a.WaitWithHandler(loop, AsyncFunc(fn))
}

// Notify wakes the loop. Notifies that arrive before the callback runs
// coalesce.
func (a *Async) Notify() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return cxev.AsyncNotify(a.watcher)
}

// Close releases the watcher. Run it on the loop thread once the watcher
// has been disarmed, or after the loop stopped.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if a.callbackID != 0 {
		cxev.UnregisterCallback(a.callbackID)
		a.callbackID = 0
	}
	cxev.AsyncDeinit(a.watcher)
}

func (a *Async) callback(_ *cxev.Loop, _ *cxev.Completion, result int32, _ uintptr) cxev.CbAction {
	var err error
	if result != 0 {
		err = fmt.Errorf("xev: async error %d", result)
	}
	return cxev.CbAction(toCbAction(a.handler.OnAsync(a, err)))
}
