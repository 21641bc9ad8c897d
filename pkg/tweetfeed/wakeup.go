/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import "sync"

// UISignalHandler is run on the host loop's thread when events are pending.
//
// The handler a FeedContext registers drains the event queue in arrival
// order and invokes the registered callbacks.
type UISignalHandler interface {
	Wakeup()
}

// UISignalHandlerFunc is a function adapter for [UISignalHandler].
type UISignalHandlerFunc func()

// Wakeup implements [UISignalHandler].
func (f UISignalHandlerFunc) Wakeup() { f() }

// Emitter asks the host loop to run the registered handler soon.
//
// Emit is called from the domain goroutine. It must not block and must be
// safe to call concurrently with the host loop.
type Emitter interface {
	Emit()
}

// EmitterFunc is a function adapter for [Emitter].
type EmitterFunc func()

// Emit implements [Emitter].
func (f EmitterFunc) Emit() { f() }

// Disposer removes a registration from the host loop. Dispose must be
// idempotent.
type Disposer interface {
	Dispose()
}

// DisposerFunc is a function adapter for [Disposer]. Use [OnceDisposer] when
// the function itself is not idempotent.
type DisposerFunc func()

// Dispose implements [Disposer].
func (f DisposerFunc) Dispose() { f() }

// OnceDisposer wraps fn so that only the first Dispose runs it. A nil fn
// yields a no-op disposer.
func OnceDisposer(fn func()) Disposer {
	var once sync.Once
	return DisposerFunc(func() {
		if fn != nil {
			once.Do(fn)
		}
	})
}

// WakeupSignalFactory binds a handler to a concrete host loop technology.
//
// Implementations exist for a pure-Go loop (hostloop), fd-polling loops
// (fdsignal), bubbletea programs (teasignal), and libxev (xevsignal).
type WakeupSignalFactory interface {
	Register(handler UISignalHandler) (Emitter, Disposer, error)
}

// FactoryFunc is a function adapter for [WakeupSignalFactory].
type FactoryFunc func(handler UISignalHandler) (Emitter, Disposer, error)

// Register implements [WakeupSignalFactory].
func (f FactoryFunc) Register(handler UISignalHandler) (Emitter, Disposer, error) {
	return f(handler)
}
