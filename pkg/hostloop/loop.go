/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package hostloop is a minimal single-threaded main loop written in Go.
//
// It stands in for a GUI toolkit's loop in headless programs and tests:
// work is posted from any goroutine and runs on whichever goroutine calls
// Run, RunOnce, or Poll.
//
//	loop := hostloop.New()
//	fc, _ := tweetfeed.New(loop.WakeupFactory())
//	go producer(fc)
//	loop.Run() // until loop.Quit()
package hostloop

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

// ErrQuit is returned by RunOnce after Quit.
var ErrQuit = errors.New("hostloop: loop quit")

// Loop is a FIFO of tasks drained by a single goroutine at a time.
type Loop struct {
	logger *logiface.Logger[logiface.Event]

	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
	quit  chan struct{}
	once  sync.Once
	ran   atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn. It never blocks and reports false once the loop has quit.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run processes tasks until Quit.
func (l *Loop) Run() {
	for {
		if err := l.RunOnce(); err != nil {
			return
		}
	}
}

// RunOnce blocks until at least one task is ready, then runs every task
// queued at that moment.
func (l *Loop) RunOnce() error {
	for {
		if n := l.Poll(); n > 0 {
			return nil
		}
		select {
		case <-l.wake:
		case <-l.quit:
			return ErrQuit
		}
	}
}

// Poll runs the tasks queued right now without blocking and returns how
// many ran. Tasks posted by those tasks wait for the next call.
func (l *Loop) Poll() int {
	l.mu.Lock()
	batch := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, fn := range batch {
		l.invoke(fn)
	}
	l.ran.Add(uint64(len(batch)))
	return len(batch)
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().Err(fmt.Errorf("hostloop: task panic: %v", r)).Log("task failed")
		}
	}()
	fn()
}

// Quit makes Run and RunOnce return. Queued tasks are dropped.
func (l *Loop) Quit() {
	l.once.Do(func() { close(l.quit) })
}

// Ran returns how many tasks have run.
func (l *Loop) Ran() uint64 {
	return l.ran.Load()
}

// Pending returns how many tasks are queued.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// WakeupFactory binds tweetfeed wakeups to this loop. Each Emit posts one
// Wakeup task; tasks still queued after Dispose do nothing.
func (l *Loop) WakeupFactory() tweetfeed.WakeupSignalFactory {
	return tweetfeed.FactoryFunc(func(handler tweetfeed.UISignalHandler) (tweetfeed.Emitter, tweetfeed.Disposer, error) {
		if handler == nil {
			return nil, nil, errors.New("hostloop: nil handler")
		}
		var disposed atomic.Bool
		emit := tweetfeed.EmitterFunc(func() {
			l.Post(func() {
				if !disposed.Load() {
					handler.Wakeup()
				}
			})
		})
		return emit, tweetfeed.OnceDisposer(func() { disposed.Store(true) }), nil
	})
}
