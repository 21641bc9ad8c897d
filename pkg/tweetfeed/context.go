/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package tweetfeed bridges a background protocol goroutine with a foreign
// host main loop.
//
// Streams are named by handles. Control messages travel to a dedicated
// domain goroutine over one queue; tweets travel back over another and are
// delivered on the host loop's own thread, which is woken through a
// pluggable [WakeupSignalFactory].
//
// # Quick Start
//
//	loop := hostloop.New()
//	fc, err := tweetfeed.New(loop.WakeupFactory(), tweetfeed.WithDriver(drv))
//	if err != nil {
//	    return err
//	}
//	defer fc.Close()
//
//	h, _ := fc.StreamCreate(tweetfeed.StreamConfig{Endpoint: addr, Track: []string{"golang"}})
//	_ = fc.StreamStart(h, func(h tweetfeed.Handle, t tweetfeed.Tweet) {
//	    fmt.Println(t.UserName, t.Body)
//	})
//
//	loop.Run()
//
// # Architecture
//
//	   host thread                         domain goroutine
//	┌────────────────┐   control queue   ┌──────────────────┐
//	│  FeedContext   │ ────────────────▶ │   domainLoop     │
//	│                │                   │   StateMachine   │◀──▶ Driver
//	│ signalHandler  │ ◀──────────────── │                  │
//	└───────▲────────┘    event queue    └────────┬─────────┘
//	        │ Wakeup()                            │ Emit()
//	        └──────────── host main loop ◀────────┘
//
// # Guarantees
//
//   - Handles are unique and never reused within a context.
//   - Each queue is FIFO.
//   - Once Destroy(h) is processed, queued tweets for h are discarded.
//   - Close joins the domain goroutine and never blocks on the event queue.
package tweetfeed

import (
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/joeycumines/logiface"
)

// FeedContext is the only object an application touches.
type FeedContext struct {
	alloc    HandleAllocator
	control  *queue[ControlMessage]
	events   *queue[UIEvent]
	signal   *signalHandler
	disposer Disposer
	driver   Driver
	loop     *domainLoop
	logger   *logiface.Logger[logiface.Event]
	closed   atomic.Bool
}

// Stats is a snapshot of queue counters.
type Stats struct {
	PendingControl int
	PendingEvents  int
	DroppedEvents  uint64
	Wakeups        uint64
	Dispatched     uint64
}

// New creates a context, registers its wakeup handler with factory, and
// starts the domain goroutine.
func New(factory WakeupSignalFactory, opts ...Option) (*FeedContext, error) {
	if factory == nil {
		return nil, errors.New("tweetfeed: nil wakeup factory")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.allocator == nil {
		o.allocator = NewHandleAllocator()
	}
	if o.driver == nil {
		o.driver = NewLoopbackDriver()
	}
	if o.machine == nil {
		o.machine = NewFeedMachine(WithMachineLogger(o.logger))
	}

	destroyed, err := lru.New[Handle, struct{}](defaultDestroyedHandles)
	if err != nil {
		return nil, fmt.Errorf("tweetfeed: %w", err)
	}

	events := newQueue[UIEvent](o.eventCapacity, overflowDropOldest)
	signal := &signalHandler{events: events, destroyed: destroyed}

	emitter, disposer, err := factory.Register(signal)
	if err != nil {
		if disposer != nil {
			disposer.Dispose()
		}
		_ = o.driver.Close()
		return nil, fmt.Errorf("tweetfeed: register wakeup signal: %w", err)
	}
	if emitter == nil {
		if disposer != nil {
			disposer.Dispose()
		}
		_ = o.driver.Close()
		return nil, errors.New("tweetfeed: wakeup factory returned no emitter")
	}
	if disposer == nil {
		disposer = OnceDisposer(nil)
	}
	signal.emitter = emitter

	fc := &FeedContext{
		alloc:    o.allocator,
		control:  newQueue[ControlMessage](o.controlCapacity, overflowReject),
		events:   events,
		signal:   signal,
		disposer: disposer,
		driver:   o.driver,
		logger:   o.logger,
	}
	fc.loop = &domainLoop{
		control: fc.control,
		events:  events,
		signal:  signal,
		machine: o.machine,
		driver:  o.driver,
		logger:  o.logger,
		done:    make(chan struct{}),
	}

	go fc.loop.run()
	return fc, nil
}

// StreamCreate allocates a handle and asks the domain goroutine to register
// it. It returns before registration happens.
func (fc *FeedContext) StreamCreate(cfg StreamConfig) (Handle, error) {
	if fc.closed.Load() {
		return 0, ErrChannelClosed
	}
	h, err := fc.alloc.Create()
	if err != nil {
		return 0, err
	}
	if err := fc.control.push(CreateMsg(h, cfg)); err != nil {
		return 0, err
	}
	fc.logger.Debug().Uint64("handle", uint64(h)).Log("stream created")
	return h, nil
}

// StreamStart installs cb as the context's tweet callback, replacing any
// previous one, then starts h. Handles this context never issued fail with
// ErrUnknownHandle; destroyed handles are reported through the close
// callback.
func (fc *FeedContext) StreamStart(h Handle, cb TweetCallback) error {
	if fc.closed.Load() {
		return ErrChannelClosed
	}
	if !fc.alloc.Issued(h) {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if cb != nil {
		fc.signal.setTweetCallback(cb)
	}
	return fc.control.push(StartMsg(h))
}

// StreamDestroy asks the domain goroutine to end h. Unknown handles are
// ignored. Tweets for h still waiting for delivery are dropped.
func (fc *FeedContext) StreamDestroy(h Handle) error {
	if fc.closed.Load() {
		return ErrChannelClosed
	}
	if !fc.alloc.Issued(h) {
		return nil
	}
	// The tombstone goes in before the push so that a Wakeup racing with
	// the purge still filters h; it is withdrawn if the push fails.
	already := fc.signal.destroyed.Contains(h)
	fc.signal.destroyed.Add(h, struct{}{})
	if err := fc.control.push(DestroyMsg(h)); err != nil {
		if !already {
			fc.signal.destroyed.Remove(h)
		}
		return err
	}
	return nil
}

// OnStreamClosed installs the callback for stream closure. Pass nil to
// remove it.
func (fc *FeedContext) OnStreamClosed(cb CloseCallback) {
	fc.signal.setCloseCallback(cb)
}

// Handler returns the handler registered with the wakeup factory. Host
// integrations normally hold it already; this is for tests and manual pumps.
func (fc *FeedContext) Handler() UISignalHandler {
	return fc.signal
}

// Stats returns a snapshot of the context's counters.
func (fc *FeedContext) Stats() Stats {
	return Stats{
		PendingControl: fc.control.len(),
		PendingEvents:  fc.events.len(),
		DroppedEvents:  fc.events.droppedCount(),
		Wakeups:        fc.signal.wakeups.Load(),
		Dispatched:     fc.loop.dispatched.Load(),
	}
}

// Done is closed when the domain goroutine has exited.
func (fc *FeedContext) Done() <-chan struct{} {
	return fc.loop.done
}

// Close stops the domain goroutine after its current message, waits for it,
// closes the driver, and disposes the wakeup registration. It is idempotent.
func (fc *FeedContext) Close() error {
	if !fc.closed.CompareAndSwap(false, true) {
		return nil
	}

	fc.control.close()
	<-fc.loop.done

	var errs []error
	if err := fc.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("tweetfeed: close driver: %w", err))
	}
	fc.disposer.Dispose()
	fc.events.close()

	fc.logger.Debug().Log("feed context closed")
	return errors.Join(errs...)
}
