/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import "github.com/joeycumines/logiface"

const defaultDestroyedHandles = 4096

type options struct {
	logger          *logiface.Logger[logiface.Event]
	driver          Driver
	machine         StateMachine
	allocator       HandleAllocator
	controlCapacity int
	eventCapacity   int
}

// Option configures a FeedContext.
type Option func(*options)

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *options) { o.logger = logger }
}

// WithDriver sets the transport collaborator. The context takes ownership
// and closes it on Close. The default is a LoopbackDriver.
func WithDriver(d Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithStateMachine replaces the default FeedMachine.
func WithStateMachine(m StateMachine) Option {
	return func(o *options) { o.machine = m }
}

// WithConcurrentCreators makes StreamCreate safe to call from several
// goroutines.
func WithConcurrentCreators() Option {
	return func(o *options) { o.allocator = NewAtomicHandleAllocator() }
}

// WithControlCapacity bounds the control queue. Sends to a full queue fail
// with ErrQueueFull. Zero means unbounded.
func WithControlCapacity(n int) Option {
	return func(o *options) { o.controlCapacity = n }
}

// WithEventCapacity bounds the event queue. When full, the oldest event is
// discarded so the domain goroutine never blocks; see Stats.DroppedEvents.
// Zero means unbounded.
func WithEventCapacity(n int) Option {
	return func(o *options) { o.eventCapacity = n }
}
