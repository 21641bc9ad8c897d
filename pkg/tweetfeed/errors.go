/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelClosed is returned when the peer side of a queue has gone
	// away, normally because the context was closed.
	ErrChannelClosed = errors.New("tweetfeed: channel closed")

	// ErrUnknownHandle is returned when an operation names a handle the
	// context never issued, or one that has already been destroyed.
	ErrUnknownHandle = errors.New("tweetfeed: unknown handle")

	// ErrQueueFull is returned when a bounded control queue rejects a message.
	ErrQueueFull = errors.New("tweetfeed: queue full")

	// ErrHandlesExhausted is returned by StreamCreate once every handle has
	// been issued.
	ErrHandlesExhausted = errors.New("tweetfeed: handles exhausted")

	// ErrFailureChain closes a stream whose driver kept failing within a
	// single dispatch.
	ErrFailureChain = errors.New("tweetfeed: driver failure chain too long")
)

// DriverFailure is a transport error, delivered to the state machine as a
// closed connection.
type DriverFailure struct {
	Handle Handle
	Op     string
	Err    error
}

func (e *DriverFailure) Error() string {
	return fmt.Sprintf("tweetfeed: driver %s failed for handle %d: %v", e.Op, e.Handle, e.Err)
}

func (e *DriverFailure) Unwrap() error {
	return e.Err
}
