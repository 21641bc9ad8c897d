/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import "sync"

// overflowPolicy decides what a bounded queue does when full.
type overflowPolicy uint8

const (
	// overflowReject fails the push with ErrQueueFull.
	overflowReject overflowPolicy = iota
	// overflowDropOldest discards the head to make room.
	overflowDropOldest
)

// queue is an ordered, one-directional hand-off between goroutines.
//
// Pushes never block. The consumer waits on ready, then pops until empty;
// ready holds at most one token so a burst of pushes costs one wakeup.
type queue[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int
	capacity int
	policy   overflowPolicy
	dropped  uint64
	closed   bool
	ready    chan struct{}
}

func newQueue[T any](capacity int, policy overflowPolicy) *queue[T] {
	return &queue[T]{
		capacity: capacity,
		policy:   policy,
		ready:    make(chan struct{}, 1),
	}
}

func (q *queue[T]) push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrChannelClosed
	}
	if q.capacity > 0 && len(q.items)-q.head >= q.capacity {
		if q.policy == overflowReject {
			q.mu.Unlock()
			return ErrQueueFull
		}
		var zero T
		q.items[q.head] = zero
		q.head++
		q.dropped++
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

// pop removes the head. A closed queue yields nothing.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.closed || q.head == len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// retain keeps only the items for which keep returns true and reports how
// many were removed.
func (q *queue[T]) retain(keep func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	removed := 0
	for _, v := range q.items[q.head:] {
		if keep(v) {
			kept = append(kept, v)
		} else {
			removed++
		}
	}
	clear(q.items[len(kept):])
	q.items = kept
	q.head = 0
	return removed
}

func (q *queue[T]) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	clear(q.items)
	q.items = nil
	q.head = 0
	q.mu.Unlock()

	q.signal()
}

func (q *queue[T]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *queue[T]) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
