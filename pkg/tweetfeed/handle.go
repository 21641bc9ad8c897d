/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"math"
	"sync/atomic"
)

// Handle names a stream across the bridge. Zero is never issued.
type Handle uint32

// maxHandle is the last handle an allocator issues.
const maxHandle Handle = math.MaxUint32

// HandleAllocator issues stream handles. Handles start at 1, increase
// monotonically, and are never recycled: once maxHandle has been issued,
// Create fails with ErrHandlesExhausted.
type HandleAllocator interface {
	Create() (Handle, error)
	// Issued reports whether h was returned by a previous Create.
	Issued(h Handle) bool
}

// NewHandleAllocator returns an allocator for a single creating goroutine.
func NewHandleAllocator() HandleAllocator {
	return &serialAllocator{}
}

// NewAtomicHandleAllocator returns an allocator that may be shared by
// several creating goroutines.
func NewAtomicHandleAllocator() HandleAllocator {
	return &atomicAllocator{}
}

type serialAllocator struct {
	last Handle
}

func (a *serialAllocator) Create() (Handle, error) {
	if a.last == maxHandle {
		return 0, ErrHandlesExhausted
	}
	a.last++
	return a.last, nil
}

func (a *serialAllocator) Issued(h Handle) bool {
	return h != 0 && h <= a.last
}

type atomicAllocator struct {
	last atomic.Uint32
}

func (a *atomicAllocator) Create() (Handle, error) {
	for {
		cur := a.last.Load()
		if Handle(cur) == maxHandle {
			return 0, ErrHandlesExhausted
		}
		if a.last.CompareAndSwap(cur, cur+1) {
			return Handle(cur + 1), nil
		}
	}
}

func (a *atomicAllocator) Issued(h Handle) bool {
	return h != 0 && uint32(h) <= a.last.Load()
}
