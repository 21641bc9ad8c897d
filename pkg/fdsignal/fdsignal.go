/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

//go:build unix

// Package fdsignal wakes host loops that poll file descriptors.
//
// Toolkits such as GTK watch a descriptor and call back on their own thread
// when it becomes readable. A Source owns such a descriptor (an eventfd on
// Linux, a self-pipe elsewhere); Emit makes it readable and Dispatch, run by
// the host when it is, drains it and runs the tweetfeed handler.
package fdsignal

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

// ErrClosed is returned by Wait on a disposed Source.
var ErrClosed = errors.New("fdsignal: source closed")

// Source is one registered wakeup descriptor.
type Source struct {
	handler tweetfeed.UISignalHandler
	detach  func(*Source)

	mu      sync.RWMutex
	readFd  int
	writeFd int
	closed  bool

	emits      atomic.Uint64
	dispatches atomic.Uint64
	buf        [8]byte
}

// Factory implements tweetfeed.WakeupSignalFactory. Attach hands a new
// Source to the host loop, which must call Dispatch whenever Fd is
// readable. Detach, when set, runs before the descriptor is closed.
type Factory struct {
	Attach func(*Source) error
	Detach func(*Source)
}

// Register implements tweetfeed.WakeupSignalFactory.
func (f Factory) Register(handler tweetfeed.UISignalHandler) (tweetfeed.Emitter, tweetfeed.Disposer, error) {
	if handler == nil {
		return nil, nil, errors.New("fdsignal: nil handler")
	}
	s, err := NewSource(handler)
	if err != nil {
		return nil, nil, err
	}
	s.detach = f.Detach
	if f.Attach != nil {
		if err := f.Attach(s); err != nil {
			s.Close()
			return nil, nil, err
		}
	}
	return tweetfeed.EmitterFunc(s.Emit), tweetfeed.DisposerFunc(s.Close), nil
}

// NewSource creates a Source for handler that is not attached to any loop.
func NewSource(handler tweetfeed.UISignalHandler) (*Source, error) {
	r, w, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &Source{handler: handler, readFd: r, writeFd: w}, nil
}

// Fd returns the descriptor to watch for readability, or -1 once closed.
func (s *Source) Fd() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return -1
	}
	return s.readFd
}

// Emit makes Fd readable. It never blocks; a full pipe or saturated
// counter already means a wakeup is pending.
func (s *Source) Emit() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.emits.Add(1)
	var one uint64 = 1
	_, _ = unix.Write(s.writeFd, (*[8]byte)(unsafe.Pointer(&one))[:])
}

// Dispatch drains Fd and runs the handler. Call it on the host loop's
// thread.
func (s *Source) Dispatch() {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	for {
		if _, err := unix.Read(s.readFd, s.buf[:]); err != nil {
			break
		}
	}
	s.mu.RUnlock()

	s.dispatches.Add(1)
	s.handler.Wakeup()
}

// Wait blocks until Fd is readable or timeout passes. A negative timeout
// waits forever.
func (s *Source) Wait(timeout time.Duration) (bool, error) {
	fd := s.Fd()
	if fd < 0 {
		return false, ErrClosed
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}

// Stats returns how many emits and dispatches the source has seen.
func (s *Source) Stats() (emits, dispatches uint64) {
	return s.emits.Load(), s.dispatches.Load()
}

// Close detaches the source and closes its descriptors. It is idempotent.
func (s *Source) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.detach != nil {
		s.detach(s)
	}
	_ = unix.Close(s.readFd)
	if s.writeFd != s.readFd {
		_ = unix.Close(s.writeFd)
	}
}
