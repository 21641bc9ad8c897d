/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TweetCallback receives delivered tweets on the host loop's thread.
type TweetCallback func(h Handle, t Tweet)

// CloseCallback receives stream closure on the host loop's thread. err is nil
// for an orderly end of stream.
type CloseCallback func(h Handle, err error)

// signalHandler is the UISignalHandler a FeedContext registers with its
// WakeupSignalFactory.
//
// The callbacks are single-writer (the creator) and single-reader (Wakeup on
// the host thread); the domain goroutine never reads them.
type signalHandler struct {
	events    *queue[UIEvent]
	emitter   Emitter
	destroyed *lru.Cache[Handle, struct{}]

	pending atomic.Bool
	wakeups atomic.Uint64

	onTweet atomic.Pointer[TweetCallback]
	onClose atomic.Pointer[CloseCallback]
}

// notify runs on the domain goroutine after an event push. Only the
// transition to pending emits, so a burst costs one wakeup.
func (s *signalHandler) notify() {
	if s.pending.CompareAndSwap(false, true) {
		s.emitter.Emit()
	}
}

// Wakeup drains the event queue. Events are popped one at a time so that a
// Destroy purge performed on the domain goroutine mid-drain takes effect.
func (s *signalHandler) Wakeup() {
	s.pending.Store(false)
	s.wakeups.Add(1)
	for {
		ev, ok := s.events.pop()
		if !ok {
			return
		}
		s.deliver(ev)
	}
}

func (s *signalHandler) deliver(ev UIEvent) {
	switch ev.Kind {
	case UITweetArrived:
		if s.destroyed.Contains(ev.Handle) {
			return
		}
		if cb := s.onTweet.Load(); cb != nil {
			(*cb)(ev.Handle, ev.Tweet)
		}
	case UIStreamClosed:
		if cb := s.onClose.Load(); cb != nil {
			(*cb)(ev.Handle, ev.Err)
		}
	}
}

func (s *signalHandler) setTweetCallback(cb TweetCallback) {
	if cb == nil {
		s.onTweet.Store(nil)
		return
	}
	s.onTweet.Store(&cb)
}

func (s *signalHandler) setCloseCallback(cb CloseCallback) {
	if cb == nil {
		s.onClose.Store(nil)
		return
	}
	s.onClose.Store(&cb)
}
