/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"errors"
	"fmt"
	"sync"

	"github.com/crrow/tweetfeed-go/pkg/feedproto"
)

const loopbackBuffer = 256

// LoopbackDriver is an in-process Driver with no network. Opening a
// connection succeeds at once; data is whatever the caller injects.
type LoopbackDriver struct {
	mu     sync.Mutex
	open   map[Handle]bool
	sent   map[Handle][][]byte
	events chan TransportEvent
	done   chan struct{}
	closed bool
}

// NewLoopbackDriver creates a LoopbackDriver.
func NewLoopbackDriver() *LoopbackDriver {
	return &LoopbackDriver{
		open:   make(map[Handle]bool),
		sent:   make(map[Handle][][]byte),
		events: make(chan TransportEvent, loopbackBuffer),
		done:   make(chan struct{}),
	}
}

// Exec implements [Driver].
func (d *LoopbackDriver) Exec(ev IOEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrChannelClosed
	}

	switch ev.Kind {
	case IOOpenConnection:
		d.open[ev.Handle] = true
		return d.offer(TransportEvent{Kind: TransportConnected, Handle: ev.Handle})
	case IOSendBytes:
		if !d.open[ev.Handle] {
			return fmt.Errorf("loopback: handle %d not connected", ev.Handle)
		}
		d.sent[ev.Handle] = append(d.sent[ev.Handle], append([]byte(nil), ev.Data...))
		return nil
	case IOCloseConnection:
		delete(d.open, ev.Handle)
		return nil
	default:
		return fmt.Errorf("loopback: unsupported command %s", ev.Kind)
	}
}

// offer must not block: Exec runs on the domain goroutine, which is also the
// only reader of events.
func (d *LoopbackDriver) offer(ev TransportEvent) error {
	select {
	case d.events <- ev:
		return nil
	default:
		return errors.New("loopback: event buffer full")
	}
}

// Events implements [Driver].
func (d *LoopbackDriver) Events() <-chan TransportEvent {
	return d.events
}

// Inject delivers ev to the domain goroutine, blocking while the buffer is
// full. It fails with ErrChannelClosed after Close.
func (d *LoopbackDriver) Inject(ev TransportEvent) error {
	select {
	case <-d.done:
		return ErrChannelClosed
	default:
	}
	select {
	case d.events <- ev:
		return nil
	case <-d.done:
		return ErrChannelClosed
	}
}

// InjectTweets encodes tweets as one stream chunk for h.
func (d *LoopbackDriver) InjectTweets(h Handle, tweets ...Tweet) error {
	var wire []byte
	for _, t := range tweets {
		var err error
		wire, err = feedproto.AppendEncode(wire, feedproto.Status{
			ID:   t.ID,
			Text: t.Body,
			User: feedproto.User{ScreenName: t.UserName},
		})
		if err != nil {
			return err
		}
	}
	return d.Inject(TransportEvent{Kind: TransportData, Handle: h, Data: wire})
}

// Connected reports whether h has an open loopback connection.
func (d *LoopbackDriver) Connected(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open[h]
}

// Sent returns the payloads written for h.
func (d *LoopbackDriver) Sent(h Handle) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.sent[h]...)
}

// Close implements [Driver].
func (d *LoopbackDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.done)
	return nil
}
