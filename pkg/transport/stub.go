/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/crrow/tweetfeed-go/pkg/feedproto"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

// DefaultStubTweet is replayed when a StubDriver has no tweets configured.
var DefaultStubTweet = tweetfeed.Tweet{UserName: "Ryan Levick", Body: "Some Text"}

// StubDriver answers every subscribe request with a fixed set of tweets.
// Nothing touches the network.
type StubDriver struct {
	tweets     []tweetfeed.Tweet
	closeAfter bool

	mu     sync.Mutex
	open   map[tweetfeed.Handle]bool
	events chan tweetfeed.TransportEvent
	closed bool
}

// StubOption configures a StubDriver.
type StubOption func(*StubDriver)

// WithTweets sets the tweets replayed to each subscriber.
func WithTweets(tweets ...tweetfeed.Tweet) StubOption {
	return func(d *StubDriver) { d.tweets = append([]tweetfeed.Tweet(nil), tweets...) }
}

// WithCloseAfterReplay ends each stream with an orderly close once the
// tweets have been sent.
func WithCloseAfterReplay() StubOption {
	return func(d *StubDriver) { d.closeAfter = true }
}

// NewStubDriver creates a StubDriver.
func NewStubDriver(opts ...StubOption) *StubDriver {
	d := &StubDriver{
		open:   make(map[tweetfeed.Handle]bool),
		events: make(chan tweetfeed.TransportEvent, defaultEventBuffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.tweets) == 0 {
		d.tweets = []tweetfeed.Tweet{DefaultStubTweet}
	}
	return d
}

// Exec implements tweetfeed.Driver.
func (d *StubDriver) Exec(ev tweetfeed.IOEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return tweetfeed.ErrChannelClosed
	}

	switch ev.Kind {
	case tweetfeed.IOOpenConnection:
		d.open[ev.Handle] = true
		return d.offer(tweetfeed.TransportEvent{Kind: tweetfeed.TransportConnected, Handle: ev.Handle})

	case tweetfeed.IOSendBytes:
		if !d.open[ev.Handle] {
			return fmt.Errorf("stub: handle %d not connected", ev.Handle)
		}
		wire := feedproto.ResponseHeader(200, "OK")
		for _, t := range d.tweets {
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
		if err := d.offer(tweetfeed.TransportEvent{Kind: tweetfeed.TransportData, Handle: ev.Handle, Data: wire}); err != nil {
			return err
		}
		if d.closeAfter {
			delete(d.open, ev.Handle)
			return d.offer(tweetfeed.TransportEvent{Kind: tweetfeed.TransportClosed, Handle: ev.Handle})
		}
		return nil

	case tweetfeed.IOCloseConnection:
		delete(d.open, ev.Handle)
		return nil

	default:
		return fmt.Errorf("stub: unsupported command %s", ev.Kind)
	}
}

// offer never blocks; the domain goroutine calling Exec is the only reader.
func (d *StubDriver) offer(ev tweetfeed.TransportEvent) error {
	select {
	case d.events <- ev:
		return nil
	default:
		return errors.New("stub: event buffer full")
	}
}

// Events implements tweetfeed.Driver.
func (d *StubDriver) Events() <-chan tweetfeed.TransportEvent {
	return d.events
}

// Close implements tweetfeed.Driver.
func (d *StubDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
