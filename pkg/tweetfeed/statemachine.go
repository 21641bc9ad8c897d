/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"

	"github.com/crrow/tweetfeed-go/pkg/feedproto"
)

// StreamState is the per-handle state of a FeedMachine.
type StreamState uint8

const (
	StateUnknown StreamState = iota
	StateCreated
	StateConnecting
	StateStreaming
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Output is the result of one dispatch: at most one UI event and at most one
// I/O command.
type Output struct {
	UI *UIEvent
	IO *IOEvent
}

// StateMachine is the per-handle policy run on the domain goroutine.
//
// A dispatch that has more than one result to report returns the first and
// keeps the rest; the domain loop then calls Continue for the same handle
// until it reports false.
type StateMachine interface {
	OnControl(msg ControlMessage) Output
	OnTransport(ev TransportEvent) Output
	Continue(h Handle) (Output, bool)
}

// ErrReconnectLimited closes a stream whose reconnects exceeded the rate limit.
var ErrReconnectLimited = errors.New("tweetfeed: reconnect rate limited")

const defaultTombstones = 4096

// DefaultReconnectRates allow a burst of 3 reconnects and 10 per hour.
var DefaultReconnectRates = map[time.Duration]int{
	time.Minute: 3,
	time.Hour:   10,
}

type machineStream struct {
	state     StreamState
	cfg       StreamConfig
	parser    *feedproto.Parser
	pending   []Tweet
	requested bool
	// failed ends the stream once pending is drained.
	failed error
}

// FeedMachine is the default StateMachine. It parses the status stream
// produced by a Driver and turns each status into a TweetArrived event.
type FeedMachine struct {
	streams    map[Handle]*machineStream
	tombstones *lru.Cache[Handle, struct{}]
	reconnects *catrate.Limiter
	warnings   *catrate.Limiter
	logger     *logiface.Logger[logiface.Event]
	// highest is the largest handle seen in a Create.
	highest Handle
}

// MachineOption configures a FeedMachine.
type MachineOption func(*FeedMachine)

// WithMachineLogger sets the logger used for dropped input.
func WithMachineLogger(logger *logiface.Logger[logiface.Event]) MachineOption {
	return func(m *FeedMachine) { m.logger = logger }
}

// WithReconnectRates replaces DefaultReconnectRates. A nil map disables
// reconnect limiting.
func WithReconnectRates(rates map[time.Duration]int) MachineOption {
	return func(m *FeedMachine) {
		if len(rates) == 0 {
			m.reconnects = nil
			return
		}
		m.reconnects = catrate.NewLimiter(rates)
	}
}

// WithTombstones bounds how many destroyed handles are remembered.
func WithTombstones(n int) MachineOption {
	return func(m *FeedMachine) {
		if c, err := lru.New[Handle, struct{}](n); err == nil {
			m.tombstones = c
		}
	}
}

// NewFeedMachine creates the default state machine.
func NewFeedMachine(opts ...MachineOption) *FeedMachine {
	tombstones, _ := lru.New[Handle, struct{}](defaultTombstones)
	m := &FeedMachine{
		streams:    make(map[Handle]*machineStream),
		tombstones: tombstones,
		reconnects: catrate.NewLimiter(DefaultReconnectRates),
		warnings:   catrate.NewLimiter(map[time.Duration]int{time.Second: 1, time.Minute: 10}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the state of h. Destroyed handles report StateClosed, as do
// handles below the highest created one that are no longer live, whose
// tombstone may have been evicted.
func (m *FeedMachine) State(h Handle) StreamState {
	if s, ok := m.streams[h]; ok {
		return s.state
	}
	if m.tombstones.Contains(h) || (h != 0 && h < m.highest) {
		return StateClosed
	}
	return StateUnknown
}

// OnControl implements [StateMachine].
func (m *FeedMachine) OnControl(msg ControlMessage) Output {
	h := msg.Handle
	switch msg.Kind {
	case ControlCreate:
		if _, ok := m.streams[h]; ok || m.tombstones.Contains(h) {
			m.warn(h, "duplicate create ignored")
			return Output{}
		}
		m.streams[h] = &machineStream{
			state:  StateCreated,
			cfg:    msg.Config,
			parser: feedproto.NewParser(),
		}
		if h > m.highest {
			m.highest = h
		}
		return Output{}

	case ControlStart:
		s, ok := m.streams[h]
		if !ok {
			return Output{UI: &UIEvent{Kind: UIStreamClosed, Handle: h, Err: ErrUnknownHandle}}
		}
		if s.state != StateCreated {
			m.warn(h, "start ignored, stream already started")
			return Output{}
		}
		s.state = StateConnecting
		s.requested = true
		return Output{IO: &IOEvent{Kind: IOOpenConnection, Handle: h, Config: s.cfg}}

	case ControlDestroy:
		s, ok := m.streams[h]
		if !ok {
			return Output{}
		}
		m.bury(h)
		if s.requested {
			return Output{IO: &IOEvent{Kind: IOCloseConnection, Handle: h}}
		}
		return Output{}
	}
	return Output{}
}

// OnTransport implements [StateMachine].
func (m *FeedMachine) OnTransport(ev TransportEvent) Output {
	h := ev.Handle
	s, ok := m.streams[h]
	if !ok {
		return Output{}
	}

	switch ev.Kind {
	case TransportConnected:
		if s.state != StateConnecting {
			return Output{}
		}
		s.state = StateStreaming
		req := feedproto.SubscribeRequest(endpointHost(s.cfg.Endpoint), s.cfg.Track, s.cfg.Credentials)
		return Output{IO: &IOEvent{Kind: IOSendBytes, Handle: h, Data: req}}

	case TransportData:
		if s.state != StateStreaming {
			return Output{}
		}
		msgs, err := s.parser.Feed(ev.Data)
		for _, msg := range msgs {
			if msg.Kind != feedproto.KindStatus {
				continue
			}
			s.pending = append(s.pending, Tweet{
				ID:       msg.Status.ID,
				UserName: msg.Status.User.ScreenName,
				Body:     msg.Status.Text,
			})
		}
		if err != nil {
			// statuses decoded before the bad line are still delivered
			s.failed = fmt.Errorf("tweetfeed: stream %d: %w", h, err)
		}
		out, _ := m.Continue(h)
		return out

	case TransportClosed:
		if ev.Err != nil && s.cfg.Reconnect {
			if _, allowed := m.reconnects.Allow(h); allowed {
				s.state = StateConnecting
				s.parser.Reset()
				return Output{IO: &IOEvent{Kind: IOOpenConnection, Handle: h, Config: s.cfg}}
			}
			m.bury(h)
			return Output{UI: &UIEvent{Kind: UIStreamClosed, Handle: h, Err: errors.Join(ErrReconnectLimited, ev.Err)}}
		}
		m.bury(h)
		return Output{UI: &UIEvent{Kind: UIStreamClosed, Handle: h, Err: ev.Err}}
	}
	return Output{}
}

// Continue implements [StateMachine]. It yields one buffered tweet per call,
// then the close of a stream whose input failed to parse.
func (m *FeedMachine) Continue(h Handle) (Output, bool) {
	s, ok := m.streams[h]
	if !ok {
		return Output{}, false
	}
	if len(s.pending) == 0 {
		if s.failed == nil {
			return Output{}, false
		}
		m.bury(h)
		return Output{
			UI: &UIEvent{Kind: UIStreamClosed, Handle: h, Err: s.failed},
			IO: &IOEvent{Kind: IOCloseConnection, Handle: h},
		}, true
	}
	t := s.pending[0]
	s.pending[0] = Tweet{}
	s.pending = s.pending[1:]
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return Output{UI: &UIEvent{Kind: UITweetArrived, Handle: h, Tweet: t}}, true
}

func (m *FeedMachine) bury(h Handle) {
	delete(m.streams, h)
	m.tombstones.Add(h, struct{}{})
}

func (m *FeedMachine) warn(h Handle, msg string) {
	if _, ok := m.warnings.Allow(msg); !ok {
		return
	}
	m.logger.Warning().Uint64("handle", uint64(h)).Log(msg)
}

func endpointHost(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		if u, err := url.Parse(endpoint); err == nil {
			return u.Host
		}
	}
	return endpoint
}
