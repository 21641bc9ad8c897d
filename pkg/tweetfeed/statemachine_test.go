/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/tweetfeed-go/pkg/feedproto"
)

func wireTweets(t *testing.T, tweets ...Tweet) []byte {
	t.Helper()
	var wire []byte
	for _, tw := range tweets {
		var err error
		wire, err = feedproto.AppendEncode(wire, feedproto.Status{Text: tw.Body, User: feedproto.User{ScreenName: tw.UserName}})
		require.NoError(t, err)
	}
	return wire
}

func connect(t *testing.T, m *FeedMachine, h Handle, cfg StreamConfig) {
	t.Helper()
	assert.Equal(t, Output{}, m.OnControl(CreateMsg(h, cfg)))
	assert.Equal(t, StateCreated, m.State(h))

	out := m.OnControl(StartMsg(h))
	require.NotNil(t, out.IO)
	assert.Nil(t, out.UI)
	assert.Equal(t, IOOpenConnection, out.IO.Kind)
	assert.Equal(t, StateConnecting, m.State(h))

	out = m.OnTransport(TransportEvent{Kind: TransportConnected, Handle: h})
	require.NotNil(t, out.IO)
	assert.Equal(t, IOSendBytes, out.IO.Kind)
	assert.Equal(t, StateStreaming, m.State(h))
}

func TestFeedMachineTransitions(t *testing.T) {
	m := NewFeedMachine()
	cfg := StreamConfig{Endpoint: "https://stream.example.com/", Track: []string{"golang"}}
	connect(t, m, 1, cfg)

	out := m.OnTransport(TransportEvent{
		Kind:   TransportData,
		Handle: 1,
		Data:   append(feedproto.ResponseHeader(200, "OK"), wireTweets(t, Tweet{UserName: "alice", Body: "hi"})...),
	})
	require.NotNil(t, out.UI)
	assert.Nil(t, out.IO)
	assert.Equal(t, UIEvent{Kind: UITweetArrived, Handle: 1, Tweet: Tweet{UserName: "alice", Body: "hi"}}, *out.UI)

	out = m.OnControl(DestroyMsg(1))
	require.NotNil(t, out.IO)
	assert.Equal(t, IOCloseConnection, out.IO.Kind)
	assert.Equal(t, StateClosed, m.State(1))

	// closed handles ignore everything
	assert.Equal(t, Output{}, m.OnTransport(TransportEvent{Kind: TransportData, Handle: 1, Data: wireTweets(t, Tweet{UserName: "a", Body: "b"})}))
	assert.Equal(t, Output{}, m.OnControl(DestroyMsg(1)))
	assert.Equal(t, Output{}, m.OnControl(CreateMsg(1, cfg)))
	assert.Equal(t, StateClosed, m.State(1))
}

func TestFeedMachineSubscribeRequestUsesEndpointHost(t *testing.T) {
	m := NewFeedMachine()
	m.OnControl(CreateMsg(1, StreamConfig{Endpoint: "https://stream.example.com:8443/x", Track: []string{"go"}}))
	m.OnControl(StartMsg(1))
	out := m.OnTransport(TransportEvent{Kind: TransportConnected, Handle: 1})
	require.NotNil(t, out.IO)
	assert.True(t, strings.Contains(string(out.IO.Data), "Host: stream.example.com:8443\r\n"))
	assert.True(t, strings.Contains(string(out.IO.Data), "track=go"))
}

func TestFeedMachineRepeatedDispatch(t *testing.T) {
	m := NewFeedMachine()
	connect(t, m, 3, StreamConfig{})

	out := m.OnTransport(TransportEvent{Kind: TransportData, Handle: 3, Data: wireTweets(t,
		Tweet{UserName: "a", Body: "1"},
		Tweet{UserName: "b", Body: "2"},
		Tweet{UserName: "c", Body: "3"},
	)})
	require.NotNil(t, out.UI)
	got := []string{out.UI.Tweet.Body}
	for {
		next, more := m.Continue(3)
		if !more {
			break
		}
		require.NotNil(t, next.UI)
		assert.Nil(t, next.IO)
		got = append(got, next.UI.Tweet.Body)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)

	_, more := m.Continue(3)
	assert.False(t, more)
	_, more = m.Continue(99)
	assert.False(t, more)
}

func TestFeedMachineIgnoresOutOfOrderInput(t *testing.T) {
	m := NewFeedMachine()
	m.OnControl(CreateMsg(1, StreamConfig{}))

	// data and connected before start are dropped
	assert.Equal(t, Output{}, m.OnTransport(TransportEvent{Kind: TransportConnected, Handle: 1}))
	assert.Equal(t, Output{}, m.OnTransport(TransportEvent{Kind: TransportData, Handle: 1, Data: []byte("{}\r\n")}))
	assert.Equal(t, StateCreated, m.State(1))

	m.OnControl(StartMsg(1))
	assert.Equal(t, Output{}, m.OnControl(StartMsg(1)))
	assert.Equal(t, StateConnecting, m.State(1))

	// destroy before a connection was requested emits nothing
	m.OnControl(CreateMsg(2, StreamConfig{}))
	assert.Equal(t, Output{}, m.OnControl(DestroyMsg(2)))
}

func TestFeedMachineStartUnknown(t *testing.T) {
	m := NewFeedMachine()
	out := m.OnControl(StartMsg(7))
	require.NotNil(t, out.UI)
	assert.Equal(t, UIStreamClosed, out.UI.Kind)
	assert.ErrorIs(t, out.UI.Err, ErrUnknownHandle)
}

func TestFeedMachineProtocolErrorClosesStream(t *testing.T) {
	m := NewFeedMachine()
	connect(t, m, 1, StreamConfig{})

	out := m.OnTransport(TransportEvent{Kind: TransportData, Handle: 1, Data: []byte("HTTP/1.1 401 Unauthorized\r\n\r\n")})
	require.NotNil(t, out.UI)
	require.NotNil(t, out.IO)
	assert.Equal(t, UIStreamClosed, out.UI.Kind)
	assert.Equal(t, IOCloseConnection, out.IO.Kind)
	var statusErr *feedproto.StatusError
	assert.ErrorAs(t, out.UI.Err, &statusErr)
	assert.Equal(t, StateClosed, m.State(1))
}

func TestFeedMachineOrderlyClose(t *testing.T) {
	m := NewFeedMachine()
	connect(t, m, 1, StreamConfig{Reconnect: true})

	out := m.OnTransport(TransportEvent{Kind: TransportClosed, Handle: 1})
	require.NotNil(t, out.UI)
	assert.Equal(t, UIStreamClosed, out.UI.Kind)
	assert.NoError(t, out.UI.Err)
	assert.Equal(t, StateClosed, m.State(1))
}

func TestFeedMachineReconnectLimited(t *testing.T) {
	m := NewFeedMachine(WithReconnectRates(map[time.Duration]int{time.Minute: 1}))
	connect(t, m, 1, StreamConfig{Reconnect: true})

	failure := &DriverFailure{Handle: 1, Op: "read", Err: errors.New("reset")}
	out := m.OnTransport(TransportEvent{Kind: TransportClosed, Handle: 1, Err: failure})
	require.NotNil(t, out.IO)
	assert.Nil(t, out.UI)
	assert.Equal(t, IOOpenConnection, out.IO.Kind)
	assert.Equal(t, StateConnecting, m.State(1))

	m.OnTransport(TransportEvent{Kind: TransportConnected, Handle: 1})
	out = m.OnTransport(TransportEvent{Kind: TransportClosed, Handle: 1, Err: failure})
	require.NotNil(t, out.UI)
	assert.ErrorIs(t, out.UI.Err, ErrReconnectLimited)
	assert.ErrorIs(t, out.UI.Err, failure)
	assert.Equal(t, StateClosed, m.State(1))
}

func TestFeedMachineNoReconnectWithoutFlag(t *testing.T) {
	m := NewFeedMachine(WithReconnectRates(nil))
	connect(t, m, 1, StreamConfig{})

	boom := errors.New("reset")
	out := m.OnTransport(TransportEvent{Kind: TransportClosed, Handle: 1, Err: boom})
	require.NotNil(t, out.UI)
	assert.Nil(t, out.IO)
	assert.ErrorIs(t, out.UI.Err, boom)
}

func TestFeedMachineTombstonesBounded(t *testing.T) {
	m := NewFeedMachine(WithTombstones(2))
	for h := Handle(1); h <= 3; h++ {
		m.OnControl(CreateMsg(h, StreamConfig{}))
		m.OnControl(DestroyMsg(h))
	}
	// evicted, but below the highest created handle
	assert.Equal(t, StateClosed, m.State(1))
	assert.Equal(t, StateClosed, m.State(2))
	assert.Equal(t, StateClosed, m.State(3))
	assert.Equal(t, StateUnknown, m.State(4))
	assert.Equal(t, StateUnknown, m.State(0))
}

func TestFeedMachineDeliversTweetsBeforeMalformedLine(t *testing.T) {
	m := NewFeedMachine()
	connect(t, m, 1, StreamConfig{})

	data := append(wireTweets(t, Tweet{UserName: "a", Body: "1"}, Tweet{UserName: "b", Body: "2"}), "{oops\r\n"...)
	out := m.OnTransport(TransportEvent{Kind: TransportData, Handle: 1, Data: data})
	require.NotNil(t, out.UI)
	assert.Equal(t, "1", out.UI.Tweet.Body)

	out, more := m.Continue(1)
	require.True(t, more)
	require.NotNil(t, out.UI)
	assert.Equal(t, UITweetArrived, out.UI.Kind)
	assert.Equal(t, "2", out.UI.Tweet.Body)
	assert.Equal(t, StateStreaming, m.State(1))

	out, more = m.Continue(1)
	require.True(t, more)
	require.NotNil(t, out.UI)
	require.NotNil(t, out.IO)
	assert.Equal(t, UIStreamClosed, out.UI.Kind)
	assert.ErrorContains(t, out.UI.Err, "invalid status line")
	assert.Equal(t, IOCloseConnection, out.IO.Kind)
	assert.Equal(t, StateClosed, m.State(1))

	_, more = m.Continue(1)
	assert.False(t, more)
}
