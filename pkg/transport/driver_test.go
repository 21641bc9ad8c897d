/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/tweetfeed-go/pkg/feedproto"
	"github.com/crrow/tweetfeed-go/pkg/feedserver"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

const waitFor = 2 * time.Second

// pump plays the host loop: every emit is answered by a Wakeup on the test
// goroutine through drain.
type pump struct {
	signal  chan struct{}
	handler tweetfeed.UISignalHandler

	mu     sync.Mutex
	tweets []tweetfeed.Tweet
	closed map[tweetfeed.Handle]error
}

func newPump() *pump {
	return &pump{signal: make(chan struct{}, 1), closed: make(map[tweetfeed.Handle]error)}
}

func (p *pump) Register(h tweetfeed.UISignalHandler) (tweetfeed.Emitter, tweetfeed.Disposer, error) {
	p.handler = h
	emit := tweetfeed.EmitterFunc(func() {
		select {
		case p.signal <- struct{}{}:
		default:
		}
	})
	return emit, tweetfeed.OnceDisposer(nil), nil
}

func (p *pump) onTweet(_ tweetfeed.Handle, t tweetfeed.Tweet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tweets = append(p.tweets, t)
}

func (p *pump) onClose(h tweetfeed.Handle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed[h] = err
}

// drain runs wakeups until cond holds.
func (p *pump) drain(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		p.mu.Lock()
		ok := cond()
		p.mu.Unlock()
		if ok {
			return
		}
		select {
		case <-p.signal:
			p.handler.Wakeup()
		case <-deadline:
			t.Fatalf("condition not met before deadline")
		}
	}
}

func TestDialAddr(t *testing.T) {
	for _, tc := range []struct {
		endpoint string
		want     string
		err      bool
	}{
		{endpoint: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		{endpoint: "https://stream.example.com/1.1", want: "stream.example.com:443"},
		{endpoint: "http://stream.example.com", want: "stream.example.com:80"},
		{endpoint: "https://stream.example.com:8443", want: "stream.example.com:8443"},
		{endpoint: "", err: true},
		{endpoint: "no-port", err: true},
	} {
		got, err := dialAddr(tc.endpoint)
		if tc.err {
			assert.Error(t, err, tc.endpoint)
			continue
		}
		require.NoError(t, err, tc.endpoint)
		assert.Equal(t, tc.want, got)
	}
}

func TestNetDriverStreamsFromServer(t *testing.T) {
	srv, err := feedserver.Start("127.0.0.1:0", feedserver.WithKeepAlive(0))
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	p := newPump()
	fc, err := tweetfeed.New(p, tweetfeed.WithDriver(NewNetDriver(WithTimeout(time.Second))))
	require.NoError(t, err)
	defer fc.Close()
	fc.OnStreamClosed(p.onClose)

	h, err := fc.StreamCreate(tweetfeed.StreamConfig{Endpoint: srv.Addr(), Track: []string{"golang"}})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, p.onTweet))
	require.Eventually(t, func() bool { return srv.Subscribers() == 1 }, waitFor, 5*time.Millisecond)

	_, err = srv.Publish(feedproto.Status{Text: "nothing relevant", User: feedproto.User{ScreenName: "x"}})
	require.NoError(t, err)
	_, err = srv.Publish(feedproto.Status{ID: "7", Text: "golang 1.25", User: feedproto.User{ScreenName: "gopher"}})
	require.NoError(t, err)

	p.drain(t, func() bool { return len(p.tweets) == 1 })
	assert.Equal(t, tweetfeed.Tweet{ID: "7", UserName: "gopher", Body: "golang 1.25"}, p.tweets[0])

	// server going away ends the stream without an error
	require.NoError(t, srv.Close())
	p.drain(t, func() bool { _, ok := p.closed[h]; return ok })
	assert.NoError(t, p.closed[h])
}

func TestNetDriverDialFailure(t *testing.T) {
	refused := errors.New("refused")
	drv := NewNetDriver(WithDial(func(context.Context, string, string) (net.Conn, error) {
		return nil, refused
	}))

	p := newPump()
	fc, err := tweetfeed.New(p, tweetfeed.WithDriver(drv))
	require.NoError(t, err)
	defer fc.Close()
	fc.OnStreamClosed(p.onClose)

	h, err := fc.StreamCreate(tweetfeed.StreamConfig{Endpoint: "stream.invalid:443"})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, p.onTweet))

	p.drain(t, func() bool { _, ok := p.closed[h]; return ok })
	var failure *tweetfeed.DriverFailure
	require.ErrorAs(t, p.closed[h], &failure)
	assert.Equal(t, "dial", failure.Op)
	assert.ErrorIs(t, p.closed[h], refused)
}

func TestNetDriverOverPipe(t *testing.T) {
	client, server := net.Pipe()
	drv := NewNetDriver(WithDial(func(context.Context, string, string) (net.Conn, error) {
		return client, nil
	}))
	defer drv.Close()

	require.NoError(t, drv.Exec(tweetfeed.IOEvent{Kind: tweetfeed.IOOpenConnection, Handle: 4, Config: tweetfeed.StreamConfig{Endpoint: "pipe:1"}}))
	ev := <-drv.Events()
	assert.Equal(t, tweetfeed.TransportEvent{Kind: tweetfeed.TransportConnected, Handle: 4}, ev)

	go func() { _, _ = server.Write([]byte("hello")) }()
	ev = <-drv.Events()
	assert.Equal(t, tweetfeed.TransportData, ev.Kind)
	assert.Equal(t, "hello", string(ev.Data))

	go func() {
		buf := make([]byte, 3)
		_, _ = server.Read(buf)
	}()
	require.NoError(t, drv.Exec(tweetfeed.IOEvent{Kind: tweetfeed.IOSendBytes, Handle: 4, Data: []byte("abc")}))

	// a deliberate close is silent
	require.NoError(t, drv.Exec(tweetfeed.IOEvent{Kind: tweetfeed.IOCloseConnection, Handle: 4}))
	select {
	case ev := <-drv.Events():
		t.Fatalf("unexpected event after close: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Error(t, drv.Exec(tweetfeed.IOEvent{Kind: tweetfeed.IOSendBytes, Handle: 4, Data: []byte("x")}))
}

func TestNetDriverClosedRejectsCommands(t *testing.T) {
	drv := NewNetDriver()
	require.NoError(t, drv.Close())
	assert.ErrorIs(t, drv.Exec(tweetfeed.IOEvent{Kind: tweetfeed.IOOpenConnection, Handle: 1}), tweetfeed.ErrChannelClosed)
}

func TestStubDriverReplaysCannedTweet(t *testing.T) {
	p := newPump()
	fc, err := tweetfeed.New(p, tweetfeed.WithDriver(NewStubDriver(WithCloseAfterReplay())))
	require.NoError(t, err)
	defer fc.Close()
	fc.OnStreamClosed(p.onClose)

	h, err := fc.StreamCreate(tweetfeed.StreamConfig{Endpoint: "stub:0"})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, p.onTweet))

	p.drain(t, func() bool { _, ok := p.closed[h]; return ok })
	assert.Equal(t, []tweetfeed.Tweet{DefaultStubTweet}, p.tweets)
	assert.NoError(t, p.closed[h])
}

func TestStubDriverCustomTweets(t *testing.T) {
	tweets := []tweetfeed.Tweet{
		{UserName: "a", Body: "one"},
		{UserName: "b", Body: "two"},
	}
	p := newPump()
	fc, err := tweetfeed.New(p, tweetfeed.WithDriver(NewStubDriver(WithTweets(tweets...))))
	require.NoError(t, err)
	defer fc.Close()

	h, err := fc.StreamCreate(tweetfeed.StreamConfig{})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, p.onTweet))

	p.drain(t, func() bool { return len(p.tweets) == 2 })
	assert.Equal(t, tweets, p.tweets)
}
