/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedContextDeliversTweetOnce(t *testing.T) {
	drv := NewLoopbackDriver()
	f := newStubFactory()
	fc, err := New(f, WithDriver(drv))
	require.NoError(t, err)
	defer fc.Close()

	rec := newRecorder()
	h := startStreaming(t, fc, drv, rec.onTweet)
	assert.Equal(t, Handle(1), h)

	require.NoError(t, drv.InjectTweets(h, Tweet{UserName: "alice", Body: "hi"}))
	f.waitEmit(t)
	f.handler.Wakeup()

	assert.Equal(t, []Tweet{{UserName: "alice", Body: "hi"}}, rec.got())
	assert.EqualValues(t, 1, f.emits.Load())
}

func TestFeedContextDestroyDropsLaterTweets(t *testing.T) {
	drv := NewLoopbackDriver()
	f := newStubFactory()
	fc, err := New(f, WithDriver(drv))
	require.NoError(t, err)

	rec := newRecorder()
	h := startStreaming(t, fc, drv, rec.onTweet)

	require.NoError(t, fc.StreamDestroy(h))
	require.NoError(t, drv.InjectTweets(h, Tweet{UserName: "alice", Body: "too late"}))

	require.Eventually(t, func() bool { return !drv.Connected(h) && len(drv.events) == 0 }, waitFor, tick)
	f.handler.Wakeup()
	require.NoError(t, fc.Close())
	f.handler.Wakeup()

	assert.Empty(t, rec.got())
}

func TestFeedContextDestroyPurgesQueuedTweets(t *testing.T) {
	drv := NewLoopbackDriver()
	f := newStubFactory()
	fc, err := New(f, WithDriver(drv))
	require.NoError(t, err)
	defer fc.Close()

	rec := newRecorder()
	h := startStreaming(t, fc, drv, rec.onTweet)

	require.NoError(t, drv.InjectTweets(h,
		Tweet{UserName: "alice", Body: "one"},
		Tweet{UserName: "alice", Body: "two"},
	))
	require.Eventually(t, func() bool { return fc.Stats().PendingEvents == 2 }, waitFor, tick)

	require.NoError(t, fc.StreamDestroy(h))
	require.Eventually(t, func() bool { return fc.Stats().PendingEvents == 0 }, waitFor, tick)

	f.handler.Wakeup()
	assert.Empty(t, rec.got())
}

func TestFeedContextWakeupCoalescing(t *testing.T) {
	drv := NewLoopbackDriver()
	f := newStubFactory()
	fc, err := New(f, WithDriver(drv))
	require.NoError(t, err)
	defer fc.Close()

	rec := newRecorder()
	h := startStreaming(t, fc, drv, rec.onTweet)

	const k = 5
	want := make([]Tweet, 0, k)
	for i := 0; i < k; i++ {
		tw := Tweet{ID: fmt.Sprint(i), UserName: "bob", Body: fmt.Sprintf("tweet %d", i)}
		want = append(want, tw)
		require.NoError(t, drv.InjectTweets(h, tw))
	}
	require.Eventually(t, func() bool { return fc.Stats().PendingEvents == k }, waitFor, tick)
	assert.EqualValues(t, 1, f.emits.Load())

	f.handler.Wakeup()
	assert.Equal(t, want, rec.got())
	assert.EqualValues(t, 1, fc.Stats().Wakeups)

	// the next event emits again
	require.NoError(t, drv.InjectTweets(h, Tweet{UserName: "bob", Body: "again"}))
	require.Eventually(t, func() bool { return f.emits.Load() == 2 }, waitFor, tick)
}

func TestFeedContextOrderPreserved(t *testing.T) {
	m := &recordingMachine{}
	fc, err := New(newStubFactory(), WithStateMachine(m))
	require.NoError(t, err)

	var want []ControlMessage
	for i := 0; i < 50; i++ {
		h, err := fc.StreamCreate(StreamConfig{Endpoint: fmt.Sprint(i)})
		require.NoError(t, err)
		want = append(want, CreateMsg(h, StreamConfig{Endpoint: fmt.Sprint(i)}))
		require.NoError(t, fc.StreamStart(h, nil))
		want = append(want, StartMsg(h))
		if i%3 == 0 {
			require.NoError(t, fc.StreamDestroy(h))
			want = append(want, DestroyMsg(h))
		}
	}

	require.Eventually(t, func() bool { return len(m.seen()) == len(want) }, waitFor, tick)
	require.NoError(t, fc.Close())
	assert.Equal(t, want, m.seen())
}

func TestFeedContextHandlesUnique(t *testing.T) {
	fc, err := New(newStubFactory(), WithConcurrentCreators())
	require.NoError(t, err)
	defer fc.Close()

	const workers, each = 8, 100
	var (
		mu   sync.Mutex
		seen = make(map[Handle]bool)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				h, err := fc.StreamCreate(StreamConfig{})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[h], "handle %d issued twice", h)
				seen[h] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each)
}

func TestFeedContextStartUnknownHandle(t *testing.T) {
	f := newStubFactory()
	fc, err := New(f)
	require.NoError(t, err)
	defer fc.Close()

	assert.ErrorIs(t, fc.StreamStart(42, nil), ErrUnknownHandle)
	assert.NoError(t, fc.StreamDestroy(42))

	rec := newRecorder()
	fc.OnStreamClosed(rec.onClose)
	h, err := fc.StreamCreate(StreamConfig{})
	require.NoError(t, err)
	require.NoError(t, fc.StreamDestroy(h))
	require.NoError(t, fc.StreamStart(h, rec.onTweet))

	f.waitEmit(t)
	f.handler.Wakeup()
	closeErr, ok := rec.closeErr(h)
	require.True(t, ok)
	assert.ErrorIs(t, closeErr, ErrUnknownHandle)
}

func TestFeedContextDriverFailureClosesStream(t *testing.T) {
	drv := &failingDriver{events: make(chan TransportEvent)}
	f := newStubFactory()
	fc, err := New(f, WithDriver(drv))
	require.NoError(t, err)
	defer fc.Close()

	rec := newRecorder()
	fc.OnStreamClosed(rec.onClose)
	h, err := fc.StreamCreate(StreamConfig{})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, rec.onTweet))

	f.waitEmit(t)
	f.handler.Wakeup()

	closeErr, ok := rec.closeErr(h)
	require.True(t, ok)
	var failure *DriverFailure
	require.ErrorAs(t, closeErr, &failure)
	assert.Equal(t, h, failure.Handle)
	assert.Equal(t, "open_connection", failure.Op)
	assert.ErrorIs(t, closeErr, errDialRefused)

	// the domain goroutine is still alive
	h2, err := fc.StreamCreate(StreamConfig{})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h2, nil))
	f.waitEmit(t)
}

func TestFeedContextEndlessDriverFailuresCloseStream(t *testing.T) {
	drv := &failingDriver{events: make(chan TransportEvent)}
	f := newStubFactory()
	m := NewFeedMachine(WithReconnectRates(nil))
	fc, err := New(f, WithDriver(drv), WithStateMachine(m))
	require.NoError(t, err)

	rec := newRecorder()
	fc.OnStreamClosed(rec.onClose)
	h, err := fc.StreamCreate(StreamConfig{Reconnect: true})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, rec.onTweet))

	f.waitEmit(t)
	f.handler.Wakeup()
	closeErr, ok := rec.closeErr(h)
	require.True(t, ok, "no terminal close reported")
	assert.ErrorIs(t, closeErr, ErrFailureChain)
	assert.ErrorIs(t, closeErr, errDialRefused)
	var failure *DriverFailure
	require.ErrorAs(t, closeErr, &failure)
	assert.Equal(t, h, failure.Handle)

	require.NoError(t, fc.Close())
	assert.Equal(t, StateClosed, m.State(h))
	assert.EqualValues(t, 1, f.emits.Load())
}

func TestFeedContextRejectedDestroyKeepsDelivering(t *testing.T) {
	drv := NewLoopbackDriver()
	f := newStubFactory()
	m := &gatedMachine{FeedMachine: NewFeedMachine(), blockAt: 3, blocked: make(chan struct{}), gate: make(chan struct{})}
	fc, err := New(f, WithDriver(drv), WithStateMachine(m), WithControlCapacity(2))
	require.NoError(t, err)
	defer fc.Close()

	rec := newRecorder()
	h := startStreaming(t, fc, drv, rec.onTweet)

	// the third control message parks the domain goroutine
	_, err = fc.StreamCreate(StreamConfig{})
	require.NoError(t, err)
	<-m.blocked
	for i := 0; i < 2; i++ {
		_, err = fc.StreamCreate(StreamConfig{})
		require.NoError(t, err)
	}
	assert.ErrorIs(t, fc.StreamDestroy(h), ErrQueueFull)
	close(m.gate)

	require.NoError(t, drv.InjectTweets(h, Tweet{UserName: "alice", Body: "still here"}))
	f.waitEmit(t)
	f.handler.Wakeup()
	assert.Equal(t, []Tweet{{UserName: "alice", Body: "still here"}}, rec.got())

	require.NoError(t, fc.Close())
	assert.Equal(t, StateStreaming, m.State(h))
}

func TestFeedContextStateMachinePanicIsContained(t *testing.T) {
	drv := NewLoopbackDriver()
	f := newStubFactory()
	m := &panickyMachine{FeedMachine: NewFeedMachine(), bad: 1}
	fc, err := New(f, WithDriver(drv), WithStateMachine(m))
	require.NoError(t, err)
	defer fc.Close()

	rec := newRecorder()
	fc.OnStreamClosed(rec.onClose)
	h, err := fc.StreamCreate(StreamConfig{})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, rec.onTweet))

	f.waitEmit(t)
	f.handler.Wakeup()
	closeErr, ok := rec.closeErr(h)
	require.True(t, ok)
	assert.ErrorContains(t, closeErr, "state machine panic")
	assert.Equal(t, StateClosed, m.State(h))

	h2 := startStreaming(t, fc, drv, rec.onTweet)
	assert.Equal(t, Handle(2), h2)
}

func TestFeedContextCloseTerminatesWithManyStreams(t *testing.T) {
	drv := NewLoopbackDriver()
	f := newStubFactory()
	fc, err := New(f, WithDriver(drv))
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		h, err := fc.StreamCreate(StreamConfig{})
		require.NoError(t, err)
		require.NoError(t, fc.StreamStart(h, func(Handle, Tweet) {}))
	}

	done := make(chan error, 1)
	go func() { done <- fc.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("Close did not return")
	}

	select {
	case <-fc.Done():
	default:
		t.Fatalf("domain goroutine still running after Close")
	}
	assert.EqualValues(t, 1, f.disposed.Load())
	assert.NoError(t, fc.Close())
	assert.EqualValues(t, 1, f.disposed.Load())

	_, err = fc.StreamCreate(StreamConfig{})
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.ErrorIs(t, fc.StreamStart(1, nil), ErrChannelClosed)
	assert.ErrorIs(t, fc.StreamDestroy(1), ErrChannelClosed)
	assert.ErrorIs(t, drv.Inject(TransportEvent{}), ErrChannelClosed)
}

func TestNewReportsRegistrationFailure(t *testing.T) {
	boom := errors.New("no main loop")
	disposed := false
	_, err := New(FactoryFunc(func(UISignalHandler) (Emitter, Disposer, error) {
		return nil, DisposerFunc(func() { disposed = true }), boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.True(t, disposed)

	_, err = New(nil)
	assert.Error(t, err)
}

var errDialRefused = errors.New("dial refused")

type failingDriver struct {
	events chan TransportEvent
}

func (d *failingDriver) Exec(ev IOEvent) error {
	if ev.Kind == IOOpenConnection {
		return errDialRefused
	}
	return nil
}

func (d *failingDriver) Events() <-chan TransportEvent { return d.events }

func (d *failingDriver) Close() error { return nil }

type recordingMachine struct {
	mu   sync.Mutex
	msgs []ControlMessage
}

func (m *recordingMachine) OnControl(msg ControlMessage) Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return Output{}
}

func (m *recordingMachine) OnTransport(TransportEvent) Output { return Output{} }

func (m *recordingMachine) Continue(Handle) (Output, bool) { return Output{}, false }

func (m *recordingMachine) seen() []ControlMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ControlMessage(nil), m.msgs...)
}

// gatedMachine blocks on its blockAt-th control message until gate closes.
type gatedMachine struct {
	*FeedMachine
	blockAt int
	seen    int
	blocked chan struct{}
	gate    chan struct{}
}

func (m *gatedMachine) OnControl(msg ControlMessage) Output {
	m.seen++
	if m.seen == m.blockAt {
		close(m.blocked)
		<-m.gate
	}
	return m.FeedMachine.OnControl(msg)
}

type panickyMachine struct {
	*FeedMachine
	bad Handle
}

func (m *panickyMachine) OnControl(msg ControlMessage) Output {
	if msg.Kind == ControlStart && msg.Handle == m.bad {
		panic("boom")
	}
	return m.FeedMachine.OnControl(msg)
}
