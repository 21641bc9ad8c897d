/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// stubFactory records emits and leaves running Wakeup to the test, which
// plays the host loop.
type stubFactory struct {
	handler  UISignalHandler
	emits    atomic.Int64
	disposed atomic.Int64
	emitted  chan struct{}
}

func newStubFactory() *stubFactory {
	return &stubFactory{emitted: make(chan struct{}, 1024)}
}

func (f *stubFactory) Register(h UISignalHandler) (Emitter, Disposer, error) {
	f.handler = h
	emit := EmitterFunc(func() {
		f.emits.Add(1)
		select {
		case f.emitted <- struct{}{}:
		default:
		}
	})
	return emit, OnceDisposer(func() { f.disposed.Add(1) }), nil
}

func (f *stubFactory) waitEmit(t *testing.T) {
	t.Helper()
	select {
	case <-f.emitted:
	case <-time.After(waitFor):
		t.Fatalf("wakeup signal was not emitted")
	}
}

type recorder struct {
	mu     sync.Mutex
	tweets []Tweet
	closed map[Handle]error
}

func newRecorder() *recorder {
	return &recorder{closed: make(map[Handle]error)}
}

func (r *recorder) onTweet(_ Handle, t Tweet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tweets = append(r.tweets, t)
}

func (r *recorder) onClose(h Handle, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed[h] = err
}

func (r *recorder) got() []Tweet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Tweet(nil), r.tweets...)
}

func (r *recorder) closeErr(h Handle) (error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err, ok := r.closed[h]
	return err, ok
}

// startStreaming creates and starts one stream and waits until the
// subscribe request has been written.
func startStreaming(t *testing.T, fc *FeedContext, drv *LoopbackDriver, cb TweetCallback) Handle {
	t.Helper()
	h, err := fc.StreamCreate(StreamConfig{Endpoint: "stream.local:443", Track: []string{"go"}})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, cb))
	require.Eventually(t, func() bool { return len(drv.Sent(h)) == 1 }, waitFor, tick)
	return h
}
