/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package teasignal

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) { c <- msg }

func recv(t *testing.T, c chanSender) WakeupMsg {
	t.Helper()
	select {
	case msg := <-c:
		w, ok := msg.(WakeupMsg)
		require.True(t, ok, "unexpected message %T", msg)
		return w
	case <-time.After(2 * time.Second):
		t.Fatalf("no wakeup message")
		return WakeupMsg{}
	}
}

func TestEmitBeforeBindIsHeld(t *testing.T) {
	f := NewFactory()
	calls := 0
	emit, _, err := f.Register(tweetfeed.UISignalHandlerFunc(func() { calls++ }))
	require.NoError(t, err)

	emit.Emit()
	emit.Emit()

	s := make(chanSender, 4)
	f.Bind(s)
	recv(t, s).Run()
	assert.Equal(t, 1, calls)

	select {
	case msg := <-s:
		t.Fatalf("held emits should flush once, got %v", msg)
	case <-time.After(20 * time.Millisecond):
	}

	emit.Emit()
	recv(t, s).Run()
	assert.Equal(t, 2, calls)
}

func TestDisposedWakeupDoesNothing(t *testing.T) {
	f := NewFactory()
	s := make(chanSender, 4)
	f.Bind(s)

	calls := 0
	emit, dispose, err := f.Register(tweetfeed.UISignalHandlerFunc(func() { calls++ }))
	require.NoError(t, err)

	emit.Emit()
	msg := recv(t, s)
	dispose.Dispose()
	dispose.Dispose()
	msg.Run()
	emit.Emit()
	assert.Zero(t, calls)
	WakeupMsg{}.Run()

	_, _, err = f.Register(nil)
	assert.Error(t, err)
}

func TestFeedContextThroughProgramMessages(t *testing.T) {
	f := NewFactory()
	drv := tweetfeed.NewLoopbackDriver()
	fc, err := tweetfeed.New(f, tweetfeed.WithDriver(drv))
	require.NoError(t, err)
	defer fc.Close()

	var got []tweetfeed.Tweet
	h, err := fc.StreamCreate(tweetfeed.StreamConfig{Endpoint: "local:1"})
	require.NoError(t, err)
	require.NoError(t, fc.StreamStart(h, func(_ tweetfeed.Handle, tw tweetfeed.Tweet) { got = append(got, tw) }))
	require.Eventually(t, func() bool { return len(drv.Sent(h)) == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, drv.InjectTweets(h, tweetfeed.Tweet{UserName: "alice", Body: "hi"}))
	require.Eventually(t, func() bool { return fc.Stats().PendingEvents == 1 }, 2*time.Second, time.Millisecond)

	s := make(chanSender, 4)
	f.Bind(s)
	recv(t, s).Run()
	assert.Equal(t, []tweetfeed.Tweet{{UserName: "alice", Body: "hi"}}, got)
}
