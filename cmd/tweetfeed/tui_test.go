/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

func testModel(feed *feedLog) model {
	return model{
		feed:     feed,
		endpoint: "127.0.0.1:8089",
		stats:    func() tweetfeed.Stats { return tweetfeed.Stats{Wakeups: 2} },
	}
}

func TestModelRendersFeed(t *testing.T) {
	feed := &feedLog{}
	feed.onTweet(1, tweetfeed.Tweet{UserName: "Ryan Levick", Body: "Some Text"})

	next, _ := testModel(feed).Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	view := next.View()
	assert.Contains(t, view, "Ryan Levick")
	assert.Contains(t, view, "Some Text")
	assert.Contains(t, view, "1 tweets")
	assert.Contains(t, view, "2 wakeups")
	assert.NotContains(t, view, "stream closed")

	feed.onClosed(1, errors.New("reset"))
	assert.Contains(t, next.View(), "stream closed: reset")
}

func TestModelQuitKey(t *testing.T) {
	_, cmd := testModel(&feedLog{}).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
