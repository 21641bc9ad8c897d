/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/crrow/tweetfeed-go/pkg/teasignal"
	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

var tuiStub bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Show the stream in a terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		factory := teasignal.NewFactory()
		fc, err := tweetfeed.New(factory, feedOptions(tuiStub)...)
		if err != nil {
			return err
		}

		feed := &feedLog{}
		fc.OnStreamClosed(feed.onClosed)
		h, err := fc.StreamCreate(cfg.Stream)
		if err != nil {
			_ = fc.Close()
			return err
		}
		if err := fc.StreamStart(h, feed.onTweet); err != nil {
			_ = fc.Close()
			return err
		}

		p := tea.NewProgram(newModel(feed, cfg.Stream.Endpoint, fc), tea.WithAltScreen())
		factory.Bind(p)
		_, runErr := p.Run()
		if err := fc.Close(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().BoolVar(&tuiStub, "stub", false, "Replay a canned tweet instead of connecting")
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

var (
	quitKey   = key.NewBinding(key.WithKeys("ctrl+c", "q"))
	bottomKey = key.NewBinding(key.WithKeys("G", "end"))
)

// feedLog collects what the feed context delivers. Callbacks run inside
// Update, on the program goroutine.
type feedLog struct {
	tweets []tweetfeed.Tweet
	closed bool
	err    error
}

func (f *feedLog) onTweet(_ tweetfeed.Handle, t tweetfeed.Tweet) {
	f.tweets = append(f.tweets, t)
}

func (f *feedLog) onClosed(_ tweetfeed.Handle, err error) {
	f.closed = true
	f.err = err
}

func (f *feedLog) render() string {
	var b strings.Builder
	for _, t := range f.tweets {
		b.WriteString(userStyle.Render("@" + t.UserName))
		b.WriteString(" ")
		b.WriteString(t.Body)
		b.WriteString("\n")
	}
	return b.String()
}

type model struct {
	feed     *feedLog
	endpoint string
	stats    func() tweetfeed.Stats
	viewport viewport.Model
	ready    bool
}

func newModel(feed *feedLog, endpoint string, fc *tweetfeed.FeedContext) model {
	return model{feed: feed, endpoint: endpoint, stats: fc.Stats}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, bottomKey):
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.viewport.SetContent(m.feed.render())
		return m, nil

	case teasignal.WakeupMsg:
		follow := m.viewport.AtBottom()
		msg.Run()
		m.viewport.SetContent(m.feed.render())
		if follow {
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tweetfeed"))
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(m.endpoint))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(m.feed.render())
	}
	b.WriteString("\n")

	if m.feed.closed {
		if m.feed.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("stream closed: %v", m.feed.err)))
		} else {
			b.WriteString(subtitleStyle.Render("stream closed"))
		}
		b.WriteString("\n")
	}

	st := m.stats()
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d tweets • %d wakeups • %d dropped • q: Quit • G: Follow",
		len(m.feed.tweets), st.Wakeups, st.DroppedEvents)))
	return b.String()
}
