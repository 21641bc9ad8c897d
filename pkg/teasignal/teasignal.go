/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package teasignal delivers tweetfeed wakeups through a bubbletea program.
//
// The emitter sends a [WakeupMsg] into the program; the model runs it from
// Update, so handlers execute on the program's event loop:
//
//	func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
//	    switch msg := msg.(type) {
//	    case teasignal.WakeupMsg:
//	        msg.Run()
//	    }
//	    ...
//	}
package teasignal

import (
	"errors"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crrow/tweetfeed-go/pkg/tweetfeed"
)

// Sender is the part of *tea.Program used here.
type Sender interface {
	Send(msg tea.Msg)
}

// WakeupMsg asks the model to run a registered handler.
type WakeupMsg struct {
	reg *registration
}

// Run invokes the handler unless its registration was disposed.
func (m WakeupMsg) Run() {
	if m.reg == nil || m.reg.disposed.Load() {
		return
	}
	m.reg.handler.Wakeup()
}

type registration struct {
	handler  tweetfeed.UISignalHandler
	disposed atomic.Bool
	// held is set when an emit arrived before Bind.
	held bool
}

// Factory implements tweetfeed.WakeupSignalFactory. A context is usually
// created before the program that hosts it, so emits are held until Bind.
type Factory struct {
	mu     sync.Mutex
	sender Sender
	regs   []*registration
}

// NewFactory returns an unbound factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Bind attaches the program and flushes any emits held so far.
func (f *Factory) Bind(s Sender) {
	f.mu.Lock()
	f.sender = s
	var flush []*registration
	for _, r := range f.regs {
		if r.held {
			r.held = false
			flush = append(flush, r)
		}
	}
	f.mu.Unlock()

	for _, r := range flush {
		go s.Send(WakeupMsg{reg: r})
	}
}

// Register implements tweetfeed.WakeupSignalFactory.
func (f *Factory) Register(handler tweetfeed.UISignalHandler) (tweetfeed.Emitter, tweetfeed.Disposer, error) {
	if handler == nil {
		return nil, nil, errors.New("teasignal: nil handler")
	}
	r := &registration{handler: handler}
	f.mu.Lock()
	f.regs = append(f.regs, r)
	f.mu.Unlock()

	emit := tweetfeed.EmitterFunc(func() { f.emit(r) })
	dispose := tweetfeed.OnceDisposer(func() { f.dispose(r) })
	return emit, dispose, nil
}

// emit hands off to a goroutine: Program.Send blocks until the program
// reads the message.
func (f *Factory) emit(r *registration) {
	if r.disposed.Load() {
		return
	}
	f.mu.Lock()
	s := f.sender
	if s == nil {
		r.held = true
	}
	f.mu.Unlock()
	if s != nil {
		go s.Send(WakeupMsg{reg: r})
	}
}

func (f *Factory) dispose(r *registration) {
	r.disposed.Store(true)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.regs {
		if cur == r {
			f.regs = append(f.regs[:i], f.regs[i+1:]...)
			return
		}
	}
}
