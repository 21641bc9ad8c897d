/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"errors"
	"fmt"
	"time"

	"github.com/crrow/tweetfeed-go/pkg/cxev"
)

// TimerEvent is sent through the channel returned by RunChan.
type TimerEvent struct {
	Timer *Timer
	Err   error
}

// Timer schedules callbacks on a Loop. Create with NewTimer, schedule with
// RunFunc, RunWithHandler, or RunChan.
type Timer struct {
	watcher    *cxev.Watcher
	completion *cxev.Completion
	handler    TimerHandler
	callbackID uintptr
}

// NewTimer creates a new timer. Call Close when done.
func NewTimer() (*Timer, error) {
	t := &Timer{watcher: new(cxev.Watcher), completion: new(cxev.Completion)}
	if err := cxev.TimerInit(t.watcher); err != nil {
		return nil, err
	}
	return t, nil
}

// Close releases timer resources and unregisters any callback.
func (t *Timer) Close() {
	if t.callbackID != 0 {
		cxev.UnregisterCallback(t.callbackID)
		t.callbackID = 0
	}
	cxev.TimerDeinit(t.watcher)
}

// RunWithHandler schedules the timer with a handler.
func (t *Timer) RunWithHandler(loop *Loop, delay time.Duration, handler TimerHandler) error {
	if handler == nil {
		return errors.New("xev: nil timer handler")
	}
	if t.callbackID != 0 {
		cxev.UnregisterCallback(t.callbackID)
	}
	t.handler = handler
	t.callbackID = cxev.TimerRunWithCallback(t.watcher, loop.inner, t.completion, uint64(delay.Milliseconds()), t.callback)
	return nil
}

// RunFunc schedules the timer with a callback function. Return Stop to
// fire once, or Continue to repeat.
func (t *Timer) RunFunc(loop *Loop, delay time.Duration, fn func(t *Timer, result error) Action) error {
	return t.RunWithHandler(loop, delay, TimerFunc(fn))
}

// RunChan schedules a one-shot timer whose event arrives on the returned
// channel.
func (t *Timer) RunChan(loop *Loop, delay time.Duration) (<-chan TimerEvent, error) {
	ch := make(chan TimerEvent, 1)
	handler := TimerFunc(func(timer *Timer, result error) Action {
		ch <- TimerEvent{Timer: timer, Err: result}
		close(ch)
		return Stop
	})
	if err := t.RunWithHandler(loop, delay, handler); err != nil {
		close(ch)
		return nil, err
	}
	return ch, nil
}

func (t *Timer) callback(_ *cxev.Loop, _ *cxev.Completion, result int32, _ uintptr) cxev.CbAction {
	var err error
	if result != 0 {
		err = fmt.Errorf("xev: timer error %d", result)
	}
	return cxev.CbAction(toCbAction(t.handler.OnTimer(t, err)))
}
