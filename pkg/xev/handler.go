/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

// Action controls the behavior of a watcher after its callback returns.
type Action int

const (
	// Stop disarms the watcher after the callback returns.
	Stop Action = iota

	// Continue keeps the watcher armed. Timers fire again after the same
	// interval; async watchers wait for the next notify.
	Continue
)

// TimerHandler handles timer events.
//
// Implement it for stateful handling such as counting firings; [TimerFunc]
// covers the simple cases.
type TimerHandler interface {
	OnTimer(t *Timer, result error) Action
}

// TimerFunc is a function adapter for [TimerHandler].
type TimerFunc func(t *Timer, result error) Action

// OnTimer implements [TimerHandler].
func (f TimerFunc) OnTimer(t *Timer, result error) Action {
	return f(t, result)
}

// AsyncHandler handles async notifications on the loop thread.
type AsyncHandler interface {
	OnAsync(a *Async, result error) Action
}

// AsyncFunc is a function adapter for [AsyncHandler].
type AsyncFunc func(a *Async, result error) Action

// OnAsync implements [AsyncHandler].
func (f AsyncFunc) OnAsync(a *Async, result error) Action {
	return f(a, result)
}

func toCbAction(a Action) int32 {
	if a == Continue {
		return 1
	}
	return 0
}
