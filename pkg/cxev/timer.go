/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package cxev

import (
	"errors"
	"unsafe"

	"github.com/jupiterrider/ffi"
)

// TimerInit initializes a timer watcher.
func TimerInit(w *Watcher) error {
	if loadErr != nil {
		return loadErr
	}
	var ret ffi.Arg
	ptr := unsafe.Pointer(w)
	fnTimerInit.Call(&ret, &ptr)
	if int32(ret) != 0 {
		return errors.New("xev_timer_init failed")
	}
	return nil
}

// TimerDeinit releases resources for a timer watcher.
func TimerDeinit(w *Watcher) {
	ptr := unsafe.Pointer(w)
	fnTimerDeinit.Call(nil, &ptr)
}

// TimerRun schedules w to fire after delayMs. cb is a C function pointer,
// normally CallbackPtr(), and userdata is passed through to it.
func TimerRun(w *Watcher, loop *Loop, c *Completion, delayMs uint64, userdata, cb uintptr) {
	wPtr := unsafe.Pointer(w)
	loopPtr := unsafe.Pointer(loop)
	cPtr := unsafe.Pointer(c)
	fnTimerRun.Call(nil, &wPtr, &loopPtr, &cPtr, &delayMs, &userdata, &cb)
}

// TimerReset changes a running timer's delay, re-arming it if it already
// fired.
func TimerReset(w *Watcher, loop *Loop, c, cCancel *Completion, delayMs uint64, userdata, cb uintptr) {
	wPtr := unsafe.Pointer(w)
	loopPtr := unsafe.Pointer(loop)
	cPtr := unsafe.Pointer(c)
	cCancelPtr := unsafe.Pointer(cCancel)
	fnTimerReset.Call(nil, &wPtr, &loopPtr, &cPtr, &cCancelPtr, &delayMs, &userdata, &cb)
}

// TimerCancel cancels a pending timer.
func TimerCancel(w *Watcher, loop *Loop, c, cCancel *Completion, userdata, cb uintptr) {
	wPtr := unsafe.Pointer(w)
	loopPtr := unsafe.Pointer(loop)
	cPtr := unsafe.Pointer(c)
	cCancelPtr := unsafe.Pointer(cCancel)
	fnTimerCancel.Call(nil, &wPtr, &loopPtr, &cPtr, &cCancelPtr, &userdata, &cb)
}

// TimerRunWithCallback registers cb and starts the timer. The returned ID
// must be passed to UnregisterCallback once the timer is done.
func TimerRunWithCallback(w *Watcher, loop *Loop, c *Completion, delayMs uint64, cb Callback) uintptr {
	id := RegisterCallback(cb)
	TimerRun(w, loop, c, delayMs, id, CallbackPtr())
	return id
}
