/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package cxev

import (
	"errors"
	"unsafe"

	"github.com/jupiterrider/ffi"
)

// AsyncInit initializes an async watcher. An async watcher is the only
// libxev object that may be touched from a thread other than the loop's:
// AsyncNotify wakes a pending AsyncWait on the loop thread.
func AsyncInit(w *Watcher) error {
	if loadErr != nil {
		return loadErr
	}
	var ret ffi.Arg
	ptr := unsafe.Pointer(w)
	fnAsyncInit.Call(&ret, &ptr)
	if int32(ret) != 0 {
		return errors.New("xev_async_init failed")
	}
	return nil
}

// AsyncDeinit releases resources for an async watcher.
func AsyncDeinit(w *Watcher) {
	ptr := unsafe.Pointer(w)
	fnAsyncDeinit.Call(nil, &ptr)
}

// AsyncNotify wakes the loop waiting on w. Notifications made before the
// wait fires coalesce into one callback. Safe from any thread.
func AsyncNotify(w *Watcher) error {
	var ret ffi.Arg
	ptr := unsafe.Pointer(w)
	fnAsyncNotify.Call(&ret, &ptr)
	if int32(ret) != 0 {
		return errors.New("xev_async_notify failed")
	}
	return nil
}

// AsyncWait arms w on loop. cb runs on the loop thread after a notify;
// returning Rearm keeps waiting.
func AsyncWait(w *Watcher, loop *Loop, c *Completion, userdata, cb uintptr) {
	wPtr := unsafe.Pointer(w)
	loopPtr := unsafe.Pointer(loop)
	cPtr := unsafe.Pointer(c)
	fnAsyncWait.Call(nil, &wPtr, &loopPtr, &cPtr, &userdata, &cb)
}

// AsyncWaitWithCallback registers cb and arms the watcher. The returned ID
// must be passed to UnregisterCallback once the watcher is done.
func AsyncWaitWithCallback(w *Watcher, loop *Loop, c *Completion, cb Callback) uintptr {
	id := RegisterCallback(cb)
	AsyncWait(w, loop, c, id, CallbackPtr())
	return id
}
