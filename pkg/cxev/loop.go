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

// FFI function descriptors, prepared once during init() and reused for all
// calls.
var (
	fnLoopInit      ffi.Fun
	fnLoopDeinit    ffi.Fun
	fnLoopRun       ffi.Fun
	fnLoopNow       ffi.Fun
	fnLoopUpdateNow ffi.Fun

	fnTimerInit   ffi.Fun
	fnTimerDeinit ffi.Fun
	fnTimerRun    ffi.Fun
	fnTimerReset  ffi.Fun
	fnTimerCancel ffi.Fun

	fnAsyncInit   ffi.Fun
	fnAsyncDeinit ffi.Fun
	fnAsyncNotify ffi.Fun
	fnAsyncWait   ffi.Fun
)

// symbol describes one C function.
//
//	C type          Go type           ffi.Type
//	-------         -------           --------
//	int             int32             TypeSint32
//	int64_t         int64             TypeSint64
//	uint64_t        uint64            TypeUint64
//	void*           unsafe.Pointer    TypePointer
//	void            (no return)       TypeVoid
type symbol struct {
	fn   *ffi.Fun
	name string
	ret  *ffi.Type
	args []*ffi.Type
}

func ptrs(n int) []*ffi.Type {
	out := make([]*ffi.Type, n)
	for i := range out {
		out[i] = &ffi.TypePointer
	}
	return out
}

func symbols() []symbol {
	p := &ffi.TypePointer
	return []symbol{
		// int xev_loop_init(xev_loop*)
		{&fnLoopInit, "xev_loop_init", &ffi.TypeSint32, ptrs(1)},
		// void xev_loop_deinit(xev_loop*)
		{&fnLoopDeinit, "xev_loop_deinit", &ffi.TypeVoid, ptrs(1)},
		// int xev_loop_run(xev_loop*, xev_run_mode_t)
		{&fnLoopRun, "xev_loop_run", &ffi.TypeSint32, []*ffi.Type{p, &ffi.TypeSint32}},
		// int64_t xev_loop_now(xev_loop*)
		{&fnLoopNow, "xev_loop_now", &ffi.TypeSint64, ptrs(1)},
		// void xev_loop_update_now(xev_loop*)
		{&fnLoopUpdateNow, "xev_loop_update_now", &ffi.TypeVoid, ptrs(1)},

		// int xev_timer_init(xev_watcher*)
		{&fnTimerInit, "xev_timer_init", &ffi.TypeSint32, ptrs(1)},
		// void xev_timer_deinit(xev_watcher*)
		{&fnTimerDeinit, "xev_timer_deinit", &ffi.TypeVoid, ptrs(1)},
		// void xev_timer_run(w, loop, c, uint64_t next_ms, userdata, cb)
		{&fnTimerRun, "xev_timer_run", &ffi.TypeVoid, []*ffi.Type{p, p, p, &ffi.TypeUint64, p, p}},
		// void xev_timer_reset(w, loop, c, c_cancel, uint64_t next_ms, userdata, cb)
		{&fnTimerReset, "xev_timer_reset", &ffi.TypeVoid, []*ffi.Type{p, p, p, p, &ffi.TypeUint64, p, p}},
		// void xev_timer_cancel(w, loop, c, c_cancel, userdata, cb)
		{&fnTimerCancel, "xev_timer_cancel", &ffi.TypeVoid, ptrs(6)},

		// int xev_async_init(xev_watcher*)
		{&fnAsyncInit, "xev_async_init", &ffi.TypeSint32, ptrs(1)},
		// void xev_async_deinit(xev_watcher*)
		{&fnAsyncDeinit, "xev_async_deinit", &ffi.TypeVoid, ptrs(1)},
		// int xev_async_notify(xev_watcher*)
		{&fnAsyncNotify, "xev_async_notify", &ffi.TypeSint32, ptrs(1)},
		// void xev_async_wait(w, loop, c, userdata, cb)
		{&fnAsyncWait, "xev_async_wait", &ffi.TypeVoid, ptrs(5)},
	}
}

// registerFunctions looks up each symbol and prepares its call interface.
func registerFunctions() error {
	for _, s := range symbols() {
		fn, err := lib.Prep(s.name, s.ret, s.args...)
		if err != nil {
			return err
		}
		*s.fn = fn
	}
	return nil
}

// LoopInit initializes an event loop.
//
// Arguments are passed by pointer because libffi reads them from known
// memory locations:
//
//	var ret ffi.Arg
//	ptr := unsafe.Pointer(loop)
//	fnLoopInit.Call(&ret, &ptr)
func LoopInit(loop *Loop) error {
	if loadErr != nil {
		return loadErr
	}
	var ret ffi.Arg
	ptr := unsafe.Pointer(loop)
	fnLoopInit.Call(&ret, &ptr)
	if int32(ret) != 0 {
		return errors.New("xev_loop_init failed")
	}
	return nil
}

// LoopDeinit releases resources for an event loop.
func LoopDeinit(loop *Loop) {
	ptr := unsafe.Pointer(loop)
	fnLoopDeinit.Call(nil, &ptr)
}

// LoopRun runs the event loop with the specified mode.
func LoopRun(loop *Loop, mode RunMode) error {
	var ret ffi.Arg
	ptr := unsafe.Pointer(loop)
	m := int32(mode)
	fnLoopRun.Call(&ret, &ptr, &m)
	if int32(ret) != 0 {
		return errors.New("xev_loop_run failed")
	}
	return nil
}

// LoopNow returns the loop's cached timestamp in milliseconds.
func LoopNow(loop *Loop) int64 {
	var ret int64
	ptr := unsafe.Pointer(loop)
	fnLoopNow.Call(&ret, &ptr)
	return ret
}

// LoopUpdateNow refreshes the loop's cached timestamp.
func LoopUpdateNow(loop *Loop) {
	ptr := unsafe.Pointer(loop)
	fnLoopUpdateNow.Call(nil, &ptr)
}
