/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Go functions cannot be handed to C directly. A single libffi closure
// provides a stable C-callable address for every completion callback; the
// userdata value libxev passes through selects the Go function to run.
//
//	┌─────────────┐     callback ptr     ┌──────────────┐
//	│   libxev    │ ──────────────────▶ │ ffi.Closure  │
//	│  (C code)   │                      │ (asm thunk)  │
//	└─────────────┘                      └──────┬───────┘
//	                                            │
//	                                            ▼
//	                                    ┌───────────────────┐
//	                                    │ trampoline        │
//	                                    └───────┬───────────┘
//	                                            │ userdata → registry
//	                                            ▼
//	                                    ┌───────────────────┐
//	                                    │ Go Callback       │
//	                                    └───────────────────┘
//
// Timers and async watchers share the C signature
//
//	xev_cb_action cb(xev_loop*, xev_completion*, int result, void* userdata)
//
// so they share the closure too.

package cxev

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/jupiterrider/ffi"
)

// Callback is run on the loop thread when a timer fires or an async
// watcher is notified. result is 0 on success. Return Rearm to keep the
// watcher armed.
type Callback func(loop *Loop, c *Completion, result int32, userdata uintptr) CbAction

var (
	callbackRegistry sync.Map // map[uintptr]Callback
	callbackCounter  atomic.Uint64
)

// The closure is allocated once and lives for the program lifetime.
var (
	closureOnce sync.Once
	closure     *ffi.Closure
	closureCode unsafe.Pointer
	closureCif  ffi.Cif
	callbackPtr uintptr
)

func initClosure() {
	closureOnce.Do(func() {
		closure = ffi.ClosureAlloc(unsafe.Sizeof(ffi.Closure{}), &closureCode)

		if status := ffi.PrepCif(&closureCif, ffi.DefaultAbi, 4,
			&ffi.TypeSint32,  // xev_cb_action
			&ffi.TypePointer, // xev_loop*
			&ffi.TypePointer, // xev_completion*
			&ffi.TypeSint32,  // result
			&ffi.TypePointer, // userdata
		); status != ffi.OK {
			panic("cxev: failed to prepare callback CIF")
		}

		fn := ffi.NewCallback(trampoline)
		if status := ffi.PrepClosureLoc(closure, &closureCif, fn, nil, closureCode); status != ffi.OK {
			panic("cxev: failed to prepare callback closure")
		}
		callbackPtr = uintptr(closureCode)
	})
}

// trampoline receives each C argument as a pointer to its value.
func trampoline(_ *ffi.Cif, ret unsafe.Pointer, args *unsafe.Pointer, _ unsafe.Pointer) uintptr {
	arguments := unsafe.Slice(args, 4)
	loop := *(*unsafe.Pointer)(arguments[0])
	completion := *(*unsafe.Pointer)(arguments[1])
	result := *(*int32)(arguments[2])
	userdata := *(*uintptr)(arguments[3])

	action := int32(Disarm)
	if cb, ok := callbackRegistry.Load(userdata); ok {
		action = int32(cb.(Callback)((*Loop)(loop), (*Completion)(completion), result, userdata))
	}
	*(*int32)(ret) = action
	return 0
}

// RegisterCallback stores cb and returns the userdata ID that selects it.
// IDs come from a monotonic counter and are never reused.
func RegisterCallback(cb Callback) uintptr {
	id := uintptr(callbackCounter.Add(1))
	callbackRegistry.Store(id, cb)
	return id
}

// UnregisterCallback removes a callback from the registry.
func UnregisterCallback(id uintptr) {
	callbackRegistry.Delete(id)
}

// CallbackPtr returns the C function pointer to pass as cb.
func CallbackPtr() uintptr {
	initClosure()
	return callbackPtr
}
