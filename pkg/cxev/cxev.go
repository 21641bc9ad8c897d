/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Package cxev is a thin binding of the libxev C API over libffi.
//
// The library is loaded at process start from LIBXEV_PATH (or the platform
// default name). Nothing here uses cgo: the opaque C structs are modelled as
// fixed-size arrays matching the XEV_SIZEOF_* constants from xev.h, and
// every call goes through a prepared ffi.Fun.
//
// Values of Loop, Completion, and Watcher must not move while libxev holds
// them. Allocate them on the heap (new, or a field of a heap struct) and
// keep them reachable until the operation completes.
package cxev

// Sizes of the opaque libxev types, in bytes.
const (
	SizeofLoop       = 512
	SizeofCompletion = 320
	SizeofWatcher    = 256
)

// Loop is the opaque event loop type.
type Loop [SizeofLoop / 8]uint64

// Completion represents a completion token for async operations.
type Completion [SizeofCompletion / 8]uint64

// Watcher is a generic watcher type used by timers, async, etc.
type Watcher [SizeofWatcher / 8]uint64

// RunMode specifies how the event loop should run.
type RunMode int32

const (
	RunNoWait    RunMode = 0
	RunOnce      RunMode = 1
	RunUntilDone RunMode = 2
)

// CbAction is the return value from callbacks indicating what to do next.
type CbAction int32

const (
	Disarm CbAction = 0
	Rearm  CbAction = 1
)
