/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package cxev

import (
	"fmt"
	"os"
	"runtime"

	"github.com/jupiterrider/ffi"
)

// EnvLibraryPath names the environment variable holding the libxev path.
const EnvLibraryPath = "LIBXEV_PATH"

var (
	lib     ffi.Lib
	loadErr error
)

func init() {
	path := os.Getenv(EnvLibraryPath)
	if path == "" {
		path = defaultLibraryName()
	}
	lib, loadErr = ffi.Load(path)
	if loadErr != nil {
		loadErr = fmt.Errorf("cxev: load %s: %w", path, loadErr)
		return
	}
	if err := registerFunctions(); err != nil {
		loadErr = fmt.Errorf("cxev: %w", err)
	}
}

func defaultLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libxev.dylib"
	case "windows":
		return "xev.dll"
	default:
		return "libxev.so"
	}
}

// Loaded reports whether libxev was loaded and every symbol resolved.
func Loaded() bool {
	return loadErr == nil
}

// LoadError returns why libxev is unavailable, or nil.
func LoadError() error {
	return loadErr
}
