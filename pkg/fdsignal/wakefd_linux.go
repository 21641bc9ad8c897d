/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

//go:build linux

package fdsignal

import "golang.org/x/sys/unix"

// createWakeFd returns one eventfd as both ends.
func createWakeFd() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}
