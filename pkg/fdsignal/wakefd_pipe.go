/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

//go:build unix && !linux

package fdsignal

import "golang.org/x/sys/unix"

// createWakeFd returns the read and write ends of a non-blocking self-pipe.
func createWakeFd() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return 0, 0, err
		}
	}
	return fds[0], fds[1], nil
}
