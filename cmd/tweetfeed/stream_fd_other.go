/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

//go:build !unix

package main

import (
	"errors"
	"io"
)

func streamOnFd(io.Writer) error {
	return errors.New("the fd host loop needs a unix platform")
}
