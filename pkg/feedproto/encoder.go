/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package feedproto

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Encode serializes a single status line.
func Encode(s Status) ([]byte, error) {
	return AppendEncode(nil, s)
}

// AppendEncode appends the CRLF-terminated line for s into dst.
func AppendEncode(dst []byte, s Status) ([]byte, error) {
	if err := s.validateForEncode(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	dst = append(dst, b...)
	return append(dst, '\r', '\n'), nil
}

// AppendKeepAlive appends an empty keep-alive line.
func AppendKeepAlive(dst []byte) []byte {
	return append(dst, '\r', '\n')
}

// ResponseHeader renders the header a server sends before the first line.
func ResponseHeader(code int, reason string) []byte {
	dst := make([]byte, 0, 96)
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(code), 10)
	dst = append(dst, ' ')
	dst = append(dst, reason...)
	dst = append(dst, "\r\nContent-Type: application/json\r\nConnection: close\r\n\r\n"...)
	return dst
}
