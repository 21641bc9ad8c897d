/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package feedproto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const defaultMaxLineLen = 1 << 20 // 1 MiB
const defaultMaxHeaderLen = 16 << 10

var headerPrefix = []byte("HTTP/")

// Parser incrementally parses a status stream from streaming input.
//
// A leading HTTP response header is consumed if present; input that starts
// directly with a JSON line is accepted as a bare body.
type Parser struct {
	buf          []byte
	headerDone   bool
	maxLineLen   int
	maxHeaderLen int
}

// NewParser creates a parser with safe default limits.
func NewParser() *Parser {
	return &Parser{
		maxLineLen:   defaultMaxLineLen,
		maxHeaderLen: defaultMaxHeaderLen,
	}
}

// Feed appends incoming bytes and returns all fully decoded messages.
// It keeps incomplete tails in parser state for the next call. On a
// malformed line, the messages decoded before it are returned with the
// error and the rest of the buffer is discarded.
func (p *Parser) Feed(in []byte) ([]Message, error) {
	if len(in) > 0 {
		p.buf = append(p.buf, in...)
	}

	if !p.headerDone {
		done, err := p.consumeHeader()
		if err != nil {
			p.buf = p.buf[:0]
			return nil, err
		}
		if !done {
			return nil, nil
		}
	}

	if len(p.buf) == 0 {
		return nil, nil
	}

	var out []Message
	offset := 0

	for offset < len(p.buf) {
		line, next, ok := readLine(p.buf, offset)
		if !ok {
			break
		}
		offset = next
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := decodeLine(line)
		if err != nil {
			p.buf = p.buf[:0]
			return out, err
		}
		out = append(out, msg)
	}

	if offset == len(p.buf) {
		p.buf = p.buf[:0]
	} else if offset > 0 {
		p.buf = append([]byte(nil), p.buf[offset:]...)
	}

	if len(p.buf) > p.maxLineLen {
		p.buf = p.buf[:0]
		return out, fmt.Errorf("line length exceeds limit %d", p.maxLineLen)
	}

	return out, nil
}

// Reset discards buffered input and expects a new response header.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.headerDone = false
}

func (p *Parser) consumeHeader() (bool, error) {
	n := len(headerPrefix)
	if len(p.buf) < n {
		if bytes.HasPrefix(headerPrefix, p.buf) {
			return false, nil
		}
		p.headerDone = true
		return true, nil
	}
	if !bytes.HasPrefix(p.buf, headerPrefix) {
		p.headerDone = true
		return true, nil
	}

	end := bytes.Index(p.buf, []byte("\r\n\r\n"))
	if end < 0 {
		if len(p.buf) > p.maxHeaderLen {
			return false, fmt.Errorf("response header exceeds limit %d", p.maxHeaderLen)
		}
		return false, nil
	}

	statusLine, _, _ := readLine(p.buf, 0)
	if err := checkStatusLine(statusLine); err != nil {
		return false, err
	}

	p.buf = append([]byte(nil), p.buf[end+4:]...)
	p.headerDone = true
	return true, nil
}

func checkStatusLine(line []byte) error {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) < 2 {
		return fmt.Errorf("malformed status line %q", string(line))
	}
	code, err := strconv.Atoi(string(parts[1]))
	if err != nil {
		return fmt.Errorf("invalid status code %q: %w", string(parts[1]), err)
	}
	if code < 200 || code > 299 {
		reason := ""
		if len(parts) == 3 {
			reason = string(parts[2])
		}
		return &StatusError{Code: code, Reason: reason}
	}
	return nil
}

type wireMessage struct {
	ID     string          `json:"id_str"`
	Text   *string         `json:"text"`
	User   User            `json:"user"`
	Delete json.RawMessage `json:"delete"`
	Limit  json.RawMessage `json:"limit"`
}

func decodeLine(line []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(line, &w); err != nil {
		return Message{}, fmt.Errorf("invalid status line: %w", err)
	}

	raw := append([]byte(nil), line...)
	switch {
	case w.Text != nil:
		return Message{
			Kind:   KindStatus,
			Status: Status{ID: w.ID, Text: *w.Text, User: w.User},
			Raw:    raw,
		}, nil
	case len(w.Delete) > 0:
		return Message{Kind: KindDelete, Raw: raw}, nil
	case len(w.Limit) > 0:
		return Message{Kind: KindLimit, Raw: raw}, nil
	default:
		return Message{Kind: KindUnknown, Raw: raw}, nil
	}
}

// readLine returns the line starting at offset without its terminator.
// Lines end in LF; a preceding CR is stripped.
func readLine(data []byte, offset int) ([]byte, int, bool) {
	if offset >= len(data) {
		return nil, 0, false
	}
	i := bytes.IndexByte(data[offset:], '\n')
	if i < 0 {
		return nil, 0, false
	}
	end := offset + i
	line := data[offset:end]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, end + 1, true
}
