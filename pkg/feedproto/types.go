/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package feedproto implements the wire format of a line-delimited JSON
// status stream, as served by the streaming filter endpoint.
//
// A stream is an HTTP/1.1 response header followed by one JSON document per
// CRLF-terminated line. Empty lines are keep-alives.
package feedproto

import "fmt"

// Kind identifies the message types carried on a status stream.
type Kind int

const (
	KindStatus Kind = iota
	KindDelete
	KindLimit
	KindUnknown
)

// User is the author block of a status.
type User struct {
	ScreenName string `json:"screen_name"`
	Name       string `json:"name,omitempty"`
}

// Status is a single tweet as carried on the wire.
type Status struct {
	ID   string `json:"id_str,omitempty"`
	Text string `json:"text"`
	User User   `json:"user"`
}

// Message is one decoded line of a stream.
type Message struct {
	Kind   Kind
	Status Status
	Raw    []byte
}

// Credentials carries the four OAuth 1.0a fields used to authorize a
// subscription.
type Credentials struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	Token          string `yaml:"token"`
	TokenSecret    string `yaml:"token_secret"`
}

// StatusError is returned when the response header carries a non-2xx status.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream rejected: %d %s", e.Code, e.Reason)
}

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindDelete:
		return "delete"
	case KindLimit:
		return "limit"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

func (s Status) validateForEncode() error {
	if s.User.ScreenName == "" {
		return fmt.Errorf("status has no screen_name")
	}
	return nil
}
