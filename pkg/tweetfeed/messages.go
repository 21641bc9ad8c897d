/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package tweetfeed

import "github.com/crrow/tweetfeed-go/pkg/feedproto"

// Credentials authorize a subscription.
type Credentials = feedproto.Credentials

// StreamConfig describes one stream. The bridge forwards it to the state
// machine and the driver without interpreting it.
type StreamConfig struct {
	Endpoint    string      `yaml:"endpoint"`
	Track       []string    `yaml:"track"`
	Credentials Credentials `yaml:"credentials"`
	// Reconnect re-opens the connection after a transport failure, subject
	// to the machine's reconnect rate limit.
	Reconnect bool `yaml:"reconnect"`
}

// Tweet is a delivered status. It is immutable once delivered.
type Tweet struct {
	ID       string
	UserName string
	Body     string
}

// ControlKind tags a ControlMessage.
type ControlKind uint8

const (
	ControlCreate ControlKind = iota + 1
	ControlStart
	ControlDestroy
)

// ControlMessage travels from the creator to the domain goroutine.
type ControlMessage struct {
	Kind   ControlKind
	Handle Handle
	Config StreamConfig
}

// CreateMsg registers h with cfg.
func CreateMsg(h Handle, cfg StreamConfig) ControlMessage {
	return ControlMessage{Kind: ControlCreate, Handle: h, Config: cfg}
}

// StartMsg begins streaming for h.
func StartMsg(h Handle) ControlMessage {
	return ControlMessage{Kind: ControlStart, Handle: h}
}

// DestroyMsg ends h.
func DestroyMsg(h Handle) ControlMessage {
	return ControlMessage{Kind: ControlDestroy, Handle: h}
}

// UIEventKind tags a UIEvent.
type UIEventKind uint8

const (
	UITweetArrived UIEventKind = iota + 1
	UIStreamClosed
)

// UIEvent travels from the domain goroutine to the host loop.
type UIEvent struct {
	Kind   UIEventKind
	Handle Handle
	Tweet  Tweet
	// Err is set on UIStreamClosed when the stream ended abnormally.
	Err error
}

// IOEventKind tags an IOEvent.
type IOEventKind uint8

const (
	IOOpenConnection IOEventKind = iota + 1
	IOSendBytes
	IOCloseConnection
)

// IOEvent is an outbound command for the Driver.
type IOEvent struct {
	Kind   IOEventKind
	Handle Handle
	Config StreamConfig
	Data   []byte
}

// TransportEventKind tags a TransportEvent.
type TransportEventKind uint8

const (
	TransportConnected TransportEventKind = iota + 1
	TransportData
	TransportClosed
)

// TransportEvent is produced by the Driver and consumed on the domain
// goroutine.
type TransportEvent struct {
	Kind   TransportEventKind
	Handle Handle
	Data   []byte
	// Err is set on TransportClosed for abnormal closure.
	Err error
}

func (k ControlKind) String() string {
	switch k {
	case ControlCreate:
		return "create"
	case ControlStart:
		return "start"
	case ControlDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

func (k UIEventKind) String() string {
	switch k {
	case UITweetArrived:
		return "tweet_arrived"
	case UIStreamClosed:
		return "stream_closed"
	default:
		return "unknown"
	}
}

func (k IOEventKind) String() string {
	switch k {
	case IOOpenConnection:
		return "open_connection"
	case IOSendBytes:
		return "send_bytes"
	case IOCloseConnection:
		return "close_connection"
	default:
		return "unknown"
	}
}

func (k TransportEventKind) String() string {
	switch k {
	case TransportConnected:
		return "connected"
	case TransportData:
		return "data"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}
