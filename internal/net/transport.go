package net

import "time"

// Host accepts inbound sockets. Accept never blocks.
type Host interface {
	Update()
	Accept() (Socket, bool)
	Close() error
}

// Socket is an ordered, reliable, message-oriented connection that is polled
// from the tick goroutine. Send and Receive never block; a socket that can no
// longer deliver reports Connected() == false. Messages already received stay
// readable after the socket disconnects.
type Socket interface {
	Update()
	Connected() bool
	Send(data []byte)
	Receive() ([]byte, bool)
	Disconnect()
}

// ConnectStatus is the progress of an outbound connection attempt.
type ConnectStatus int

const (
	StatusConnecting ConnectStatus = iota
	StatusConnected
	StatusFailed
)

func (s ConnectStatus) String() string {
	switch s {
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Connector is polled once per tick until it settles. The socket is only
// set with StatusConnected.
type Connector interface {
	Status() (ConnectStatus, Socket)
}

// Options tunes the goroutine-backed transports.
// DefaultOutQueueSize is the unsent-message high-water mark. A join burst
// is one message per visible entity plus the roster, so this sits far above
// any world the pipeline is expected to carry.
const DefaultOutQueueSize = 1 << 16

type Options struct {
	InQueueSize      int
	OutQueueSize     int // max unsent messages per session; 0 = unbounded
	PacketsPerSecond int // inbound limit on accepted sessions; 0 = unlimited
	MaxFrameSize     int
	WriteTimeout     time.Duration
	DialTimeout      time.Duration
}

func DefaultOptions() Options {
	return Options{
		InQueueSize:  128,
		OutQueueSize: DefaultOutQueueSize,
		MaxFrameSize: DefaultMaxFrameSize,
		WriteTimeout: 10 * time.Second,
		DialTimeout:  5 * time.Second,
	}
}
