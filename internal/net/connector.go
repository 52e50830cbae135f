package net

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type dialResult struct {
	socket Socket
	err    error
}

// AsyncConnector runs a blocking dial in a goroutine and reports its
// progress through Status. Status and Cancel belong to the tick goroutine.
type AsyncConnector struct {
	result  chan dialResult
	status  ConnectStatus
	socket  Socket
	cancel  context.CancelFunc
	settled bool

	mu        sync.Mutex // orders the dial's hand-off against Cancel
	cancelled bool
}

// NewAsyncConnector starts dial in the background.
func NewAsyncConnector(ctx context.Context, dial func(ctx context.Context) (Socket, error), log *zap.Logger) *AsyncConnector {
	ctx, cancel := context.WithCancel(ctx)
	c := &AsyncConnector{
		result: make(chan dialResult, 1),
		cancel: cancel,
	}
	go func() {
		s, err := dial(ctx)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.cancelled {
			if s != nil {
				s.Disconnect()
			}
			return
		}
		if err != nil {
			log.Warn("connect failed", zap.Error(err))
		}
		c.result <- dialResult{socket: s, err: err}
	}()
	return c
}

func (c *AsyncConnector) Status() (ConnectStatus, Socket) {
	if c.settled {
		return c.status, c.socket
	}
	select {
	case r := <-c.result:
		c.settled = true
		c.cancel()
		if r.err != nil {
			c.status = StatusFailed
			return c.status, nil
		}
		c.status, c.socket = StatusConnected, r.socket
		return c.status, c.socket
	default:
		return StatusConnecting, nil
	}
}

// Cancel aborts a pending dial. A socket dialed but never collected through
// Status is disconnected; one already handed out belongs to the caller.
func (c *AsyncConnector) Cancel() {
	c.cancel()
	if c.settled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	select {
	case r := <-c.result:
		if r.socket != nil {
			r.socket.Disconnect()
		}
	default:
	}
	c.settled = true
	c.status = StatusFailed
}

var dialSeq atomic.Uint64

// Dial connects to a TCP Listener at addr. The inbound rate limit does not
// apply to sessions we dial.
func Dial(ctx context.Context, addr string, opts Options, log *zap.Logger) *AsyncConnector {
	opts.PacketsPerSecond = 0
	log = log.With(zap.String("transport", "tcp"), zap.String("addr", addr))
	return NewAsyncConnector(ctx, func(ctx context.Context) (Socket, error) {
		d := net.Dialer{Timeout: opts.DialTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return NewTCPSession(conn, dialSeq.Add(1), opts, log), nil
	}, log)
}
