package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// tcpConn frames messages over a stream connection.
type tcpConn struct {
	conn         net.Conn
	maxFrame     int
	writeTimeout time.Duration
}

func (c *tcpConn) ReadMessage() ([]byte, error) { return ReadFrame(c.conn, c.maxFrame) }

func (c *tcpConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return WriteFrame(c.conn, data, c.maxFrame)
}

func (c *tcpConn) Close() error       { return c.conn.Close() }
func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// NewTCPSession starts a session over an established stream connection.
func NewTCPSession(conn net.Conn, id uint64, opts Options, log *zap.Logger) *Session {
	s := NewSession(&tcpConn{conn: conn, maxFrame: opts.MaxFrameSize, writeTimeout: opts.WriteTimeout}, id, opts, log)
	s.Start()
	return s
}

// Listener is a TCP Host. Accepted sessions are handed to the tick goroutine
// through a channel.
type Listener struct {
	listener  net.Listener
	nextID    atomic.Uint64
	newConns  chan *Session
	opts      Options
	log       *zap.Logger
	closeCh   chan struct{}
	closeOnce sync.Once
}

// Listen binds addr and starts accepting in the background.
func Listen(addr string, opts Options, log *zap.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		listener: ln,
		newConns: make(chan *Session, 64),
		opts:     opts,
		log:      log.With(zap.String("transport", "tcp"), zap.String("addr", ln.Addr().String())),
		closeCh:  make(chan struct{}),
	}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
			}
			l.log.Error("accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		id := l.nextID.Add(1)
		sess := NewTCPSession(conn, id, l.opts, l.log)
		l.log.Info("connection accepted", zap.Uint64("session", id), zap.String("remote", conn.RemoteAddr().String()))

		select {
		case l.newConns <- sess:
		default:
			l.log.Warn("accept queue full, rejecting connection")
			sess.Close()
		}
	}
}

func (l *Listener) Update() {}

func (l *Listener) Accept() (Socket, bool) {
	select {
	case s := <-l.newConns:
		return s, true
	default:
		return nil, false
	}
}

// Close stops accepting. Already accepted sessions stay open.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closeCh)
		err = l.listener.Close()
	})
	return err
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}
