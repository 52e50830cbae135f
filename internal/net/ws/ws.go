// Package ws carries replication traffic over websocket binary messages, for
// browser clients and proxies that only pass HTTP.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gonet "github.com/l1jgo/nety/internal/net"
	"go.uber.org/zap"
)

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.BinaryMessage && len(data) > 0 {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func newSession(conn *websocket.Conn, id uint64, opts gonet.Options, log *zap.Logger) *gonet.Session {
	if opts.MaxFrameSize > 0 {
		conn.SetReadLimit(int64(opts.MaxFrameSize))
	}
	s := gonet.NewSession(&wsConn{conn: conn, writeTimeout: opts.WriteTimeout}, id, opts, log)
	s.Start()
	return s
}

// Handler is an http.Handler that upgrades requests and exposes the
// resulting sessions as a Host.
type Handler struct {
	upgrader  websocket.Upgrader
	opts      gonet.Options
	nextID    atomic.Uint64
	newConns  chan *gonet.Session
	closed    atomic.Bool
	closeOnce sync.Once
	log       *zap.Logger
}

func NewHandler(opts gonet.Options, log *zap.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts:     opts,
		newConns: make(chan *gonet.Session, 64),
		log:      log.With(zap.String("transport", "ws")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	sess := newSession(conn, h.nextID.Add(1), h.opts, h.log)
	h.log.Info("connection accepted", zap.Uint64("session", sess.ID), zap.String("remote", r.RemoteAddr))

	select {
	case h.newConns <- sess:
	default:
		h.log.Warn("accept queue full, rejecting connection")
		sess.Close()
	}
}

func (h *Handler) Update() {}

func (h *Handler) Accept() (gonet.Socket, bool) {
	select {
	case s := <-h.newConns:
		return s, true
	default:
		return nil, false
	}
}

// Close stops handing out new sessions. The HTTP server is owned by the
// caller.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		for {
			select {
			case s := <-h.newConns:
				s.Close()
			default:
				return
			}
		}
	})
	return nil
}

var dialSeq atomic.Uint64

// Dial connects to a websocket Handler at url (ws:// or wss://). Dialed
// sessions read without a rate limit.
func Dial(ctx context.Context, url string, opts gonet.Options, log *zap.Logger) *gonet.AsyncConnector {
	opts.PacketsPerSecond = 0
	log = log.With(zap.String("transport", "ws"), zap.String("url", url))
	return gonet.NewAsyncConnector(ctx, func(ctx context.Context) (gonet.Socket, error) {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = opts.DialTimeout
		conn, resp, err := d.DialContext(ctx, url, nil)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
				return nil, fmt.Errorf("websocket dial %s: %s: %w", url, resp.Status, err)
			}
			return nil, fmt.Errorf("websocket dial %s: %w", url, err)
		}
		return newSession(conn, dialSeq.Add(1), opts, log), nil
	}, log)
}
