package net

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MessageConn is a blocking message-oriented connection. The TCP transport
// frames a net.Conn; the websocket transport uses websocket messages.
type MessageConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	RemoteAddr() string
}

// Session adapts a blocking MessageConn to the polled Socket interface.
// Network I/O runs in dedicated goroutines; the tick goroutine only touches
// the queues.
type Session struct {
	ID   uint64
	conn MessageConn

	inQueue chan []byte

	outMu     sync.Mutex
	out       [][]byte      // unsent, in order
	outSignal chan struct{} // 1-slot wakeup for writeLoop
	outLimit  int           // 0 = unbounded

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	limiter *rate.Limiter // readLoop goroutine only

	log *zap.Logger
}

// NewSession wraps conn. Call Start to launch the I/O goroutines.
func NewSession(conn MessageConn, id uint64, opts Options, log *zap.Logger) *Session {
	s := &Session{
		ID:        id,
		conn:      conn,
		inQueue:   make(chan []byte, max(opts.InQueueSize, 1)),
		outSignal: make(chan struct{}, 1),
		outLimit:  opts.OutQueueSize,
		closeCh:   make(chan struct{}),
		log:       log.With(zap.Uint64("session", id), zap.String("remote", conn.RemoteAddr())),
	}
	if opts.PacketsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.PacketsPerSecond), opts.PacketsPerSecond)
	}
	return s
}

func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

func (s *Session) Update() {}

func (s *Session) Connected() bool {
	return !s.closed.Load()
}

// Send appends data to the outbound buffer and wakes the writer. It never
// blocks. A peer with more than OutQueueSize unsent messages is closed.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outMu.Lock()
	if s.outLimit > 0 && len(s.out) >= s.outLimit {
		s.outMu.Unlock()
		s.log.Warn("outbound backlog over limit, closing slow session", zap.Int("limit", s.outLimit))
		s.Close()
		return
	}
	s.out = append(s.out, data)
	s.outMu.Unlock()

	select {
	case s.outSignal <- struct{}{}:
	default:
	}
}

// Backlog is the number of messages not yet handed to the connection.
func (s *Session) Backlog() int {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return len(s.out)
}

func (s *Session) Receive() ([]byte, bool) {
	select {
	case data := <-s.inQueue:
		return data, true
	default:
		return nil, false
	}
}

func (s *Session) Disconnect() {
	s.Close()
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

// readLoop pushes inbound messages onto inQueue until the connection fails.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn("packet rate exceeded, closing session")
			return
		}

		// Block until there is room; this only stalls this peer.
		select {
		case s.inQueue <- data:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	var batch [][]byte
	for {
		select {
		case <-s.outSignal:
		case <-s.closeCh:
			return
		}

		s.outMu.Lock()
		batch, s.out = s.out, batch[:0]
		s.outMu.Unlock()

		for i, data := range batch {
			if err := s.conn.WriteMessage(data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
			batch[i] = nil
		}
	}
}
