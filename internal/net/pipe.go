package net

import "sync"

// pipe is an in-process bidirectional message channel shared by two ends.
type pipe struct {
	mu     sync.Mutex
	queues [2][][]byte
	closed bool
}

type pipeEnd struct {
	p    *pipe
	side int
}

// NewPipe returns two connected in-process sockets. Disconnecting either
// end disconnects both.
func NewPipe() (Socket, Socket) {
	p := &pipe{}
	return &pipeEnd{p: p, side: 0}, &pipeEnd{p: p, side: 1}
}

func (e *pipeEnd) Update() {}

func (e *pipeEnd) Connected() bool {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return !e.p.closed
}

func (e *pipeEnd) Send(data []byte) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.closed {
		return
	}
	msg := make([]byte, len(data))
	copy(msg, data)
	peer := 1 - e.side
	e.p.queues[peer] = append(e.p.queues[peer], msg)
}

func (e *pipeEnd) Receive() ([]byte, bool) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	q := e.p.queues[e.side]
	if len(q) == 0 {
		return nil, false
	}
	msg := q[0]
	q[0] = nil
	e.p.queues[e.side] = q[1:]
	return msg, true
}

func (e *pipeEnd) Disconnect() {
	e.p.mu.Lock()
	e.p.closed = true
	e.p.mu.Unlock()
}
