package net

// loopbackHost hands out the server end of a pipe exactly once.
type loopbackHost struct {
	socket Socket
	closed bool
}

// NewLoopback returns a host that yields one socket, and the client end of
// that socket. A node running both server and client roles talks to itself
// through it.
func NewLoopback() (Host, Socket) {
	server, client := NewPipe()
	return &loopbackHost{socket: server}, client
}

func (h *loopbackHost) Update() {}

func (h *loopbackHost) Accept() (Socket, bool) {
	if h.closed || h.socket == nil {
		return nil, false
	}
	s := h.socket
	h.socket = nil
	return s, true
}

func (h *loopbackHost) Close() error {
	h.closed = true
	if h.socket != nil {
		h.socket.Disconnect()
		h.socket = nil
	}
	return nil
}
