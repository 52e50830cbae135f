// Package memnet is an in-process network of named hosts. Nodes in the same
// process, typically tests, connect to each other by host name.
package memnet

import (
	"sync"

	gonet "github.com/l1jgo/nety/internal/net"
)

type Network struct {
	mu    sync.Mutex
	hosts map[string]*Host
}

func New() *Network {
	return &Network{hosts: make(map[string]*Host)}
}

// Host returns the host listening on name, creating it if needed.
func (n *Network) Host(name string) *Host {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h, ok := n.hosts[name]; ok && !h.isClosed() {
		return h
	}
	h := &Host{net: n, name: name}
	n.hosts[name] = h
	return h
}

func (n *Network) lookup(name string) (*Host, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := n.hosts[name]
	if !ok || h.isClosed() {
		return nil, false
	}
	return h, true
}

func (n *Network) remove(h *Host) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.hosts[h.name] == h {
		delete(n.hosts, h.name)
	}
}

// Connect returns a connector that reaches the host called name on its
// first poll. It fails if no such host is listening at that time.
func (n *Network) Connect(name string) gonet.Connector {
	return &connector{net: n, name: name}
}

// Host accepts in-process sockets.
type Host struct {
	net     *Network
	name    string
	mu      sync.Mutex
	pending []gonet.Socket
	closed  bool
}

func (h *Host) Name() string { return h.name }

func (h *Host) Update() {}

func (h *Host) Accept() (gonet.Socket, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.pending) == 0 {
		return nil, false
	}
	s := h.pending[0]
	h.pending = h.pending[1:]
	return s, true
}

func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	for _, s := range h.pending {
		s.Disconnect()
	}
	h.pending = nil
	h.mu.Unlock()
	h.net.remove(h)
	return nil
}

func (h *Host) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Host) enqueue(s gonet.Socket) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.pending = append(h.pending, s)
	return true
}

type connector struct {
	net    *Network
	name   string
	status gonet.ConnectStatus
	socket gonet.Socket
	polled bool
}

func (c *connector) Status() (gonet.ConnectStatus, gonet.Socket) {
	if c.polled {
		return c.status, c.socket
	}
	c.polled = true
	h, ok := c.net.lookup(c.name)
	if !ok {
		c.status = gonet.StatusFailed
		return c.status, nil
	}
	server, client := gonet.NewPipe()
	if !h.enqueue(server) {
		c.status = gonet.StatusFailed
		return c.status, nil
	}
	c.status, c.socket = gonet.StatusConnected, client
	return c.status, c.socket
}

// Fixed is a connector stuck in one status, for exercising connection
// handling without a peer.
type Fixed gonet.ConnectStatus

func (f Fixed) Status() (gonet.ConnectStatus, gonet.Socket) {
	return gonet.ConnectStatus(f), nil
}

// Pending never connects.
func Pending() gonet.Connector { return Fixed(gonet.StatusConnecting) }

// Failing fails on the first poll.
func Failing() gonet.Connector { return Fixed(gonet.StatusFailed) }
