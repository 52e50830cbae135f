package replication

import (
	"fmt"

	"github.com/l1jgo/nety/internal/core/event"
	gonet "github.com/l1jgo/nety/internal/net"
	"github.com/l1jgo/nety/internal/protocol"
	"github.com/l1jgo/nety/internal/registry"
	"go.uber.org/zap"
)

type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnecting
	stateConnected
)

type ownerEvent struct {
	entity  protocol.NetworkEntity
	payload protocol.Payload
}

// Network is the session state machine. It owns at most one Server and one
// Client and is driven by the systems returned from Systems.
type Network struct {
	state     sessionState
	connector gonet.Connector
	server    *Server
	client    *Client

	queue       *eventQueue
	reg         *registry.Registry
	myData      protocol.PayloadMap
	ownerEvents []ownerEvent
	opts        Options
	log         *zap.Logger
}

func New(reg *registry.Registry, opts Options, log *zap.Logger) *Network {
	return &Network{
		queue:  newEventQueue(reg, log),
		reg:    reg,
		myData: make(protocol.PayloadMap),
		opts:   opts,
		log:    log,
	}
}

func (n *Network) Registry() *registry.Registry { return n.reg }

func playerJoinEvent(p protocol.Player, me, existing bool) event.PlayerJoin {
	return event.PlayerJoin{Player: p, Me: me, ExistingPlayer: existing}
}

func playerLeaveEvent(p protocol.Player) event.PlayerLeave {
	return event.PlayerLeave{Player: p}
}

func (n *Network) resetIfRunning() {
	if n.state != stateDisconnected {
		n.Stop()
	}
}

// StartLocal runs server and client in this node with no remote hosts.
func (n *Network) StartLocal() {
	n.StartServerClient(nil)
}

// StartServerClient serves hosts and joins the session as a local player.
func (n *Network) StartServerClient(hosts []gonet.Host) {
	n.resetIfRunning()
	host, socket := gonet.NewLoopback()
	me := protocol.NewPlayer()
	all := append(append([]gonet.Host(nil), hosts...), host)
	n.server = newServer(all, &me, n.reg, n.queue, n.opts, n.log)
	n.client = newClient(socket, me, n.reg, n.queue, n.opts, n.log)
	n.state = stateConnected
	n.log.Info("session started", zap.Bool("server", true), zap.Bool("client", true), zap.Int("hosts", len(hosts)))
	enqueue(n.queue, event.Connect{IsServer: true, IsClient: true})
}

// StartServer serves hosts without a local player.
func (n *Network) StartServer(hosts []gonet.Host) {
	n.resetIfRunning()
	n.server = newServer(hosts, nil, n.reg, n.queue, n.opts, n.log)
	n.state = stateConnected
	n.log.Info("session started", zap.Bool("server", true), zap.Bool("client", false), zap.Int("hosts", len(hosts)))
	enqueue(n.queue, event.Connect{IsServer: true})
}

// StartClient begins connecting; the connector is polled every tick.
func (n *Network) StartClient(connector gonet.Connector) {
	n.resetIfRunning()
	n.connector = connector
	n.state = stateConnecting
	enqueue(n.queue, event.Connecting{})
}

// Stop ends the session immediately. Sockets are disconnected without
// draining and hosts are closed.
func (n *Network) Stop() {
	if n.state == stateDisconnected {
		return
	}
	n.teardown()
	n.log.Info("session stopped")
	enqueue(n.queue, event.Disconnect{})
}

func (n *Network) teardown() {
	if c, ok := n.connector.(interface{ Cancel() }); ok && n.state == stateConnecting {
		c.Cancel()
	}
	if n.client != nil {
		n.client.close()
	}
	if n.server != nil {
		n.server.close()
	}
	n.connector, n.server, n.client = nil, nil, nil
	n.ownerEvents = nil
	n.state = stateDisconnected
}

func (n *Network) IsServer() bool       { return n.server != nil }
func (n *Network) IsClient() bool       { return n.client != nil }
func (n *Network) IsConnected() bool    { return n.state == stateConnected }
func (n *Network) IsConnecting() bool   { return n.state == stateConnecting }
func (n *Network) IsDisconnected() bool { return n.state == stateDisconnected }

// Server returns the server role, or nil.
func (n *Network) Server() *Server { return n.server }

// Client returns the client role, or nil.
func (n *Network) Client() *Client { return n.client }

// Me returns the local player when this node has a client role.
func (n *Network) Me() (protocol.Player, bool) {
	if n.client == nil {
		return protocol.Player{}, false
	}
	return n.client.me, true
}

// Players returns the roster as seen by this node.
func (n *Network) Players() []protocol.Player {
	switch {
	case n.server != nil:
		return n.server.Players()
	case n.client != nil:
		return n.client.Players()
	default:
		return nil
	}
}

// IsEntityOwner reports whether this node may act as entity's owner.
func (n *Network) IsEntityOwner(entity protocol.NetworkEntity) bool {
	switch {
	case n.server != nil:
		return n.server.IsEntityOwner(entity)
	case n.client != nil:
		return n.client.IsEntityOwner(entity)
	default:
		return false
	}
}

// BroadcastAsOwner sends ev to everyone who can see entity. Only the
// entity's owner may broadcast. The event is sent during the next tick.
func (n *Network) BroadcastAsOwner(entity protocol.NetworkEntity, ev any) error {
	if !n.IsConnected() {
		return ErrNotConnected
	}
	if !n.IsEntityOwner(entity) {
		return fmt.Errorf("%w: %s", ErrNotOwner, entity)
	}
	payload, err := n.reg.Pack(ev)
	if err != nil {
		return err
	}
	n.ownerEvents = append(n.ownerEvents, ownerEvent{entity: entity, payload: payload})
	return nil
}

// SetEntityOwner hands entity to owner on the server; nil returns it to
// the server.
func (n *Network) SetEntityOwner(entity protocol.NetworkEntity, owner *protocol.Player) error {
	if n.server == nil {
		return ErrNotServer
	}
	n.server.SetEntityOwner(entity, owner)
	return nil
}

// SetEntityRelevant sets whether entity is replicated to player. Only the
// server decides relevancy.
func (n *Network) SetEntityRelevant(entity protocol.NetworkEntity, player protocol.Player, relevant bool) error {
	if n.server == nil {
		return ErrNotServer
	}
	n.server.SetEntityRelevant(entity, player, relevant)
	return nil
}

// SetMyPlayerData attaches data to the local player. It is sent with the
// handshake, so it may only change while disconnected.
func SetMyPlayerData[T any](n *Network, data T) {
	entry, ok := registry.EntryFor[T](n.reg)
	if !ok || !entry.IsPlayerData() {
		panic(fmt.Sprintf("type %q has not been registered as network player data", registry.TypeName[T]()))
	}
	switch n.state {
	case stateConnected:
		panic("cannot set player data while connected")
	case stateConnecting:
		panic("cannot set player data while connecting")
	}
	payload, err := n.reg.Pack(data)
	if err != nil {
		panic(fmt.Sprintf("encode player data: %v", err))
	}
	n.myData[entry.Name] = payload
}

// PlayerData returns player's data of type T, or the zero value when the
// player or the data is unknown.
func PlayerData[T any](n *Network, player protocol.Player) T {
	var zero T
	var data protocol.PayloadMap
	var ok bool
	switch {
	case n.server != nil:
		data, ok = n.server.playerData(player)
	case n.client != nil:
		data, ok = n.client.playerData(player)
	}
	if !ok {
		return zero
	}
	entry, ok := registry.EntryFor[T](n.reg)
	if !ok {
		return zero
	}
	payload, ok := data[entry.Name]
	if !ok {
		return zero
	}
	v, err := registry.Unpack[T](n.reg, payload)
	if err != nil {
		n.log.Warn("player data decode failed", zap.String("type", entry.Name), zap.Error(err))
		return zero
	}
	return v
}

func (n *Network) updateConnector() {
	if n.state != stateConnecting {
		return
	}
	status, socket := n.connector.Status()
	switch status {
	case gonet.StatusConnected:
		me := protocol.NewPlayer()
		n.connector = nil
		n.client = newClient(socket, me, n.reg, n.queue, n.opts, n.log)
		n.state = stateConnected
		n.log.Info("connected", zap.Stringer("me", me))
		enqueue(n.queue, event.Connect{IsClient: true})
	case gonet.StatusFailed:
		n.connector = nil
		n.state = stateDisconnected
		n.log.Warn("failed to connect")
		enqueue(n.queue, event.Disconnect{FailedToConnect: true})
	}
}

func (n *Network) clientInitialize() {
	if n.client != nil {
		n.client.initialize(n.myData.Clone())
	}
}

func (n *Network) flushOwnerEvents() {
	for _, ev := range n.ownerEvents {
		switch {
		case n.server != nil:
			n.server.broadcastAsOwner(ev.entity, ev.payload)
		case n.client != nil:
			n.client.broadcastAsOwner(ev.entity, ev.payload)
		}
	}
	clear(n.ownerEvents)
	n.ownerEvents = n.ownerEvents[:0]
}

func (n *Network) clientCheckDisconnect() {
	if n.client == nil || n.client.socket.Connected() {
		return
	}
	n.log.Info("disconnected from server")
	n.teardown()
	enqueue(n.queue, event.Disconnect{})
}

// updateEntities keeps ownership markers in the store current and clears
// out network entities once the session is gone.
func (n *Network) updateEntities(store EntityStore) {
	if n.IsDisconnected() {
		for _, ne := range store.NetworkEntities() {
			store.Despawn(ne)
		}
		return
	}
	for _, ne := range store.NetworkEntities() {
		store.SetOwner(ne, n.IsEntityOwner(ne))
	}
}

func (n *Network) deliver(bus *event.Bus) {
	n.queue.deliver(bus)
	bus.SwapBuffers()
	bus.DispatchAll()
}
