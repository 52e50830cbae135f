package replication

import (
	"github.com/l1jgo/nety/internal/codec"
	gonet "github.com/l1jgo/nety/internal/net"
	"github.com/l1jgo/nety/internal/observability"
	"github.com/l1jgo/nety/internal/protocol"
	"github.com/l1jgo/nety/internal/registry"
	"go.uber.org/zap"
)

const roleServer = "server"

// peer is a server-side connection, either still joining or a full player.
type peer struct {
	handle      protocol.Player
	socket      gonet.Socket
	state       protocol.SessionState
	initialized bool
	data        protocol.PayloadMap
	acceptedAt  uint64
	faulted     bool
}

type serverEntity struct {
	exists       bool
	owner        *protocol.Player
	ownerChanged bool
	lastOwner    *protocol.Player
}

type entityMessage struct {
	entity protocol.NetworkEntity
	msg    protocol.Message
}

// Server is the authoritative side of a session.
type Server struct {
	hosts       []gonet.Host
	localPlayer *protocol.Player
	joiners     []*peer
	players     []*peer
	entities    map[protocol.NetworkEntity]*serverEntity
	relevancy   *Relevancy

	entityMessages []entityMessage

	reg        *registry.Registry
	codec      codec.Codec
	queue      *eventQueue
	dispatcher *protocol.Dispatcher[*peer]
	opts       Options
	tick       uint64
	log        *zap.Logger
}

func newServer(hosts []gonet.Host, local *protocol.Player, reg *registry.Registry, queue *eventQueue, opts Options, log *zap.Logger) *Server {
	s := &Server{
		hosts:       hosts,
		localPlayer: local,
		entities:    make(map[protocol.NetworkEntity]*serverEntity),
		relevancy:   NewRelevancy(),
		reg:         reg,
		codec:       reg.Codec(),
		queue:       queue,
		opts:        opts,
		log:         log.With(zap.String("role", roleServer)),
	}
	s.dispatcher = protocol.NewDispatcher[*peer](s.log)
	s.dispatcher.Register(protocol.KindPlayerInit, []protocol.SessionState{protocol.StateJoining}, s.handlePlayerInit)
	s.dispatcher.Register(protocol.KindEvent, []protocol.SessionState{protocol.StateJoined}, s.handleEvent)
	s.dispatcher.Register(protocol.KindEntityEvent, []protocol.SessionState{protocol.StateJoined}, s.handleEntityEvent)
	return s
}

// LocalPlayer is the player of the client running in the same node, if any.
func (s *Server) LocalPlayer() *protocol.Player { return s.localPlayer }

func (s *Server) isLocal(p *peer) bool {
	return s.localPlayer != nil && p.handle == *s.localPlayer
}

// Players returns the roster in handshake order.
func (s *Server) Players() []protocol.Player {
	out := make([]protocol.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p.handle)
	}
	return out
}

func (s *Server) findPlayer(handle protocol.Player) *peer {
	for _, p := range s.players {
		if p.handle == handle {
			return p
		}
	}
	return nil
}

func (s *Server) encode(m protocol.Message) []byte {
	data, err := protocol.Encode(s.codec, m)
	if err != nil {
		s.log.Error("encode failed", zap.Stringer("kind", m.Kind), zap.Error(err))
		return nil
	}
	return data
}

func (s *Server) sendRaw(p *peer, kind protocol.Kind, data []byte) {
	if data == nil {
		return
	}
	p.socket.Send(data)
	observability.RecordSent(roleServer, kind.String())
}

func (s *Server) send(p *peer, m protocol.Message) {
	s.sendRaw(p, m.Kind, s.encode(m))
}

func (s *Server) broadcast(m protocol.Message, include func(*peer) bool) {
	data := s.encode(m)
	for _, p := range s.players {
		if include == nil || include(p) {
			s.sendRaw(p, m.Kind, data)
		}
	}
}

// SendToAll sends ev to every player, including the local one.
func (s *Server) SendToAll(ev any) error {
	payload, err := s.reg.Pack(ev)
	if err != nil {
		return err
	}
	s.broadcast(protocol.Event(payload), nil)
	return nil
}

// SendToAllExceptLocal sends ev to every remote player.
func (s *Server) SendToAllExceptLocal(ev any) error {
	payload, err := s.reg.Pack(ev)
	if err != nil {
		return err
	}
	s.broadcast(protocol.Event(payload), func(p *peer) bool { return !s.isLocal(p) })
	return nil
}

// SendToPlayers sends ev to the listed players that are in the roster.
func (s *Server) SendToPlayers(players []protocol.Player, ev any) error {
	payload, err := s.reg.Pack(ev)
	if err != nil {
		return err
	}
	want := make(map[protocol.Player]bool, len(players))
	for _, p := range players {
		want[p] = true
	}
	s.broadcast(protocol.Event(payload), func(p *peer) bool { return want[p.handle] })
	return nil
}

// SendToEntity queues ev for every player the entity is relevant to. It is
// flushed after the next relevancy pass, so a freshly spawned entity is
// spawned on clients before its events arrive.
func (s *Server) SendToEntity(entity protocol.NetworkEntity, ev any) error {
	payload, err := s.reg.Pack(ev)
	if err != nil {
		return err
	}
	s.entityMessages = append(s.entityMessages, entityMessage{
		entity: entity,
		msg:    protocol.EntityEvent(entity, nil, payload),
	})
	return nil
}

// SetEntityRelevant sets whether entity should be replicated to player.
// Ownership and the local player override a false setting. Players not in
// the roster are ignored.
func (s *Server) SetEntityRelevant(entity protocol.NetworkEntity, player protocol.Player, relevant bool) {
	if s.findPlayer(player) == nil {
		return
	}
	s.relevancy.SetRelevant(player, entity, relevant)
}

func (s *Server) getOrInsertEntity(entity protocol.NetworkEntity) *serverEntity {
	e, ok := s.entities[entity]
	if !ok {
		e = &serverEntity{exists: true}
		s.entities[entity] = e
	}
	return e
}

// SetEntityOwner hands entity to owner; nil returns it to the server.
func (s *Server) SetEntityOwner(entity protocol.NetworkEntity, owner *protocol.Player) {
	e := s.getOrInsertEntity(entity)
	if samePlayer(e.owner, owner) {
		return
	}
	if !e.ownerChanged {
		e.lastOwner = e.owner
		e.ownerChanged = true
	}
	if owner != nil {
		o := *owner
		owner = &o
	}
	e.owner = owner
}

// EntityOwner returns the owning player; nil means the server owns it.
func (s *Server) EntityOwner(entity protocol.NetworkEntity) *protocol.Player {
	if e, ok := s.entities[entity]; ok && e.owner != nil {
		o := *e.owner
		return &o
	}
	return nil
}

// IsEntityOwner reports whether this node owns entity.
func (s *Server) IsEntityOwner(entity protocol.NetworkEntity) bool {
	e, ok := s.entities[entity]
	if !ok || e.owner == nil {
		return true
	}
	return s.localPlayer != nil && *e.owner == *s.localPlayer
}

func (s *Server) fault(p *peer, reason string, err error) {
	if p.faulted {
		return
	}
	p.faulted = true
	s.log.Warn("protocol fault, disconnecting peer",
		zap.Stringer("player", p.handle),
		zap.String("reason", reason),
		zap.Error(err),
	)
	observability.RecordProtocolFault(roleServer, reason)
	p.socket.Disconnect()
}

func (s *Server) dispatch(p *peer, data []byte) {
	m, err := protocol.Decode(s.codec, data)
	if err != nil {
		s.fault(p, "decode", err)
		return
	}
	observability.RecordReceived(roleServer, m.Kind.String())
	if err := s.dispatcher.Dispatch(p, p.state, m); err != nil {
		s.fault(p, "dispatch", err)
	}
}

func (s *Server) acceptSockets() {
	s.tick++
	for _, h := range s.hosts {
		h.Update()
		for {
			socket, ok := h.Accept()
			if !ok {
				break
			}
			s.joiners = append(s.joiners, &peer{
				socket:     socket,
				state:      protocol.StateJoining,
				acceptedAt: s.tick,
			})
		}
	}
}

func (s *Server) receiveFromJoiners() {
	kept := s.joiners[:0]
	for _, j := range s.joiners {
		j.socket.Update()
		for j.state == protocol.StateJoining && !j.faulted {
			data, ok := j.socket.Receive()
			if !ok {
				break
			}
			s.dispatch(j, data)
		}
		switch {
		case j.state == protocol.StateJoined, j.faulted:
		case !j.socket.Connected():
			s.log.Debug("joiner disconnected before handshake")
		case s.opts.HandshakeTimeoutTicks > 0 && s.tick-j.acceptedAt >= uint64(s.opts.HandshakeTimeoutTicks):
			s.log.Info("handshake timed out", zap.Uint64("ticks", s.tick-j.acceptedAt))
			j.socket.Disconnect()
		default:
			kept = append(kept, j)
		}
	}
	clear(s.joiners[len(kept):])
	s.joiners = kept
}

func (s *Server) handlePlayerInit(p *peer, m protocol.Message) {
	if s.findPlayer(m.Player) != nil {
		s.fault(p, "duplicate_player", nil)
		return
	}
	data := make(protocol.PayloadMap, len(m.PlayerData))
	for name, payload := range m.PlayerData {
		entry, ok := s.reg.Lookup(payload)
		if !ok || !entry.IsPlayerData() || payload.Type != name {
			s.log.Debug("dropping unregistered player data", zap.String("type", name))
			continue
		}
		if err := entry.ValidatePlayerData(payload); err != nil {
			s.fault(p, "player_data", err)
			return
		}
		data[name] = payload
	}
	p.handle = m.Player
	p.data = data
	p.state = protocol.StateJoined
	s.players = append(s.players, p)
	s.log.Info("player joined", zap.Stringer("player", p.handle), zap.Int("players", len(s.players)))
	observability.SetPlayers(roleServer, len(s.players))
}

func (s *Server) initializePlayers() {
	for _, p := range s.players {
		if p.initialized {
			continue
		}
		if s.localPlayer == nil {
			enqueue(s.queue, playerJoinEvent(p.handle, false, false))
		}
		for _, other := range s.players {
			me := other == p
			if !other.initialized && !me {
				continue
			}
			s.send(p, protocol.PlayerJoin(other.handle, me, other.data))
			if !me {
				s.send(other, protocol.PlayerJoin(p.handle, false, p.data))
			}
		}
		p.initialized = true
	}
}

func (s *Server) receiveFromPlayers() {
	for _, p := range s.players {
		p.socket.Update()
		for n := 0; s.opts.MaxMessagesPerTick <= 0 || n < s.opts.MaxMessagesPerTick; n++ {
			if p.faulted {
				break
			}
			data, ok := p.socket.Receive()
			if !ok {
				break
			}
			s.dispatch(p, data)
		}
	}
}

func (s *Server) handleEvent(p *peer, m protocol.Message) {
	s.queue.networkServer(p.handle, *m.Data)
}

func (s *Server) handleEntityEvent(p *peer, m protocol.Message) {
	if m.From == nil {
		// Owner broadcast: fan out to everyone else who can see the entity.
		s.broadcast(m, func(other *peer) bool {
			return other != p && s.relevancy.Relevant(other.handle, m.Entity)
		})
		return
	}

	e, ok := s.entities[m.Entity]
	if !ok {
		s.log.Debug("entity event for unknown entity", zap.Stringer("entity", m.Entity))
		return
	}
	from := p.handle
	if e.owner == nil || (s.localPlayer != nil && *e.owner == *s.localPlayer) {
		s.queue.networkEntity(m.Entity, &from, *m.Data)
		return
	}
	if owner := s.findPlayer(*e.owner); owner != nil {
		s.send(owner, protocol.EntityEvent(m.Entity, &from, *m.Data))
	}
}

func (s *Server) checkDisconnects() {
	var gone []*peer
	kept := s.players[:0]
	for _, p := range s.players {
		if p.socket.Connected() {
			kept = append(kept, p)
			continue
		}
		gone = append(gone, p)
	}
	clear(s.players[len(kept):])
	s.players = kept

	for _, p := range gone {
		s.relevancy.ForgetPlayer(p.handle)
		s.log.Info("player left", zap.Stringer("player", p.handle), zap.Int("players", len(s.players)))
		if !p.initialized {
			continue
		}
		if s.localPlayer == nil {
			enqueue(s.queue, playerLeaveEvent(p.handle))
		}
		s.broadcast(protocol.PlayerLeave(p.handle), nil)
	}
	if len(gone) > 0 {
		observability.SetPlayers(roleServer, len(s.players))
	}
}

// entitiesDiff reconciles the entity table with the host store and emits
// spawn, despawn and ownership messages.
func (s *Server) entitiesDiff(store EntityStore) {
	for _, e := range s.entities {
		e.exists = false
	}
	for _, ne := range store.NetworkEntities() {
		s.getOrInsertEntity(ne).exists = true
	}

	for handle, e := range s.entities {
		if e.exists {
			continue
		}
		for _, p := range s.players {
			if !s.isLocal(p) && s.relevancy.Spawned(p.handle, handle) {
				s.send(p, protocol.EntityDespawn(handle))
			}
		}
		s.relevancy.ForgetEntity(handle)
		delete(s.entities, handle)
	}
	// Drop settings made for identities the store never held.
	s.relevancy.Retain(func(ne protocol.NetworkEntity) bool {
		_, ok := s.entities[ne]
		return ok
	})

	for handle, e := range s.entities {
		notifyOwners := e.ownerChanged && !samePlayer(e.owner, e.lastOwner)
		for _, p := range s.players {
			local := s.isLocal(p)
			owner := local
			if e.owner != nil {
				owner = *e.owner == p.handle
			}
			switch s.relevancy.Update(p.handle, handle, owner || local) {
			case RelevancySpawn:
				if !local {
					s.send(p, protocol.EntitySpawn(handle))
				}
			case RelevancyDespawn:
				if !local {
					s.send(p, protocol.EntityDespawn(handle))
				}
			}
			if !notifyOwners || local {
				continue
			}
			if e.owner != nil && *e.owner == p.handle {
				s.send(p, protocol.EntityOwner(handle, true))
			}
			if e.lastOwner != nil && *e.lastOwner == p.handle {
				s.send(p, protocol.EntityOwner(handle, false))
			}
		}
		if e.ownerChanged {
			e.lastOwner = nil
			e.ownerChanged = false
		}
		if e.owner != nil && s.findPlayer(*e.owner) == nil {
			e.owner = nil
		}
	}
	observability.SetEntities(roleServer, len(s.entities))
}

func (s *Server) sendEntityEvents() {
	for _, em := range s.entityMessages {
		data := s.encode(em.msg)
		for _, p := range s.players {
			if s.relevancy.Relevant(p.handle, em.entity) {
				s.sendRaw(p, em.msg.Kind, data)
			}
		}
	}
	clear(s.entityMessages)
	s.entityMessages = s.entityMessages[:0]
}

// broadcastAsOwner sends an owner broadcast from this node to the remote
// players that can see the entity.
func (s *Server) broadcastAsOwner(entity protocol.NetworkEntity, payload protocol.Payload) {
	s.broadcast(protocol.EntityEvent(entity, nil, payload), func(p *peer) bool {
		return !s.isLocal(p) && s.relevancy.Relevant(p.handle, entity)
	})
}

func (s *Server) playerData(handle protocol.Player) (protocol.PayloadMap, bool) {
	if p := s.findPlayer(handle); p != nil {
		return p.data, true
	}
	return nil, false
}

func (s *Server) close() {
	for _, j := range s.joiners {
		j.socket.Disconnect()
	}
	for _, p := range s.players {
		p.socket.Disconnect()
	}
	for _, h := range s.hosts {
		if err := h.Close(); err != nil {
			s.log.Warn("host close failed", zap.Error(err))
		}
	}
	s.joiners, s.players, s.hosts = nil, nil, nil
	observability.SetPlayers(roleServer, 0)
	observability.SetEntities(roleServer, 0)
}
