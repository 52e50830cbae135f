package replication

import (
	"github.com/l1jgo/nety/internal/codec"
	gonet "github.com/l1jgo/nety/internal/net"
	"github.com/l1jgo/nety/internal/observability"
	"github.com/l1jgo/nety/internal/protocol"
	"github.com/l1jgo/nety/internal/registry"
	"go.uber.org/zap"
)

const roleClient = "client"

type clientPlayer struct {
	handle protocol.Player
	data   protocol.PayloadMap
}

type clientEntity struct {
	initialized bool
	exists      bool
	owner       bool
}

// Client is a session participant talking to one server.
type Client struct {
	socket      gonet.Socket
	me          protocol.Player
	initialized bool
	players     []clientPlayer
	// existingPlayer is true until our own PlayerJoin arrives; joins seen
	// before it describe players that were already in the session.
	existingPlayer bool
	entities       map[protocol.NetworkEntity]*clientEntity

	reg        *registry.Registry
	codec      codec.Codec
	queue      *eventQueue
	dispatcher *protocol.Dispatcher[*Client]
	opts       Options
	faulted    bool
	log        *zap.Logger
}

func newClient(socket gonet.Socket, me protocol.Player, reg *registry.Registry, queue *eventQueue, opts Options, log *zap.Logger) *Client {
	c := &Client{
		socket:         socket,
		me:             me,
		existingPlayer: true,
		entities:       make(map[protocol.NetworkEntity]*clientEntity),
		reg:            reg,
		codec:          reg.Codec(),
		queue:          queue,
		opts:           opts,
		log:            log.With(zap.String("role", roleClient), zap.Stringer("me", me)),
	}
	states := []protocol.SessionState{protocol.StateClient}
	c.dispatcher = protocol.NewDispatcher[*Client](c.log)
	c.dispatcher.Register(protocol.KindPlayerJoin, states, (*Client).handlePlayerJoin)
	c.dispatcher.Register(protocol.KindPlayerLeave, states, (*Client).handlePlayerLeave)
	c.dispatcher.Register(protocol.KindEvent, states, (*Client).handleEvent)
	c.dispatcher.Register(protocol.KindEntitySpawn, states, (*Client).handleEntitySpawn)
	c.dispatcher.Register(protocol.KindEntityDespawn, states, (*Client).handleEntityDespawn)
	c.dispatcher.Register(protocol.KindEntityOwner, states, (*Client).handleEntityOwner)
	c.dispatcher.Register(protocol.KindEntityEvent, states, (*Client).handleEntityEvent)
	return c
}

func (c *Client) Me() protocol.Player { return c.me }

// Players returns the roster in the order the server announced it.
func (c *Client) Players() []protocol.Player {
	out := make([]protocol.Player, 0, len(c.players))
	for _, p := range c.players {
		out = append(out, p.handle)
	}
	return out
}

// IsEntityOwner reports whether the server has handed entity to us.
func (c *Client) IsEntityOwner(entity protocol.NetworkEntity) bool {
	e, ok := c.entities[entity]
	return ok && e.owner
}

func (c *Client) write(m protocol.Message) {
	data, err := protocol.Encode(c.codec, m)
	if err != nil {
		c.log.Error("encode failed", zap.Stringer("kind", m.Kind), zap.Error(err))
		return
	}
	c.socket.Send(data)
	observability.RecordSent(roleClient, m.Kind.String())
}

// Send sends ev to the server.
func (c *Client) Send(ev any) error {
	payload, err := c.reg.Pack(ev)
	if err != nil {
		return err
	}
	c.write(protocol.Event(payload))
	return nil
}

// SendToEntity sends ev to whoever owns entity: the server, or the owning
// client through the server.
func (c *Client) SendToEntity(entity protocol.NetworkEntity, ev any) error {
	payload, err := c.reg.Pack(ev)
	if err != nil {
		return err
	}
	me := c.me
	c.write(protocol.EntityEvent(entity, &me, payload))
	return nil
}

func (c *Client) broadcastAsOwner(entity protocol.NetworkEntity, payload protocol.Payload) {
	c.write(protocol.EntityEvent(entity, nil, payload))
}

func (c *Client) initialize(data protocol.PayloadMap) {
	if c.initialized {
		return
	}
	c.write(protocol.PlayerInit(c.me, data))
	c.initialized = true
}

func (c *Client) receive() {
	c.socket.Update()
	for n := 0; c.opts.MaxMessagesPerTick <= 0 || n < c.opts.MaxMessagesPerTick; n++ {
		if c.faulted {
			return
		}
		data, ok := c.socket.Receive()
		if !ok {
			return
		}
		m, err := protocol.Decode(c.codec, data)
		if err != nil {
			c.fault("decode", err)
			return
		}
		observability.RecordReceived(roleClient, m.Kind.String())
		if err := c.dispatcher.Dispatch(c, protocol.StateClient, m); err != nil {
			c.fault("dispatch", err)
			return
		}
	}
}

func (c *Client) fault(reason string, err error) {
	c.faulted = true
	c.log.Warn("protocol fault, disconnecting", zap.String("reason", reason), zap.Error(err))
	observability.RecordProtocolFault(roleClient, reason)
	c.socket.Disconnect()
}

func (c *Client) handlePlayerJoin(m protocol.Message) {
	if m.Me {
		c.existingPlayer = false
	}
	c.players = append(c.players, clientPlayer{handle: m.Player, data: m.PlayerData})
	enqueue(c.queue, playerJoinEvent(m.Player, m.Me, c.existingPlayer))
}

func (c *Client) handlePlayerLeave(m protocol.Message) {
	kept := c.players[:0]
	for _, p := range c.players {
		if p.handle != m.Player {
			kept = append(kept, p)
		}
	}
	c.players = kept
	enqueue(c.queue, playerLeaveEvent(m.Player))
}

func (c *Client) handleEvent(m protocol.Message) {
	c.queue.network(*m.Data)
}

func (c *Client) handleEntitySpawn(m protocol.Message) {
	if e, ok := c.entities[m.Entity]; ok {
		e.exists = true
		return
	}
	c.entities[m.Entity] = &clientEntity{exists: true}
}

func (c *Client) handleEntityDespawn(m protocol.Message) {
	if e, ok := c.entities[m.Entity]; ok {
		e.exists = false
	}
}

func (c *Client) handleEntityOwner(m protocol.Message) {
	if e, ok := c.entities[m.Entity]; ok {
		e.owner = m.Owner
	}
}

func (c *Client) handleEntityEvent(m protocol.Message) {
	c.queue.networkEntity(m.Entity, m.From, *m.Data)
}

// syncEntities mirrors spawn and despawn decisions into the host store.
func (c *Client) syncEntities(store EntityStore) {
	for handle, e := range c.entities {
		if !e.exists {
			if e.initialized {
				store.Despawn(handle)
			}
			delete(c.entities, handle)
			continue
		}
		if !e.initialized {
			store.Spawn(handle)
			e.initialized = true
		}
	}
	observability.SetEntities(roleClient, len(c.entities))
}

func (c *Client) playerData(handle protocol.Player) (protocol.PayloadMap, bool) {
	for _, p := range c.players {
		if p.handle == handle {
			return p.data, true
		}
	}
	return nil, false
}

func (c *Client) close() {
	c.socket.Disconnect()
}
