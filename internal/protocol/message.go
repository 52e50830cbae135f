package protocol

import (
	"errors"
	"fmt"

	"github.com/l1jgo/nety/internal/codec"
)

var (
	ErrUnknownKind = errors.New("protocol: unknown message kind")
	ErrMalformed   = errors.New("protocol: malformed message")
)

// Kind tags the variant carried by a Message.
type Kind uint8

const (
	KindPlayerInit Kind = iota + 1
	KindPlayerJoin
	KindPlayerLeave
	KindEvent
	KindEntitySpawn
	KindEntityDespawn
	KindEntityOwner
	KindEntityEvent
)

func (k Kind) String() string {
	switch k {
	case KindPlayerInit:
		return "PlayerInit"
	case KindPlayerJoin:
		return "PlayerJoin"
	case KindPlayerLeave:
		return "PlayerLeave"
	case KindEvent:
		return "Event"
	case KindEntitySpawn:
		return "EntitySpawn"
	case KindEntityDespawn:
		return "EntityDespawn"
	case KindEntityOwner:
		return "EntityOwner"
	case KindEntityEvent:
		return "EntityEvent"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Message is the tagged union exchanged between peers. Only the fields
// relevant to Kind are populated.
//
//	PlayerInit    Player, PlayerData
//	PlayerJoin    Player, Me, PlayerData
//	PlayerLeave   Player
//	Event         Data
//	EntitySpawn   Entity
//	EntityDespawn Entity
//	EntityOwner   Entity, Owner
//	EntityEvent   Entity, From (nil for owner broadcasts), Data
type Message struct {
	Kind       Kind          `msgpack:"k" json:"k"`
	Player     Player        `msgpack:"p" json:"p"`
	Me         bool          `msgpack:"me,omitempty" json:"me,omitempty"`
	Entity     NetworkEntity `msgpack:"e" json:"e"`
	Owner      bool          `msgpack:"o,omitempty" json:"o,omitempty"`
	From       *Player       `msgpack:"f,omitempty" json:"f,omitempty"`
	Data       *Payload      `msgpack:"d,omitempty" json:"d,omitempty"`
	PlayerData PayloadMap    `msgpack:"pd,omitempty" json:"pd,omitempty"`
}

func PlayerInit(p Player, data PayloadMap) Message {
	return Message{Kind: KindPlayerInit, Player: p, PlayerData: data}
}

func PlayerJoin(p Player, me bool, data PayloadMap) Message {
	return Message{Kind: KindPlayerJoin, Player: p, Me: me, PlayerData: data}
}

func PlayerLeave(p Player) Message {
	return Message{Kind: KindPlayerLeave, Player: p}
}

func Event(data Payload) Message {
	return Message{Kind: KindEvent, Data: &data}
}

func EntitySpawn(e NetworkEntity) Message {
	return Message{Kind: KindEntitySpawn, Entity: e}
}

func EntityDespawn(e NetworkEntity) Message {
	return Message{Kind: KindEntityDespawn, Entity: e}
}

func EntityOwner(e NetworkEntity, owner bool) Message {
	return Message{Kind: KindEntityOwner, Entity: e, Owner: owner}
}

// EntityEvent builds an entity-scoped event. A nil from marks an owner
// broadcast.
func EntityEvent(e NetworkEntity, from *Player, data Payload) Message {
	return Message{Kind: KindEntityEvent, Entity: e, From: from, Data: &data}
}

// Validate checks that the fields required by Kind are present.
func (m Message) Validate() error {
	switch m.Kind {
	case KindPlayerInit, KindPlayerJoin, KindPlayerLeave:
		if m.Player.IsZero() {
			return fmt.Errorf("%w: %s without player", ErrMalformed, m.Kind)
		}
	case KindEvent:
		if m.Data == nil || m.Data.Type == "" {
			return fmt.Errorf("%w: %s without payload", ErrMalformed, m.Kind)
		}
	case KindEntitySpawn, KindEntityDespawn, KindEntityOwner:
		if m.Entity.IsZero() {
			return fmt.Errorf("%w: %s without entity", ErrMalformed, m.Kind)
		}
	case KindEntityEvent:
		if m.Entity.IsZero() {
			return fmt.Errorf("%w: %s without entity", ErrMalformed, m.Kind)
		}
		if m.Data == nil || m.Data.Type == "" {
			return fmt.Errorf("%w: %s without payload", ErrMalformed, m.Kind)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, m.Kind)
	}
	return nil
}

// Encode serializes m with c.
func Encode(c codec.Codec, m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	b, err := c.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return b, nil
}

// Decode parses and validates one message.
func Decode(c codec.Codec, data []byte) (Message, error) {
	var m Message
	if err := c.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
