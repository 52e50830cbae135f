package protocol

import "github.com/google/uuid"

// Player identifies a participant for the lifetime of a session. Handles are
// random and never reused after the player leaves.
type Player uuid.UUID

func NewPlayer() Player { return Player(uuid.New()) }

func (p Player) String() string { return uuid.UUID(p).String() }
func (p Player) IsZero() bool   { return p == Player{} }

func (p Player) MarshalText() ([]byte, error) { return uuid.UUID(p).MarshalText() }

func (p *Player) UnmarshalText(b []byte) error { return (*uuid.UUID)(p).UnmarshalText(b) }

// NetworkEntity is the replicated identity layered onto a host entity.
type NetworkEntity uuid.UUID

func NewNetworkEntity() NetworkEntity { return NetworkEntity(uuid.New()) }

func (e NetworkEntity) String() string { return uuid.UUID(e).String() }
func (e NetworkEntity) IsZero() bool   { return e == NetworkEntity{} }

func (e NetworkEntity) MarshalText() ([]byte, error) { return uuid.UUID(e).MarshalText() }

func (e *NetworkEntity) UnmarshalText(b []byte) error { return (*uuid.UUID)(e).UnmarshalText(b) }

// Payload is an opaque encoded value tagged with its registered type name.
type Payload struct {
	Type string `msgpack:"t" json:"t"`
	Data []byte `msgpack:"d" json:"d"`
}

// PayloadMap holds one payload per type name. Player data travels this way.
type PayloadMap map[string]Payload

// Clone returns a shallow copy; payload bytes are shared.
func (m PayloadMap) Clone() PayloadMap {
	out := make(PayloadMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
