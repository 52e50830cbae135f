package replication

import (
	"errors"

	"github.com/l1jgo/nety/internal/protocol"
)

var (
	ErrNotOwner     = errors.New("replication: not the entity owner")
	ErrNotConnected = errors.New("replication: not connected")
	ErrNotServer    = errors.New("replication: not a server")
)

// Options tunes the per-tick work done by the pipeline.
type Options struct {
	// MaxMessagesPerTick caps how many messages are drained from one socket
	// per tick. 0 drains everything available.
	MaxMessagesPerTick int
	// HandshakeTimeoutTicks disconnects joiners that have not sent
	// PlayerInit after this many ticks. 0 waits forever.
	HandshakeTimeoutTicks int
}

func DefaultOptions() Options {
	return Options{
		MaxMessagesPerTick:    64,
		HandshakeTimeoutTicks: 300,
	}
}

// EntityStore is the host application's entity storage as seen by the
// replication pipeline.
type EntityStore interface {
	// NetworkEntities lists every live networked entity.
	NetworkEntities() []protocol.NetworkEntity
	// Spawn creates a host entity for an identity received from the server.
	Spawn(e protocol.NetworkEntity)
	// Despawn removes the host entity carrying e.
	Despawn(e protocol.NetworkEntity)
	// SetOwner toggles the local ownership marker.
	SetOwner(e protocol.NetworkEntity, owner bool)
}

func samePlayer(a, b *protocol.Player) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
