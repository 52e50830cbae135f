package event

import "github.com/l1jgo/nety/internal/protocol"

// Session lifecycle.

type Connect struct {
	IsServer bool
	IsClient bool
}

type Connecting struct{}

// Disconnect is emitted exactly once per session end. FailedToConnect is set
// when a connector gave up before a session was established.
type Disconnect struct {
	FailedToConnect bool
}

// Roster.

// PlayerJoin reports a player entering the session. Me marks the local
// player; ExistingPlayer marks players that were already present when the
// local player joined.
type PlayerJoin struct {
	Player         protocol.Player
	Me             bool
	ExistingPlayer bool
}

type PlayerLeave struct {
	Player protocol.Player
}

// Application payloads.

// Event carries a network event received from the server.
type Event[T any] struct {
	Data T
}

// ServerEvent carries a network event a client sent to the server.
type ServerEvent[T any] struct {
	From protocol.Player
	Data T
}

// EntityEvent carries an event addressed to a network entity. From is nil
// for broadcasts made by the entity's owner.
type EntityEvent[T any] struct {
	Entity protocol.NetworkEntity
	From   *protocol.Player
	Data   T
}
