package component

import "github.com/l1jgo/nety/internal/protocol"

// NetworkTag links a host entity to its replicated identity.
type NetworkTag struct {
	Entity protocol.NetworkEntity
}

// Owned marks entities the local node owns. On the server this is every
// entity without a remote owner.
type Owned struct{}

// Position places an entity on the interest grid.
type Position struct {
	X int32
	Y int32
}
