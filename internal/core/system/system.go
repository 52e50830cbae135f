package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseConnect    Phase = iota // 0: poll connector, client handshake
	PhaseAccept                  // 1: accept sockets from hosts
	PhaseHandshake               // 2: promote joiners to players
	PhaseInterest                // 3: recompute manual relevancy
	PhaseEntityDiff              // 4: spawn/despawn/owner diff, queued entity events
	PhaseInitialize              // 5: roster broadcast to new players
	PhaseReceive                 // 6: drain sockets
	PhaseDisconnect              // 7: sweep dead sockets
	PhaseWorldSync               // 8: mirror network entities into the host store
	PhaseDeliver                 // 9: event queue to bus
	PhasePersist                 // 10: batch save
	PhaseCleanup                 // 11: destroy queued entities

	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseConnect:
		return "Connect"
	case PhaseAccept:
		return "Accept"
	case PhaseHandshake:
		return "Handshake"
	case PhaseInterest:
		return "Interest"
	case PhaseEntityDiff:
		return "EntityDiff"
	case PhaseInitialize:
		return "Initialize"
	case PhaseReceive:
		return "Receive"
	case PhaseDisconnect:
		return "Disconnect"
	case PhaseWorldSync:
		return "WorldSync"
	case PhaseDeliver:
		return "Deliver"
	case PhasePersist:
		return "Persist"
	case PhaseCleanup:
		return "Cleanup"
	default:
		return "Unknown"
	}
}

// System is the interface every pipeline stage implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Func adapts a plain function to System.
type Func struct {
	At Phase
	Fn func(dt time.Duration)
}

func (f Func) Phase() Phase            { return f.At }
func (f Func) Update(dt time.Duration) { f.Fn(dt) }
