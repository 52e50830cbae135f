package replication

import (
	"time"

	"github.com/l1jgo/nety/internal/core/event"
	"github.com/l1jgo/nety/internal/core/system"
)

// Systems returns the replication pipeline, one system per phase. Register
// them with a system.Runner and tick it once per frame.
func (n *Network) Systems(store EntityStore, bus *event.Bus) []system.System {
	return []system.System{
		system.Func{At: system.PhaseConnect, Fn: func(time.Duration) {
			n.updateConnector()
			n.clientInitialize()
		}},
		system.Func{At: system.PhaseAccept, Fn: func(time.Duration) {
			if n.server != nil {
				n.server.acceptSockets()
			}
		}},
		system.Func{At: system.PhaseHandshake, Fn: func(time.Duration) {
			if n.server != nil {
				n.server.receiveFromJoiners()
			}
		}},
		system.Func{At: system.PhaseEntityDiff, Fn: func(time.Duration) {
			if n.server != nil {
				n.server.entitiesDiff(store)
			}
			n.flushOwnerEvents()
			if n.server != nil {
				n.server.sendEntityEvents()
			}
		}},
		system.Func{At: system.PhaseInitialize, Fn: func(time.Duration) {
			if n.server != nil {
				n.server.initializePlayers()
			}
		}},
		system.Func{At: system.PhaseReceive, Fn: func(time.Duration) {
			if n.client != nil {
				n.client.receive()
			}
			if n.server != nil {
				n.server.receiveFromPlayers()
			}
		}},
		system.Func{At: system.PhaseDisconnect, Fn: func(time.Duration) {
			n.clientCheckDisconnect()
			if n.server != nil {
				n.server.checkDisconnects()
			}
		}},
		system.Func{At: system.PhaseWorldSync, Fn: func(time.Duration) {
			if n.client != nil {
				n.client.syncEntities(store)
			}
			n.updateEntities(store)
		}},
		system.Func{At: system.PhaseDeliver, Fn: func(time.Duration) {
			n.deliver(bus)
		}},
	}
}
