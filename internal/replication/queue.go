package replication

import (
	"github.com/l1jgo/nety/internal/core/event"
	"github.com/l1jgo/nety/internal/protocol"
	"github.com/l1jgo/nety/internal/registry"
	"go.uber.org/zap"
)

// eventQueue buffers everything the network produced during a tick until the
// deliver phase hands it to the bus, in arrival order.
type eventQueue struct {
	reg     *registry.Registry
	log     *zap.Logger
	pending []func(*event.Bus)
}

func newEventQueue(reg *registry.Registry, log *zap.Logger) *eventQueue {
	return &eventQueue{reg: reg, log: log}
}

func enqueue[T any](q *eventQueue, ev T) {
	q.pending = append(q.pending, func(b *event.Bus) { event.Emit(b, ev) })
}

func (q *eventQueue) lookup(p protocol.Payload) (*registry.Entry, bool) {
	e, ok := q.reg.Lookup(p)
	if !ok || !e.IsEvent() {
		q.log.Debug("dropping unregistered event", zap.String("type", p.Type))
		return nil, false
	}
	return e, true
}

func (q *eventQueue) network(p protocol.Payload) {
	q.pending = append(q.pending, func(b *event.Bus) {
		if e, ok := q.lookup(p); ok {
			if err := e.PublishEvent(b, p); err != nil {
				q.log.Warn("event decode failed", zap.String("type", p.Type), zap.Error(err))
			}
		}
	})
}

func (q *eventQueue) networkServer(from protocol.Player, p protocol.Payload) {
	q.pending = append(q.pending, func(b *event.Bus) {
		if e, ok := q.lookup(p); ok {
			if err := e.PublishServerEvent(b, from, p); err != nil {
				q.log.Warn("event decode failed", zap.String("type", p.Type), zap.Stringer("from", from), zap.Error(err))
			}
		}
	})
}

func (q *eventQueue) networkEntity(entity protocol.NetworkEntity, from *protocol.Player, p protocol.Payload) {
	q.pending = append(q.pending, func(b *event.Bus) {
		if e, ok := q.lookup(p); ok {
			if err := e.PublishEntityEvent(b, entity, from, p); err != nil {
				q.log.Warn("entity event decode failed", zap.String("type", p.Type), zap.Stringer("entity", entity), zap.Error(err))
			}
		}
	})
}

func (q *eventQueue) deliver(b *event.Bus) {
	for _, fn := range q.pending {
		fn(b)
	}
	clear(q.pending)
	q.pending = q.pending[:0]
}
