package ecs

// World owns the entity pool and the tables attached to it. Destruction is
// deferred: Despawn queues, Flush destroys.
type World struct {
	pool    *Pool
	columns []Column
	doomed  map[EntityID]struct{}
	order   []EntityID
}

func NewWorld() *World {
	return &World{
		pool:   NewPool(),
		doomed: make(map[EntityID]struct{}),
	}
}

// Attach registers a table to be cleared when its entities are destroyed.
func (w *World) Attach(c Column) { w.columns = append(w.columns, c) }

func (w *World) Create() EntityID       { return w.pool.Create() }
func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }
func (w *World) Live() int              { return w.pool.Live() }

// Despawn queues id for the next Flush. Repeated calls are no-ops.
func (w *World) Despawn(id EntityID) {
	if _, ok := w.doomed[id]; ok || !w.pool.Alive(id) {
		return
	}
	w.doomed[id] = struct{}{}
	w.order = append(w.order, id)
}

func (w *World) Doomed(id EntityID) bool {
	_, ok := w.doomed[id]
	return ok
}

// Flush destroys every queued entity and returns how many were removed.
func (w *World) Flush() int {
	n := 0
	for _, id := range w.order {
		for _, c := range w.columns {
			c.Delete(id)
		}
		if w.pool.Destroy(id) {
			n++
		}
		delete(w.doomed, id)
	}
	w.order = w.order[:0]
	return n
}
