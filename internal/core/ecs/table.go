package ecs

// Column is any per-entity table the World clears on destroy.
type Column interface {
	Delete(id EntityID)
}

// Table holds one component value per entity.
type Table[T any] struct {
	rows map[EntityID]T
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{rows: make(map[EntityID]T)}
}

func (t *Table[T]) Set(id EntityID, v T) { t.rows[id] = v }

func (t *Table[T]) Get(id EntityID) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *Table[T]) Has(id EntityID) bool {
	_, ok := t.rows[id]
	return ok
}

func (t *Table[T]) Delete(id EntityID) { delete(t.rows, id) }

func (t *Table[T]) Len() int { return len(t.rows) }

// Range visits every row until fn returns false.
func (t *Table[T]) Range(fn func(EntityID, T) bool) {
	for id, v := range t.rows {
		if !fn(id, v) {
			return
		}
	}
}

// Join visits entities present in both tables, scanning the smaller one.
func Join[A, B any](a *Table[A], b *Table[B], fn func(EntityID, A, B)) {
	if a.Len() <= b.Len() {
		for id, va := range a.rows {
			if vb, ok := b.rows[id]; ok {
				fn(id, va, vb)
			}
		}
		return
	}
	for id, vb := range b.rows {
		if va, ok := a.rows[id]; ok {
			fn(id, va, vb)
		}
	}
}
