package event

import (
	"reflect"
	"sync"
)

// stream is the per-type half of the bus.
type stream interface {
	swap()
	dispatch()
}

type typedStream[T any] struct {
	front    []T
	back     []T
	handlers []func(T)
}

func (s *typedStream[T]) swap() {
	s.front, s.back = s.back, s.front[:0]
}

func (s *typedStream[T]) dispatch() {
	for _, ev := range s.front {
		for _, h := range s.handlers {
			h(ev)
		}
	}
}

// Bus is a double-buffered event bus. Events emitted during tick N become
// visible after the next SwapBuffers; the replication pipeline swaps and
// dispatches once per tick in its deliver phase. Types are dispatched in the
// order the bus first saw them.
type Bus struct {
	mu      sync.Mutex // guards stream creation only
	streams map[reflect.Type]stream
	order   []stream
}

func NewBus() *Bus {
	return &Bus{streams: make(map[reflect.Type]stream)}
}

func streamFor[T any](b *Bus) *typedStream[T] {
	key := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.streams[key]; ok {
		return s.(*typedStream[T])
	}
	s := &typedStream[T]{}
	b.streams[key] = s
	b.order = append(b.order, s)
	return s
}

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	s := streamFor[T](b)
	s.back = append(s.back, event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	s := streamFor[T](b)
	s.handlers = append(s.handlers, fn)
}

// Read returns a copy of the events of type T delivered by the most recent
// swap.
func Read[T any](b *Bus) []T {
	s := streamFor[T](b)
	out := make([]T, len(s.front))
	copy(out, s.front)
	return out
}

// SwapBuffers rotates back to front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	for _, s := range b.order {
		s.swap()
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	for i := 0; i < len(b.order); i++ {
		b.order[i].dispatch()
	}
}
