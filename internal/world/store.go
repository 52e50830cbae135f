package world

import (
	"github.com/l1jgo/nety/internal/component"
	"github.com/l1jgo/nety/internal/core/ecs"
	"github.com/l1jgo/nety/internal/protocol"
	"go.uber.org/zap"
)

// Store is the host entity store: an ECS world whose networked entities are
// indexed by their replicated identity. Accessed only from the tick goroutine.
type Store struct {
	ecs *ecs.World

	Tags      *ecs.Table[component.NetworkTag]
	Owned     *ecs.Table[component.Owned]
	Positions *ecs.Table[component.Position]

	index map[protocol.NetworkEntity]ecs.EntityID
	log   *zap.Logger
}

func NewStore(log *zap.Logger) *Store {
	s := &Store{
		ecs:       ecs.NewWorld(),
		Tags:      ecs.NewTable[component.NetworkTag](),
		Owned:     ecs.NewTable[component.Owned](),
		Positions: ecs.NewTable[component.Position](),
		index:     make(map[protocol.NetworkEntity]ecs.EntityID),
		log:       log,
	}
	s.ecs.Attach(s.Tags)
	s.ecs.Attach(s.Owned)
	s.ecs.Attach(s.Positions)
	return s
}

func (s *Store) ECS() *ecs.World { return s.ecs }

// Create makes a new networked entity with a fresh identity. Only the
// server should create entities; clients receive theirs through Spawn.
func (s *Store) Create(pos *component.Position) protocol.NetworkEntity {
	ne := protocol.NewNetworkEntity()
	id := s.attach(ne)
	if pos != nil {
		s.Positions.Set(id, *pos)
	}
	return ne
}

// Tag gives an existing host entity a network identity.
func (s *Store) Tag(id ecs.EntityID) protocol.NetworkEntity {
	if tag, ok := s.Tags.Get(id); ok {
		return tag.Entity
	}
	ne := protocol.NewNetworkEntity()
	s.Tags.Set(id, component.NetworkTag{Entity: ne})
	s.index[ne] = id
	return ne
}

func (s *Store) attach(ne protocol.NetworkEntity) ecs.EntityID {
	id := s.ecs.Create()
	s.Tags.Set(id, component.NetworkTag{Entity: ne})
	s.index[ne] = id
	return id
}

// Lookup returns the host entity for ne.
func (s *Store) Lookup(ne protocol.NetworkEntity) (ecs.EntityID, bool) {
	id, ok := s.index[ne]
	return id, ok
}

func (s *Store) Len() int { return len(s.index) }

// NetworkEntities lists every live networked entity.
func (s *Store) NetworkEntities() []protocol.NetworkEntity {
	out := make([]protocol.NetworkEntity, 0, len(s.index))
	for ne := range s.index {
		out = append(out, ne)
	}
	return out
}

// Spawn creates a host entity for a replicated identity. Spawning an
// identity that already exists is ignored.
func (s *Store) Spawn(ne protocol.NetworkEntity) {
	if _, ok := s.index[ne]; ok {
		return
	}
	s.attach(ne)
	s.log.Debug("entity spawned", zap.Stringer("entity", ne))
}

// Despawn removes ne from the index and queues its host entity for
// destruction at the end of the tick.
func (s *Store) Despawn(ne protocol.NetworkEntity) {
	id, ok := s.index[ne]
	if !ok {
		return
	}
	delete(s.index, ne)
	s.ecs.Despawn(id)
	s.log.Debug("entity despawned", zap.Stringer("entity", ne))
}

func (s *Store) SetOwner(ne protocol.NetworkEntity, owner bool) {
	id, ok := s.index[ne]
	if !ok {
		return
	}
	if owner {
		s.Owned.Set(id, component.Owned{})
		return
	}
	s.Owned.Delete(id)
}

func (s *Store) IsOwner(ne protocol.NetworkEntity) bool {
	id, ok := s.index[ne]
	return ok && s.Owned.Has(id)
}

// Position returns the entity's grid position, if it has one.
func (s *Store) Position(ne protocol.NetworkEntity) (component.Position, bool) {
	id, ok := s.index[ne]
	if !ok {
		return component.Position{}, false
	}
	return s.Positions.Get(id)
}

func (s *Store) SetPosition(ne protocol.NetworkEntity, x, y int32) {
	id, ok := s.index[ne]
	if !ok {
		return
	}
	s.Positions.Set(id, component.Position{X: x, Y: y})
}

// EachPositioned visits every networked entity with a position.
func (s *Store) EachPositioned(fn func(protocol.NetworkEntity, component.Position)) {
	ecs.Join(s.Tags, s.Positions, func(id ecs.EntityID, tag component.NetworkTag, p component.Position) {
		if !s.ecs.Doomed(id) {
			fn(tag.Entity, p)
		}
	})
}

// FlushDestroyQueue destroys entities despawned this tick.
func (s *Store) FlushDestroyQueue() int {
	return s.ecs.Flush()
}
