package replication

import "github.com/l1jgo/nety/internal/protocol"

// RelevancyState is the outcome of one relevancy update.
type RelevancyState int

const (
	RelevancySpawn RelevancyState = iota
	RelevancyDespawn
	RelevancyRelevant
	RelevancyIrrelevant
)

func (s RelevancyState) String() string {
	switch s {
	case RelevancySpawn:
		return "Spawn"
	case RelevancyDespawn:
		return "Despawn"
	case RelevancyRelevant:
		return "Relevant"
	case RelevancyIrrelevant:
		return "Irrelevant"
	default:
		return "Unknown"
	}
}

type relevancyEntry struct {
	spawned  bool
	relevant bool
	manual   bool
}

// Relevancy tracks, per (entity, player), whether the entity should exist on
// that player's client and whether it has been spawned there.
type Relevancy struct {
	entries map[protocol.NetworkEntity]map[protocol.Player]*relevancyEntry
}

func NewRelevancy() *Relevancy {
	return &Relevancy{
		entries: make(map[protocol.NetworkEntity]map[protocol.Player]*relevancyEntry),
	}
}

func (r *Relevancy) entry(player protocol.Player, entity protocol.NetworkEntity) *relevancyEntry {
	byPlayer, ok := r.entries[entity]
	if !ok {
		byPlayer = make(map[protocol.Player]*relevancyEntry)
		r.entries[entity] = byPlayer
	}
	e, ok := byPlayer[player]
	if !ok {
		e = &relevancyEntry{manual: true, relevant: true}
		byPlayer[player] = e
	}
	return e
}

func (r *Relevancy) lookup(player protocol.Player, entity protocol.NetworkEntity) (*relevancyEntry, bool) {
	e, ok := r.entries[entity][player]
	return e, ok
}

// Update recomputes relevance. force overrides a manual false; it is set
// for the owner and for the server's local player.
func (r *Relevancy) Update(player protocol.Player, entity protocol.NetworkEntity, force bool) RelevancyState {
	e := r.entry(player, entity)
	e.relevant = e.manual || force
	switch {
	case e.relevant && !e.spawned:
		e.spawned = true
		return RelevancySpawn
	case e.relevant:
		return RelevancyRelevant
	case e.spawned:
		e.spawned = false
		return RelevancyDespawn
	default:
		return RelevancyIrrelevant
	}
}

// Relevant reports the last computed relevance. Pairs that were never
// evaluated are relevant.
func (r *Relevancy) Relevant(player protocol.Player, entity protocol.NetworkEntity) bool {
	e, ok := r.lookup(player, entity)
	return !ok || e.relevant
}

// Spawned reports whether entity is currently spawned on player's client.
func (r *Relevancy) Spawned(player protocol.Player, entity protocol.NetworkEntity) bool {
	e, ok := r.lookup(player, entity)
	return ok && e.spawned
}

// SetRelevant sets the manual flag; it takes effect on the next Update.
func (r *Relevancy) SetRelevant(player protocol.Player, entity protocol.NetworkEntity, relevant bool) {
	r.entry(player, entity).manual = relevant
}

func (r *Relevancy) ForgetEntity(entity protocol.NetworkEntity) {
	delete(r.entries, entity)
}

func (r *Relevancy) ForgetPlayer(player protocol.Player) {
	for entity, byPlayer := range r.entries {
		delete(byPlayer, player)
		if len(byPlayer) == 0 {
			delete(r.entries, entity)
		}
	}
}

// Retain drops every entity for which keep returns false.
func (r *Relevancy) Retain(keep func(protocol.NetworkEntity) bool) {
	for entity := range r.entries {
		if !keep(entity) {
			delete(r.entries, entity)
		}
	}
}

// Len is the number of entities with at least one entry.
func (r *Relevancy) Len() int { return len(r.entries) }
