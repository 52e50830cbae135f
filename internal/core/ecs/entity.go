package ecs

import "fmt"

// EntityID packs a slot index (low 32 bits) and the slot's generation (high
// 32 bits). A destroyed slot bumps its generation, so old IDs stop matching.
type EntityID uint64

func makeID(slot, gen uint32) EntityID {
	return EntityID(uint64(gen)<<32 | uint64(slot))
}

func (id EntityID) Slot() uint32       { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

func (id EntityID) String() string {
	return fmt.Sprintf("%dv%d", id.Slot(), id.Generation())
}

// Pool hands out entity IDs and recycles destroyed slots.
type Pool struct {
	gens []uint32
	free []uint32
	live int
}

func NewPool() *Pool {
	return &Pool{gens: make([]uint32, 0, 256)}
}

func (p *Pool) Create() EntityID {
	p.live++
	if n := len(p.free); n > 0 {
		slot := p.free[n-1]
		p.free = p.free[:n-1]
		return makeID(slot, p.gens[slot])
	}
	p.gens = append(p.gens, 0)
	return makeID(uint32(len(p.gens)-1), 0)
}

func (p *Pool) Alive(id EntityID) bool {
	slot := int(id.Slot())
	return slot < len(p.gens) && p.gens[slot] == id.Generation()
}

// Destroy frees id's slot. Stale IDs are ignored.
func (p *Pool) Destroy(id EntityID) bool {
	if !p.Alive(id) {
		return false
	}
	p.gens[id.Slot()]++
	p.free = append(p.free, id.Slot())
	p.live--
	return true
}

// Live is the number of entities created and not yet destroyed.
func (p *Pool) Live() int { return p.live }
