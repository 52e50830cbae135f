// Package interest derives entity relevancy from positions: a player sees the
// positioned entities near any entity they own.
package interest

import (
	"time"

	"github.com/l1jgo/nety/internal/component"
	"github.com/l1jgo/nety/internal/core/system"
	"github.com/l1jgo/nety/internal/protocol"
	"github.com/l1jgo/nety/internal/replication"
	"github.com/l1jgo/nety/internal/world"
	"go.uber.org/zap"
)

// Rule decides whether something at offset (dx, dy) from an anchor is
// relevant within radius.
type Rule interface {
	Relevant(dx, dy, radius int32) bool
}

// RuleFunc adapts a plain function to Rule.
type RuleFunc func(dx, dy, radius int32) bool

func (f RuleFunc) Relevant(dx, dy, radius int32) bool { return f(dx, dy, radius) }

// Chebyshev is relevant within a square of side 2*radius+1.
var Chebyshev = RuleFunc(func(dx, dy, radius int32) bool {
	return abs(dx) <= radius && abs(dy) <= radius
})

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Target is the authority that receives relevancy decisions.
type Target interface {
	Players() []protocol.Player
	EntityOwner(entity protocol.NetworkEntity) *protocol.Player
	SetEntityRelevant(entity protocol.NetworkEntity, player protocol.Player, relevant bool)
}

// Policy recomputes relevancy every time it is applied.
type Policy struct {
	Radius int32
	Rule   Rule

	grid *Grid
	log  *zap.Logger
}

func NewPolicy(radius int32, rule Rule, log *zap.Logger) *Policy {
	if rule == nil {
		rule = Chebyshev
	}
	return &Policy{
		Radius: radius,
		Rule:   rule,
		grid:   NewGrid(radius),
		log:    log,
	}
}

type anchor struct {
	entity protocol.NetworkEntity
	pos    component.Position
}

// Apply marks, for every player, the positioned entities within range of
// the entities that player owns as relevant and the rest as irrelevant.
// Players owning no positioned entity see everything. Entities without a
// position are left alone.
func (p *Policy) Apply(target Target, store *world.Store) {
	p.grid.Reset()
	var positioned []protocol.NetworkEntity
	anchors := make(map[protocol.Player][]anchor)
	store.EachPositioned(func(ne protocol.NetworkEntity, pos component.Position) {
		p.grid.Add(ne, pos.X, pos.Y)
		positioned = append(positioned, ne)
		if owner := target.EntityOwner(ne); owner != nil {
			anchors[*owner] = append(anchors[*owner], anchor{entity: ne, pos: pos})
		}
	})

	for _, player := range target.Players() {
		owned := anchors[player]
		if len(owned) == 0 {
			for _, ne := range positioned {
				target.SetEntityRelevant(ne, player, true)
			}
			continue
		}

		visible := make(map[protocol.NetworkEntity]bool)
		for _, a := range owned {
			for _, ne := range p.grid.Nearby(a.pos.X, a.pos.Y, p.Radius) {
				if visible[ne] {
					continue
				}
				x, y, _ := p.grid.Position(ne)
				if p.Rule.Relevant(x-a.pos.X, y-a.pos.Y, p.Radius) {
					visible[ne] = true
				}
			}
		}
		for _, ne := range positioned {
			target.SetEntityRelevant(ne, player, visible[ne])
		}
		p.log.Debug("interest applied",
			zap.Stringer("player", player),
			zap.Int("anchors", len(owned)),
			zap.Int("visible", len(visible)),
		)
	}
}

// System runs the policy once per tick while n is acting as a server.
func (p *Policy) System(n *replication.Network, store *world.Store) system.System {
	return system.Func{At: system.PhaseInterest, Fn: func(time.Duration) {
		if s := n.Server(); s != nil {
			p.Apply(s, store)
		}
	}}
}
