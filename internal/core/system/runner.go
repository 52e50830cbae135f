package system

import "time"

// Runner executes systems phase by phase each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	phases [phaseCount][]System
	ticks  uint64
}

func NewRunner() *Runner {
	return &Runner{}
}

// Register adds systems. A system with an out-of-range phase runs last.
func (r *Runner) Register(systems ...System) {
	for _, s := range systems {
		p := s.Phase()
		if p < 0 || p >= phaseCount {
			p = PhaseCleanup
		}
		r.phases[p] = append(r.phases[p], s)
	}
}

func (r *Runner) Tick(dt time.Duration) {
	r.ticks++
	for _, bucket := range r.phases {
		for _, s := range bucket {
			s.Update(dt)
		}
	}
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	if phase < 0 || phase >= phaseCount {
		return
	}
	for _, s := range r.phases[phase] {
		s.Update(dt)
	}
}

// Ticks is the number of completed Tick calls.
func (r *Runner) Ticks() uint64 { return r.ticks }

// Len is the number of registered systems.
func (r *Runner) Len() int {
	n := 0
	for _, bucket := range r.phases {
		n += len(bucket)
	}
	return n
}
