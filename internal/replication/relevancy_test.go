package replication

import (
	"testing"

	"github.com/l1jgo/nety/internal/protocol"
)

func TestRelevancyTransitions(t *testing.T) {
	r := NewRelevancy()
	p := protocol.NewPlayer()
	e := protocol.NewNetworkEntity()

	if !r.Relevant(p, e) {
		t.Fatal("unevaluated pair should be relevant")
	}
	if r.Spawned(p, e) {
		t.Fatal("unevaluated pair should not be spawned")
	}

	steps := []struct {
		manual *bool
		force  bool
		want   RelevancyState
	}{
		{nil, false, RelevancySpawn},
		{nil, false, RelevancyRelevant},
		{ptr(false), false, RelevancyDespawn},
		{nil, false, RelevancyIrrelevant},
		{nil, true, RelevancySpawn},
		{nil, false, RelevancyDespawn},
		{ptr(true), false, RelevancySpawn},
	}
	for i, s := range steps {
		if s.manual != nil {
			r.SetRelevant(p, e, *s.manual)
		}
		if got := r.Update(p, e, s.force); got != s.want {
			t.Fatalf("step %d: got %s, want %s", i, got, s.want)
		}
	}
}

func TestRelevancyForget(t *testing.T) {
	r := NewRelevancy()
	p1, p2 := protocol.NewPlayer(), protocol.NewPlayer()
	e := protocol.NewNetworkEntity()

	r.SetRelevant(p1, e, false)
	r.Update(p1, e, false)
	r.Update(p2, e, false)
	if r.Relevant(p1, e) || !r.Spawned(p2, e) {
		t.Fatal("unexpected initial state")
	}

	r.ForgetPlayer(p1)
	if !r.Relevant(p1, e) {
		t.Fatal("forgotten player should read as relevant")
	}
	if !r.Spawned(p2, e) {
		t.Fatal("ForgetPlayer touched another player")
	}

	r.ForgetEntity(e)
	if r.Spawned(p2, e) {
		t.Fatal("ForgetEntity kept state")
	}
	if len(r.entries) != 0 {
		t.Fatalf("entries = %d", len(r.entries))
	}
}

func ptr[T any](v T) *T { return &v }
