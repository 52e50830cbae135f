package replication

import (
	"errors"
	"sort"
	"testing"

	"github.com/l1jgo/nety/internal/protocol"
)

func sortedEntities(a *testApp) []string {
	var out []string
	for _, ne := range a.store.NetworkEntities() {
		out = append(out, ne.String())
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEntitiesReplicateToAllPeers(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	env.flush()
	for i := 0; i < 3; i++ {
		server.store.Create(nil)
	}
	env.flush()
	c1 := env.createClient("c1", "server")
	c2 := env.createClient("c2", "server")
	env.flush()

	want := sortedEntities(server)
	if len(want) != 3 {
		t.Fatalf("server has %d entities", len(want))
	}
	for _, app := range []*testApp{c1, c2} {
		if got := sortedEntities(app); !equalStrings(got, want) {
			t.Fatalf("%s entities = %v, want %v", app.name, got, want)
		}
	}
}

func TestEntityDespawnReplicates(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	client := env.createClient("client", "server")
	env.flush()

	a := server.store.Create(nil)
	b := server.store.Create(nil)
	env.flush()
	if client.store.Len() != 2 {
		t.Fatalf("client has %d entities", client.store.Len())
	}

	server.store.Despawn(a)
	env.flush()
	if client.store.Len() != 1 {
		t.Fatalf("client has %d entities after despawn", client.store.Len())
	}
	if _, ok := client.store.Lookup(b); !ok {
		t.Fatal("wrong entity despawned")
	}
}

func TestRelevancyHidesEntities(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	c2 := env.createClient("c2", "server")
	env.flush()

	ne := server.store.Create(nil)
	server.server(t).SetEntityRelevant(ne, c1.me(t), false)
	env.flush()

	if c1.store.Len() != 0 {
		t.Fatal("irrelevant entity spawned on c1")
	}
	if c2.store.Len() != 1 {
		t.Fatal("relevant entity missing on c2")
	}

	server.server(t).SetEntityRelevant(ne, c1.me(t), true)
	env.flush()
	if c1.store.Len() != 1 {
		t.Fatal("entity not spawned once relevant")
	}

	server.server(t).SetEntityRelevant(ne, c1.me(t), false)
	env.flush()
	if c1.store.Len() != 0 {
		t.Fatal("entity not despawned once irrelevant")
	}
	if c2.store.Len() != 1 {
		t.Fatal("c2 lost the entity")
	}
}

func TestOwnershipForcesRelevancy(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	env.flush()

	ne := server.store.Create(nil)
	me := c1.me(t)
	server.server(t).SetEntityRelevant(ne, me, false)
	server.server(t).SetEntityOwner(ne, &me)
	env.flush()

	if c1.store.Len() != 1 {
		t.Fatal("owned entity hidden from its owner")
	}
	if !c1.net.IsEntityOwner(ne) || !c1.store.IsOwner(ne) {
		t.Fatal("owner marker missing on client")
	}
	if server.net.IsEntityOwner(ne) || server.store.IsOwner(ne) {
		t.Fatal("server still marked as owner")
	}

	server.server(t).SetEntityOwner(ne, nil)
	env.flush()
	if c1.store.Len() != 0 {
		t.Fatal("entity stayed after ownership was revoked")
	}
	if !server.store.IsOwner(ne) {
		t.Fatal("server did not take ownership back")
	}
}

func TestLocalPlayerAlwaysRelevant(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServerClient("server")
	env.flush()

	ne := server.store.Create(nil)
	server.server(t).SetEntityRelevant(ne, server.me(t), false)
	env.flush()

	if !server.server(t).relevancy.Relevant(server.me(t), ne) {
		t.Fatal("entity irrelevant to the local player")
	}
	if server.store.Len() != 1 {
		t.Fatalf("store has %d entities", server.store.Len())
	}
}

func TestOwnerChangeNotifiesOldAndNewOwner(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	c2 := env.createClient("c2", "server")
	env.flush()

	ne := server.store.Create(nil)
	first := c1.me(t)
	server.server(t).SetEntityOwner(ne, &first)
	env.flush()
	if !c1.net.IsEntityOwner(ne) || c2.net.IsEntityOwner(ne) {
		t.Fatal("initial ownership wrong")
	}

	second := c2.me(t)
	server.server(t).SetEntityOwner(ne, &second)
	env.flush()
	if c1.net.IsEntityOwner(ne) || !c2.net.IsEntityOwner(ne) {
		t.Fatal("ownership did not move")
	}
	if c1.store.IsOwner(ne) || !c2.store.IsOwner(ne) {
		t.Fatal("store markers did not follow ownership")
	}
	if got := server.server(t).EntityOwner(ne); got == nil || *got != second {
		t.Fatalf("server owner = %v", got)
	}
}

func TestOwnerResetWhenOwnerLeaves(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	env.flush()

	ne := server.store.Create(nil)
	me := c1.me(t)
	server.server(t).SetEntityOwner(ne, &me)
	env.flush()

	c1.net.Stop()
	env.flush()
	if got := server.server(t).EntityOwner(ne); got != nil {
		t.Fatalf("owner = %v after leaving", got)
	}
	if !server.net.IsEntityOwner(ne) {
		t.Fatal("server did not reclaim the entity")
	}
}

func TestDisconnectClearsNetworkEntities(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	client := env.createClient("client", "server")
	env.flush()

	server.store.Create(nil)
	server.store.Create(nil)
	env.flush()
	if client.store.Len() != 2 {
		t.Fatalf("client has %d entities", client.store.Len())
	}

	client.net.Stop()
	env.flush()
	if client.store.Len() != 0 {
		t.Fatalf("client kept %d entities after disconnect", client.store.Len())
	}
}

func TestEntityOwnerUnknownEntityDefaultsToServer(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	env.flush()
	if !server.server(t).IsEntityOwner(protocol.NewNetworkEntity()) {
		t.Fatal("server does not own an untracked entity")
	}
}

func TestRelevancyIgnoresStrangers(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	env.flush()

	s := server.server(t)
	s.SetEntityRelevant(server.store.Create(nil), protocol.NewPlayer(), false)
	s.SetEntityRelevant(protocol.NewNetworkEntity(), c1.me(t), false)
	env.flush()

	if got := s.relevancy.Len(); got != 1 {
		t.Fatalf("relevancy tracks %d entities, want 1", got)
	}
	if c1.store.Len() != 1 {
		t.Fatal("stored entity missing on c1")
	}
}

func TestServerOnlyNetworkCalls(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	env.flush()

	ne := server.store.Create(nil)
	me := c1.me(t)
	if err := c1.net.SetEntityOwner(ne, &me); !errors.Is(err, ErrNotServer) {
		t.Fatalf("client SetEntityOwner err = %v", err)
	}
	if err := c1.net.SetEntityRelevant(ne, me, false); !errors.Is(err, ErrNotServer) {
		t.Fatalf("client SetEntityRelevant err = %v", err)
	}

	if err := server.net.SetEntityOwner(ne, &me); err != nil {
		t.Fatal(err)
	}
	env.flush()
	if !c1.net.IsEntityOwner(ne) {
		t.Fatal("ownership not transferred through Network")
	}
	if err := server.net.SetEntityOwner(ne, nil); err != nil {
		t.Fatal(err)
	}
	if err := server.net.SetEntityRelevant(ne, me, false); err != nil {
		t.Fatal(err)
	}
	env.flush()
	if c1.store.Len() != 0 {
		t.Fatal("entity still visible after Network.SetEntityRelevant")
	}
}
