package replication

import (
	"errors"
	"testing"

	"github.com/l1jgo/nety/internal/protocol"
	"github.com/l1jgo/nety/internal/registry"
)

type otherEvent struct {
	N int
}

func eventCounts(apps ...*testApp) []int {
	out := make([]int, len(apps))
	for i, a := range apps {
		out[i] = len(a.events)
	}
	return out
}

func TestServerBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServerClient("server")
	a := env.createClient("a", "server")
	b := env.createClient("b", "server")
	env.flush()

	tests := []struct {
		name string
		send func(*Server) error
		want []int
	}{
		{"all", func(s *Server) error { return s.SendToAll(testEvent{Foo: "all"}) }, []int{1, 1, 1}},
		{"except local", func(s *Server) error { return s.SendToAllExceptLocal(testEvent{Foo: "remote"}) }, []int{0, 1, 1}},
		{"players", func(s *Server) error {
			return s.SendToPlayers([]protocol.Player{a.me(t), protocol.NewPlayer()}, testEvent{Foo: "some"})
		}, []int{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.resetEvents()
			if err := tt.send(server.server(t)); err != nil {
				t.Fatalf("send: %v", err)
			}
			env.flush()
			got := eventCounts(server, a, b)
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("event counts = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSendToAllPayload(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	client := env.createClient("client", "server")
	env.flush()

	if err := server.server(t).SendToAll(testEvent{Foo: "bar"}); err != nil {
		t.Fatal(err)
	}
	env.flush()
	if len(client.events) != 1 || client.events[0].Data.Foo != "bar" {
		t.Fatalf("client events = %+v", client.events)
	}
}

func TestSendUnregisteredFails(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	env.flush()

	err := server.server(t).SendToAll(otherEvent{N: 1})
	if !errors.Is(err, registry.ErrUnregistered) {
		t.Fatalf("err = %v, want ErrUnregistered", err)
	}
}

func TestClientSendReachesServer(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServerClient("server")
	client := env.createClient("client", "server")
	env.flush()

	if err := client.client(t).Send(testEvent{Foo: "remote"}); err != nil {
		t.Fatal(err)
	}
	if err := server.client(t).Send(testEvent{Foo: "local"}); err != nil {
		t.Fatal(err)
	}
	env.flush()

	if len(server.serverEvents) != 2 {
		t.Fatalf("server events = %+v", server.serverEvents)
	}
	byData := map[string]protocol.Player{}
	for _, ev := range server.serverEvents {
		byData[ev.Data.Foo] = ev.From
	}
	if byData["remote"] != client.me(t) || byData["local"] != server.me(t) {
		t.Fatalf("senders = %v", byData)
	}
	if len(client.serverEvents) != 0 {
		t.Fatal("client received a server event")
	}
}

func TestServerSendToEntity(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServerClient("server")
	c1 := env.createClient("c1", "server")
	c2 := env.createClient("c2", "server")
	env.flush()

	ne := server.store.Create(nil)
	server.server(t).SetEntityRelevant(ne, c2.me(t), false)
	env.flush()

	if err := server.server(t).SendToEntity(ne, testEvent{Foo: "poke"}); err != nil {
		t.Fatal(err)
	}
	env.flush()

	for _, app := range []*testApp{server, c1} {
		if len(app.entityEvents) != 1 {
			t.Fatalf("%s entity events = %+v", app.name, app.entityEvents)
		}
		ev := app.entityEvents[0]
		if ev.Entity != ne || ev.From != nil || ev.Data.Foo != "poke" {
			t.Fatalf("%s got %+v", app.name, ev)
		}
	}
	if len(c2.entityEvents) != 0 {
		t.Fatal("event reached a player the entity is irrelevant to")
	}
}

func TestClientSendToEntityOwnedByServer(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	client := env.createClient("client", "server")
	env.flush()

	ne := server.store.Create(nil)
	env.flush()

	if err := client.client(t).SendToEntity(ne, testEvent{Foo: "hit"}); err != nil {
		t.Fatal(err)
	}
	env.flush()

	if len(server.entityEvents) != 1 {
		t.Fatalf("server entity events = %+v", server.entityEvents)
	}
	ev := server.entityEvents[0]
	if ev.Entity != ne || ev.From == nil || *ev.From != client.me(t) {
		t.Fatalf("server got %+v", ev)
	}
}

func TestClientSendToEntityForwardedToOwner(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	c2 := env.createClient("c2", "server")
	env.flush()

	ne := server.store.Create(nil)
	owner := c2.me(t)
	server.server(t).SetEntityOwner(ne, &owner)
	env.flush()

	if err := c1.client(t).SendToEntity(ne, testEvent{Foo: "trade"}); err != nil {
		t.Fatal(err)
	}
	env.flush()

	if len(c2.entityEvents) != 1 {
		t.Fatalf("owner entity events = %+v", c2.entityEvents)
	}
	if ev := c2.entityEvents[0]; ev.From == nil || *ev.From != c1.me(t) || ev.Data.Foo != "trade" {
		t.Fatalf("owner got %+v", ev)
	}
	if len(server.entityEvents) != 0 || len(c1.entityEvents) != 0 {
		t.Fatal("forwarded event was also delivered elsewhere")
	}
}

func TestClientSendToEntityOwnedByLocalPlayer(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServerClient("server")
	client := env.createClient("client", "server")
	env.flush()

	ne := server.store.Create(nil)
	me := server.me(t)
	server.server(t).SetEntityOwner(ne, &me)
	env.flush()

	if err := client.client(t).SendToEntity(ne, testEvent{Foo: "x"}); err != nil {
		t.Fatal(err)
	}
	env.flush()
	if len(server.entityEvents) != 1 || *server.entityEvents[0].From != client.me(t) {
		t.Fatalf("server entity events = %+v", server.entityEvents)
	}
}

func TestBroadcastAsOwnerFromClient(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	c1 := env.createClient("c1", "server")
	c2 := env.createClient("c2", "server")
	env.flush()

	ne := server.store.Create(nil)
	owner := c1.me(t)
	server.server(t).SetEntityOwner(ne, &owner)
	env.flush()

	if err := c1.net.BroadcastAsOwner(ne, testEvent{Foo: "moved"}); err != nil {
		t.Fatal(err)
	}
	env.flush()

	if len(c2.entityEvents) != 1 {
		t.Fatalf("c2 entity events = %+v", c2.entityEvents)
	}
	if ev := c2.entityEvents[0]; ev.Entity != ne || ev.From != nil || ev.Data.Foo != "moved" {
		t.Fatalf("c2 got %+v", ev)
	}
	if len(c1.entityEvents) != 0 {
		t.Fatal("owner received its own broadcast")
	}
	if len(server.entityEvents) != 0 {
		t.Fatal("server-only node received an owner broadcast")
	}
}

func TestBroadcastAsOwnerFromServer(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServerClient("server")
	client := env.createClient("client", "server")
	env.flush()

	ne := server.store.Create(nil)
	env.flush()

	if err := server.net.BroadcastAsOwner(ne, testEvent{Foo: "tick"}); err != nil {
		t.Fatal(err)
	}
	env.flush()

	if len(client.entityEvents) != 1 || client.entityEvents[0].From != nil {
		t.Fatalf("client entity events = %+v", client.entityEvents)
	}
	if len(server.entityEvents) != 0 {
		t.Fatal("owner broadcast looped back to the server")
	}
}

func TestBroadcastAsOwnerRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	client := env.createClient("client", "server")
	env.flush()

	ne := server.store.Create(nil)
	env.flush()

	if err := client.net.BroadcastAsOwner(ne, testEvent{}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	idle := env.createApp("idle")
	if err := idle.net.BroadcastAsOwner(ne, testEvent{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestUnregisteredEventIsDropped(t *testing.T) {
	env := newTestEnv(t)
	server := env.createServer("server")
	client := env.createClient("client", "server")
	env.flush()

	registry.RegisterEvent[otherEvent](server.net.Registry())
	if err := server.server(t).SendToAll(otherEvent{N: 7}); err != nil {
		t.Fatal(err)
	}
	if err := server.server(t).SendToAll(testEvent{Foo: "after"}); err != nil {
		t.Fatal(err)
	}
	env.flush()

	if !client.net.IsConnected() {
		t.Fatal("unknown event type disconnected the client")
	}
	if len(client.events) != 1 || client.events[0].Data.Foo != "after" {
		t.Fatalf("client events = %+v", client.events)
	}
}
