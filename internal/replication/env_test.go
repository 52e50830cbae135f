package replication

import (
	"testing"
	"time"

	"github.com/l1jgo/nety/internal/codec"
	"github.com/l1jgo/nety/internal/core/event"
	"github.com/l1jgo/nety/internal/core/system"
	gonet "github.com/l1jgo/nety/internal/net"
	"github.com/l1jgo/nety/internal/net/memnet"
	"github.com/l1jgo/nety/internal/protocol"
	"github.com/l1jgo/nety/internal/registry"
	"github.com/l1jgo/nety/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type testEvent struct {
	Foo string
}

type testData struct {
	Name string
}

// testApp is one node: network, host store, bus and the events it observed.
type testApp struct {
	name   string
	net    *Network
	store  *world.Store
	bus    *event.Bus
	runner *system.Runner

	connects     []event.Connect
	connecting   int
	disconnects  []event.Disconnect
	joins        []event.PlayerJoin
	leaves       []event.PlayerLeave
	events       []event.Event[testEvent]
	serverEvents []event.ServerEvent[testEvent]
	entityEvents []event.EntityEvent[testEvent]
}

func (a *testApp) me(t *testing.T) protocol.Player {
	t.Helper()
	me, ok := a.net.Me()
	if !ok {
		t.Fatalf("%s has no local player", a.name)
	}
	return me
}

func (a *testApp) server(t *testing.T) *Server {
	t.Helper()
	if a.net.Server() == nil {
		t.Fatalf("%s is not a server", a.name)
	}
	return a.net.Server()
}

func (a *testApp) client(t *testing.T) *Client {
	t.Helper()
	if a.net.Client() == nil {
		t.Fatalf("%s is not a client", a.name)
	}
	return a.net.Client()
}

// reset forgets observed events.
func (a *testApp) reset() {
	a.connects, a.connecting, a.disconnects = nil, 0, nil
	a.joins, a.leaves = nil, nil
	a.events, a.serverEvents, a.entityEvents = nil, nil, nil
}

type testEnv struct {
	t     *testing.T
	mem   *memnet.Network
	apps  map[string]*testApp
	order []string
	opts  Options
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{
		t:    t,
		mem:  memnet.New(),
		apps: make(map[string]*testApp),
		opts: DefaultOptions(),
	}
}

func (e *testEnv) createApp(name string) *testApp {
	log := zaptest.NewLogger(e.t, zaptest.Level(zap.WarnLevel)).With(zap.String("app", name))
	reg := registry.New(codec.Msgpack{})
	registry.RegisterEvent[testEvent](reg)
	registry.RegisterPlayerData[testData](reg)

	a := &testApp{
		name:   name,
		net:    New(reg, e.opts, log),
		store:  world.NewStore(log),
		bus:    event.NewBus(),
		runner: system.NewRunner(),
	}
	a.runner.Register(a.net.Systems(a.store, a.bus)...)
	a.runner.Register(system.Func{At: system.PhaseCleanup, Fn: func(time.Duration) { a.store.FlushDestroyQueue() }})

	event.Subscribe(a.bus, func(ev event.Connect) { a.connects = append(a.connects, ev) })
	event.Subscribe(a.bus, func(event.Connecting) { a.connecting++ })
	event.Subscribe(a.bus, func(ev event.Disconnect) { a.disconnects = append(a.disconnects, ev) })
	event.Subscribe(a.bus, func(ev event.PlayerJoin) { a.joins = append(a.joins, ev) })
	event.Subscribe(a.bus, func(ev event.PlayerLeave) { a.leaves = append(a.leaves, ev) })
	event.Subscribe(a.bus, func(ev event.Event[testEvent]) { a.events = append(a.events, ev) })
	event.Subscribe(a.bus, func(ev event.ServerEvent[testEvent]) { a.serverEvents = append(a.serverEvents, ev) })
	event.Subscribe(a.bus, func(ev event.EntityEvent[testEvent]) { a.entityEvents = append(a.entityEvents, ev) })

	e.apps[name] = a
	e.order = append(e.order, name)
	return a
}

func (e *testEnv) app(name string) *testApp {
	a, ok := e.apps[name]
	if !ok {
		e.t.Fatalf("no app %q", name)
	}
	return a
}

func (e *testEnv) createLocal(name string) *testApp {
	a := e.createApp(name)
	a.net.StartLocal()
	return a
}

func (e *testEnv) createServer(name string) *testApp {
	a := e.createApp(name)
	a.net.StartServer([]gonet.Host{e.mem.Host(name)})
	return a
}

func (e *testEnv) createServerClient(name string) *testApp {
	a := e.createApp(name)
	a.net.StartServerClient([]gonet.Host{e.mem.Host(name)})
	return a
}

func (e *testEnv) createClient(name, server string) *testApp {
	a := e.createApp(name)
	a.net.StartClient(e.mem.Connect(server))
	return a
}

// flush ticks every app enough times for any exchange to settle.
func (e *testEnv) flush() {
	for i := 0; i < 10; i++ {
		for _, name := range e.order {
			e.apps[name].runner.Tick(time.Millisecond)
		}
	}
}

func (e *testEnv) resetEvents() {
	for _, a := range e.apps {
		a.reset()
	}
}

func samePlayers(a, b []protocol.Player) bool {
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
