package main

import (
	"context"
	"testing"
	"time"

	"github.com/l1jgo/nety/internal/config"
	"github.com/l1jgo/nety/internal/core/event"
	coresys "github.com/l1jgo/nety/internal/core/system"
	"github.com/l1jgo/nety/internal/registry"
	"github.com/l1jgo/nety/internal/replication"
	"github.com/l1jgo/nety/internal/world"
	"go.uber.org/zap"
)

func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Node.Mode = mode
	cfg.Network.BindAddress = "127.0.0.1:0"
	return cfg
}

func TestNewRegistry(t *testing.T) {
	cfg := testConfig(t, config.ModeLocal)
	cfg.Network.Codec = "json"
	cfg.Network.Compress = true

	reg, err := newRegistry(cfg.Network)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Codec().Name() != "json+lz4" {
		t.Fatalf("codec = %s", reg.Codec().Name())
	}
	p, err := reg.Pack(Chat{Text: "hi"})
	if err != nil || p.Type != "nety.Chat" {
		t.Fatalf("pack = %+v, %v", p, err)
	}
	got, err := registry.Unpack[Chat](reg, p)
	if err != nil || got.Text != "hi" {
		t.Fatalf("unpack = %+v, %v", got, err)
	}

	cfg.Network.Codec = "xml"
	if _, err := newRegistry(cfg.Network); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testConfig(t, config.ModeServer)
	cfg.Network.TickRate = 100 * time.Millisecond
	cfg.Network.HandshakeTimeout = time.Second

	opts := replicationOptions(cfg)
	if opts.HandshakeTimeoutTicks != 10 || opts.MaxMessagesPerTick != cfg.Network.MaxMessagesPerTick {
		t.Fatalf("replication options = %+v", opts)
	}
	no := netOptions(cfg.Network)
	if no.MaxFrameSize != cfg.Network.MaxFrameSize || no.PacketsPerSecond != cfg.Network.PacketsPerSecond {
		t.Fatalf("net options = %+v", no)
	}
}

func TestLocalNodeChatRoundTrip(t *testing.T) {
	cfg := testConfig(t, config.ModeLocal)
	log := zap.NewNop()
	reg, err := newRegistry(cfg.Network)
	if err != nil {
		t.Fatal(err)
	}
	n := replication.New(reg, replicationOptions(cfg), log)
	replication.SetMyPlayerData(n, Profile{Name: "solo"})
	store := world.NewStore(log)
	bus := event.NewBus()
	runner := coresys.NewRunner()
	runner.Register(n.Systems(store, bus)...)
	subscribeChat(bus, n, log)

	var received []string
	event.Subscribe(bus, func(ev event.Event[Chat]) { received = append(received, ev.Data.Text) })

	l, err := startNetwork(context.Background(), n, cfg, log)
	if err != nil || l != nil {
		t.Fatalf("startNetwork = %v, %v", l, err)
	}
	for i := 0; i < 5; i++ {
		runner.Tick(time.Millisecond)
	}
	me, ok := n.Me()
	if !ok || replication.PlayerData[Profile](n, me).Name != "solo" {
		t.Fatal("local player data missing")
	}

	if err := n.Client().Send(Chat{Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		runner.Tick(time.Millisecond)
	}
	if len(received) != 1 || received[0] != "hello" {
		t.Fatalf("received = %v", received)
	}
	n.Stop()
}

func TestStartServerOverTCP(t *testing.T) {
	cfg := testConfig(t, config.ModeServer)
	log := zap.NewNop()
	reg, err := newRegistry(cfg.Network)
	if err != nil {
		t.Fatal(err)
	}
	n := replication.New(reg, replicationOptions(cfg), log)
	l, err := startNetwork(context.Background(), n, cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	defer n.Stop()
	if l == nil || !n.IsServer() || n.IsClient() {
		t.Fatal("server did not start")
	}
}
