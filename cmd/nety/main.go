package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l1jgo/nety/internal/config"
	"github.com/l1jgo/nety/internal/core/event"
	coresys "github.com/l1jgo/nety/internal/core/system"
	"github.com/l1jgo/nety/internal/data"
	"github.com/l1jgo/nety/internal/interest"
	"github.com/l1jgo/nety/internal/observability"
	"github.com/l1jgo/nety/internal/persist"
	"github.com/l1jgo/nety/internal/replication"
	"github.com/l1jgo/nety/internal/scripting"
	"github.com/l1jgo/nety/internal/system"
	"github.com/l1jgo/nety/internal/world"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/nety.toml"
	if p := os.Getenv("NETY_CONFIG"); p != "" {
		cfgPath = p
	} else if _, err := os.Stat(cfgPath); err != nil {
		cfgPath = ""
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log = log.With(zap.String("node", cfg.Node.Name))

	printBanner(cfg.Node.Name, cfg.Node.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Metrics
	observability.RegisterMetrics()
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = serveMetrics(cfg.Metrics, log)
	}

	// 4. Registry, store, network
	printSection("replication")
	reg, err := newRegistry(cfg.Network)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	printOK(fmt.Sprintf("codec %s", reg.Codec().Name()))

	store := world.NewStore(log)
	bus := event.NewBus()
	network := replication.New(reg, replicationOptions(cfg), log)
	replication.SetMyPlayerData(network, Profile{Name: cfg.Node.Name})

	runner := coresys.NewRunner()
	runner.Register(network.Systems(store, bus)...)
	runner.Register(system.NewCleanupSystem(store, log))

	// 5. Interest
	if cfg.Interest.Enabled {
		var rule interest.Rule
		if cfg.Interest.Script != "" {
			engine, err := scripting.NewEngine(cfg.Interest.Script, log)
			if err != nil {
				return fmt.Errorf("interest script: %w", err)
			}
			defer engine.Close()
			rule = engine
			printOK(fmt.Sprintf("interest script %s", cfg.Interest.Script))
		}
		policy := interest.NewPolicy(cfg.Interest.Radius, rule, log)
		runner.Register(policy.System(network, store))
		printStat("interest radius", int(cfg.Interest.Radius))
	}

	// 6. Session ledger
	var ledger *system.LedgerSystem
	if cfg.Ledger.Enabled {
		dbCtx, dbCancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.Open(dbCtx, cfg.Ledger, log)
		if err != nil {
			dbCancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := persist.RunMigrations(dbCtx, db); err != nil {
			dbCancel()
			return fmt.Errorf("migrations: %w", err)
		}
		dbCancel()
		ledger = system.NewLedgerSystem(bus, persist.NewLedgerRepo(db), cfg.Node.Name, log, cfg.LedgerFlushTicks())
		defer ledger.Close()
		runner.Register(ledger)
		printOK(fmt.Sprintf("ledger %s", db.Dialect))
	}

	// 7. Application events
	stopped := make(chan struct{}, 1)
	subscribeChat(bus, network, log)
	event.Subscribe(bus, func(ev event.PlayerJoin) {
		p := replication.PlayerData[Profile](network, ev.Player)
		log.Info("player joined",
			zap.Stringer("player", ev.Player),
			zap.String("name", p.Name),
			zap.Bool("me", ev.Me),
		)
	})
	event.Subscribe(bus, func(ev event.PlayerLeave) {
		log.Info("player left", zap.Stringer("player", ev.Player))
	})
	event.Subscribe(bus, func(ev event.Disconnect) {
		log.Warn("session ended", zap.Bool("failed_to_connect", ev.FailedToConnect))
		select {
		case stopped <- struct{}{}:
		default:
		}
	})

	// 8. Start
	l, err := startNetwork(ctx, network, cfg, log)
	if err != nil {
		return err
	}
	if network.IsServer() && cfg.World.SpawnList != "" {
		list, err := data.LoadSpawnList(cfg.World.SpawnList)
		if err != nil {
			network.Stop()
			return fmt.Errorf("spawn list: %w", err)
		}
		created := list.Spawn(store, rand.New(rand.NewSource(time.Now().UnixNano())))
		printStat("spawned entities", len(created))
	}

	// 9. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	if l != nil {
		printReady(fmt.Sprintf("listening on %s", l.addr))
	}
	if cfg.Node.Mode == config.ModeClient {
		printReady(fmt.Sprintf("connecting to %s", cfg.Network.ConnectAddress))
	}
	if metricsSrv != nil {
		printReady(fmt.Sprintf("metrics on http://%s%s", cfg.Metrics.Address, cfg.Metrics.Path))
	}
	printReady(fmt.Sprintf("tick %s", cfg.Network.TickRate))
	fmt.Println()

	shutdown := func() {
		network.Stop()
		// One more tick delivers the final Disconnect to the ledger.
		runner.Tick(cfg.Network.TickRate)
		if ledger != nil {
			ledger.Close()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if l != nil {
			l.shutdown(shutdownCtx)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		log.Info("node stopped")
	}

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case <-stopped:
			if network.IsDisconnected() {
				shutdown()
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			shutdown()
			return nil
		}
	}
}

func subscribeChat(bus *event.Bus, n *replication.Network, log *zap.Logger) {
	// Server: relay every chat line to all players.
	event.Subscribe(bus, func(ev event.ServerEvent[Chat]) {
		from := replication.PlayerData[Profile](n, ev.From)
		log.Info("chat", zap.String("from", from.Name), zap.String("text", ev.Data.Text))
		if s := n.Server(); s != nil {
			if err := s.SendToAll(ev.Data); err != nil {
				log.Warn("chat relay failed", zap.Error(err))
			}
		}
	})
	// Client: print what the server relays.
	event.Subscribe(bus, func(ev event.Event[Chat]) {
		log.Info("chat received", zap.String("text", ev.Data.Text))
	})
}
