package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/l1jgo/nety/internal/codec"
	"github.com/l1jgo/nety/internal/config"
	gonet "github.com/l1jgo/nety/internal/net"
	"github.com/l1jgo/nety/internal/net/ws"
	"github.com/l1jgo/nety/internal/registry"
	"github.com/l1jgo/nety/internal/replication"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Chat is a text line relayed by the server to every player.
type Chat struct {
	Text string `msgpack:"text" json:"text"`
}

// Profile is the player data each node announces on join.
type Profile struct {
	Name string `msgpack:"name" json:"name"`
}

func newRegistry(cfg config.NetworkConfig) (*registry.Registry, error) {
	c, err := codec.ByName(cfg.Codec, cfg.Compress)
	if err != nil {
		return nil, err
	}
	reg := registry.New(c)
	registry.RegisterEventAs[Chat](reg, "nety.Chat")
	registry.RegisterPlayerDataAs[Profile](reg, "nety.Profile")
	return reg, nil
}

func netOptions(cfg config.NetworkConfig) gonet.Options {
	return gonet.Options{
		InQueueSize:      cfg.InQueueSize,
		OutQueueSize:     cfg.OutQueueSize,
		PacketsPerSecond: cfg.PacketsPerSecond,
		MaxFrameSize:     cfg.MaxFrameSize,
		WriteTimeout:     cfg.WriteTimeout,
		DialTimeout:      cfg.DialTimeout,
	}
}

func replicationOptions(cfg *config.Config) replication.Options {
	return replication.Options{
		MaxMessagesPerTick:    cfg.Network.MaxMessagesPerTick,
		HandshakeTimeoutTicks: cfg.HandshakeTimeoutTicks(),
	}
}

// listener is a host plus whatever has to be shut down with it.
type listener struct {
	host gonet.Host
	http *http.Server
	addr string
}

func listen(cfg config.NetworkConfig, log *zap.Logger) (*listener, error) {
	opts := netOptions(cfg)
	switch cfg.Transport {
	case config.TransportWS:
		h := ws.NewHandler(opts, log)
		mux := http.NewServeMux()
		mux.Handle(cfg.WSPath, h)
		srv := &http.Server{Addr: cfg.BindAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("websocket listener stopped", zap.Error(err))
			}
		}()
		return &listener{host: h, http: srv, addr: "ws://" + cfg.BindAddress + cfg.WSPath}, nil
	default:
		l, err := gonet.Listen(cfg.BindAddress, opts, log)
		if err != nil {
			return nil, err
		}
		return &listener{host: l, addr: "tcp://" + l.Addr().String()}, nil
	}
}

func (l *listener) shutdown(ctx context.Context) {
	if l.http != nil {
		_ = l.http.Shutdown(ctx)
	}
}

func connect(ctx context.Context, cfg config.NetworkConfig, log *zap.Logger) gonet.Connector {
	opts := netOptions(cfg)
	if cfg.Transport == config.TransportWS {
		return ws.Dial(ctx, "ws://"+cfg.ConnectAddress+cfg.WSPath, opts, log)
	}
	return gonet.Dial(ctx, cfg.ConnectAddress, opts, log)
}

func serveMetrics(cfg config.MetricsConfig, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	srv := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener stopped", zap.Error(err))
		}
	}()
	return srv
}

func startNetwork(ctx context.Context, n *replication.Network, cfg *config.Config, log *zap.Logger) (*listener, error) {
	switch cfg.Node.Mode {
	case config.ModeLocal:
		n.StartLocal()
		return nil, nil
	case config.ModeClient:
		n.StartClient(connect(ctx, cfg.Network, log))
		return nil, nil
	case config.ModeServer, config.ModeServerClient:
		l, err := listen(cfg.Network, log)
		if err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
		if cfg.Node.Mode == config.ModeServer {
			n.StartServer([]gonet.Host{l.host})
		} else {
			n.StartServerClient([]gonet.Host{l.host})
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%w: node.mode %q", config.ErrInvalid, cfg.Node.Mode)
	}
}
