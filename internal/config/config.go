package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Node modes.
const (
	ModeServer       = "server"
	ModeClient       = "client"
	ModeServerClient = "server-client"
	ModeLocal        = "local"
)

// Transports.
const (
	TransportTCP = "tcp"
	TransportWS  = "ws"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Node     NodeConfig     `toml:"node"`
	Network  NetworkConfig  `toml:"network"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Interest InterestConfig `toml:"interest"`
	World    WorldConfig    `toml:"world"`
}

type NodeConfig struct {
	Mode string `toml:"mode" env:"NETY_MODE"`
	Name string `toml:"name" env:"NETY_NAME"`
}

type NetworkConfig struct {
	BindAddress        string        `toml:"bind_address" env:"NETY_BIND_ADDRESS"`
	ConnectAddress     string        `toml:"connect_address" env:"NETY_CONNECT_ADDRESS"`
	Transport          string        `toml:"transport" env:"NETY_TRANSPORT"` // "tcp" or "ws"
	WSPath             string        `toml:"ws_path" env:"NETY_WS_PATH"`
	TickRate           time.Duration `toml:"tick_rate" env:"NETY_TICK_RATE"`
	InQueueSize        int           `toml:"in_queue_size"`
	OutQueueSize       int           `toml:"out_queue_size"`
	MaxMessagesPerTick int           `toml:"max_messages_per_tick" env:"NETY_MAX_MESSAGES_PER_TICK"`
	HandshakeTimeout   time.Duration `toml:"handshake_timeout"`
	MaxFrameSize       int           `toml:"max_frame_size"`
	PacketsPerSecond   int           `toml:"packets_per_second" env:"NETY_PACKETS_PER_SECOND"`
	WriteTimeout       time.Duration `toml:"write_timeout"`
	DialTimeout        time.Duration `toml:"dial_timeout"`
	Codec              string        `toml:"codec" env:"NETY_CODEC"` // "msgpack" or "json"
	Compress           bool          `toml:"compress" env:"NETY_COMPRESS"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"NETY_LOG_LEVEL"`
	Format string `toml:"format" env:"NETY_LOG_FORMAT"` // "json" or "console"
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" env:"NETY_METRICS_ENABLED"`
	Address string `toml:"address" env:"NETY_METRICS_ADDRESS"`
	Path    string `toml:"path"`
}

type LedgerConfig struct {
	Enabled         bool          `toml:"enabled" env:"NETY_LEDGER_ENABLED"`
	DSN             string        `toml:"dsn" env:"NETY_LEDGER_DSN"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	FlushInterval   time.Duration `toml:"flush_interval"`
}

type InterestConfig struct {
	Enabled bool   `toml:"enabled" env:"NETY_INTEREST_ENABLED"`
	Radius  int32  `toml:"radius"`
	Script  string `toml:"script" env:"NETY_INTEREST_SCRIPT"`
}

type WorldConfig struct {
	SpawnList string `toml:"spawn_list" env:"NETY_SPAWN_LIST"`
}

// Load reads path over the defaults and applies NETY_* environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	switch c.Node.Mode {
	case ModeServer, ModeClient, ModeServerClient, ModeLocal:
	default:
		return fmt.Errorf("%w: node.mode %q", ErrInvalid, c.Node.Mode)
	}
	switch c.Network.Transport {
	case TransportTCP, TransportWS:
	default:
		return fmt.Errorf("%w: network.transport %q", ErrInvalid, c.Network.Transport)
	}
	if c.Network.TickRate <= 0 {
		return fmt.Errorf("%w: network.tick_rate must be positive", ErrInvalid)
	}
	if c.Ledger.Enabled && c.Ledger.DSN == "" {
		return fmt.Errorf("%w: ledger.dsn is required when the ledger is enabled", ErrInvalid)
	}
	if c.Interest.Enabled && c.Interest.Radius <= 0 {
		return fmt.Errorf("%w: interest.radius must be positive", ErrInvalid)
	}
	return nil
}

// HandshakeTimeoutTicks converts the handshake timeout to whole ticks.
func (c *Config) HandshakeTimeoutTicks() int {
	if c.Network.HandshakeTimeout <= 0 {
		return 0
	}
	return int((c.Network.HandshakeTimeout + c.Network.TickRate - 1) / c.Network.TickRate)
}

// LedgerFlushTicks converts the ledger flush interval to whole ticks, at
// least one.
func (c *Config) LedgerFlushTicks() int {
	n := int(c.Ledger.FlushInterval / c.Network.TickRate)
	if n < 1 {
		return 1
	}
	return n
}

func defaults() *Config {
	return &Config{
		Node: NodeConfig{
			Mode: ModeServer,
			Name: "nety",
		},
		Network: NetworkConfig{
			BindAddress:        "0.0.0.0:7001",
			ConnectAddress:     "127.0.0.1:7001",
			Transport:          TransportTCP,
			WSPath:             "/ws",
			TickRate:           50 * time.Millisecond,
			InQueueSize:        128,
			OutQueueSize:       65536,
			MaxMessagesPerTick: 64,
			HandshakeTimeout:   15 * time.Second,
			MaxFrameSize:       1 << 20,
			PacketsPerSecond:   120,
			WriteTimeout:       10 * time.Second,
			DialTimeout:        5 * time.Second,
			Codec:              "msgpack",
			Compress:           false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9100",
			Path:    "/metrics",
		},
		Ledger: LedgerConfig{
			Enabled:         false,
			DSN:             "sqlite://nety-ledger.db",
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
			FlushInterval:   5 * time.Second,
		},
		Interest: InterestConfig{
			Enabled: false,
			Radius:  20,
		},
	}
}
