package observability

import (
	"testing"

	"github.com/l1jgo/nety/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zapcore"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(messagesSent.WithLabelValues("server", "EntitySpawn"))
	RecordSent("server", "EntitySpawn")
	RecordReceived("client", "EntitySpawn")
	RecordProtocolFault("server", "decode")
	RecordLedgerFlush(true)
	SetPlayers("server", 3)
	SetEntities("server", 7)

	if got := testutil.ToFloat64(messagesSent.WithLabelValues("server", "EntitySpawn")); got != before+1 {
		t.Fatalf("messages sent = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(players.WithLabelValues("server")); got != 3 {
		t.Fatalf("players gauge = %v", got)
	}
}

func TestNewLogger(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "console"},
		{Level: "bogus", Format: ""},
	} {
		log, err := NewLogger(cfg)
		if err != nil {
			t.Fatalf("NewLogger(%+v): %v", cfg, err)
		}
		if cfg.Level == "bogus" && !log.Core().Enabled(zapcore.InfoLevel) {
			t.Fatal("unknown level should fall back to info")
		}
		if cfg.Level == "warn" && log.Core().Enabled(zapcore.InfoLevel) {
			t.Fatal("warn logger enabled info")
		}
	}
}
