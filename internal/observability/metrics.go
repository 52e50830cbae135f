package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nety",
			Subsystem: "replication",
			Name:      "messages_sent_total",
			Help:      "Wire messages sent, by role and kind.",
		},
		[]string{"role", "kind"},
	)
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nety",
			Subsystem: "replication",
			Name:      "messages_received_total",
			Help:      "Wire messages received, by role and kind.",
		},
		[]string{"role", "kind"},
	)
	protocolFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nety",
			Subsystem: "replication",
			Name:      "protocol_faults_total",
			Help:      "Peers disconnected for protocol violations.",
		},
		[]string{"role", "reason"},
	)
	players = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nety",
			Subsystem: "replication",
			Name:      "players",
			Help:      "Players currently in the session.",
		},
		[]string{"role"},
	)
	entities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nety",
			Subsystem: "replication",
			Name:      "entities",
			Help:      "Network entities currently tracked.",
		},
		[]string{"role"},
	)
	ledgerFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nety",
			Subsystem: "ledger",
			Name:      "flushes_total",
			Help:      "Session ledger batch flushes.",
		},
		[]string{"success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesSent, messagesReceived, protocolFaults, players, entities, ledgerFlushes)
	})
}

func RecordSent(role, kind string) {
	RegisterMetrics()
	messagesSent.WithLabelValues(role, kind).Inc()
}

func RecordReceived(role, kind string) {
	RegisterMetrics()
	messagesReceived.WithLabelValues(role, kind).Inc()
}

func RecordProtocolFault(role, reason string) {
	RegisterMetrics()
	protocolFaults.WithLabelValues(role, reason).Inc()
}

func SetPlayers(role string, n int) {
	RegisterMetrics()
	players.WithLabelValues(role).Set(float64(n))
}

func SetEntities(role string, n int) {
	RegisterMetrics()
	entities.WithLabelValues(role).Set(float64(n))
}

func RecordLedgerFlush(ok bool) {
	RegisterMetrics()
	if ok {
		ledgerFlushes.WithLabelValues("true").Inc()
		return
	}
	ledgerFlushes.WithLabelValues("false").Inc()
}
