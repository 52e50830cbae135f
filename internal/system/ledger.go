package system

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/l1jgo/nety/internal/core/event"
	coresys "github.com/l1jgo/nety/internal/core/system"
	"github.com/l1jgo/nety/internal/observability"
	"github.com/l1jgo/nety/internal/persist"
	"go.uber.org/zap"
)

const (
	maxPendingLedger = 10000
	ledgerBacklog    = 16 // batches queued for the writer
	ledgerTimeout    = 5 * time.Second
)

// LedgerWriter is where batched ledger entries go.
type LedgerWriter interface {
	Record(ctx context.Context, entries []persist.LedgerEntry) error
}

// LedgerSystem records session lifecycle events from the bus and hands them
// to a writer goroutine in batches every interval ticks. Phase 10 (Persist).
// The tick never waits on the database.
type LedgerSystem struct {
	repo      LedgerWriter
	node      string
	pending   []persist.LedgerEntry
	now       func() time.Time
	log       *zap.Logger
	tickCount int
	interval  int

	batches   chan []persist.LedgerEntry
	done      chan struct{}
	closeOnce sync.Once
}

// NewLedgerSystem subscribes to bus and starts the writer. Call Close on
// shutdown to write what is left.
func NewLedgerSystem(bus *event.Bus, repo LedgerWriter, node string, log *zap.Logger, intervalTicks int) *LedgerSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	s := &LedgerSystem{
		repo:     repo,
		node:     node,
		now:      time.Now,
		log:      log,
		interval: intervalTicks,
		batches:  make(chan []persist.LedgerEntry, ledgerBacklog),
		done:     make(chan struct{}),
	}
	event.Subscribe(bus, func(ev event.Connect) {
		var roles []string
		if ev.IsServer {
			roles = append(roles, "server")
		}
		if ev.IsClient {
			roles = append(roles, "client")
		}
		s.add(persist.LedgerConnect, "", strings.Join(roles, "+"))
	})
	event.Subscribe(bus, func(ev event.Disconnect) {
		detail := ""
		if ev.FailedToConnect {
			detail = "failed_to_connect"
		}
		s.add(persist.LedgerDisconnect, "", detail)
	})
	event.Subscribe(bus, func(ev event.PlayerJoin) {
		detail := ""
		switch {
		case ev.Me:
			detail = "me"
		case ev.ExistingPlayer:
			detail = "existing"
		}
		s.add(persist.LedgerJoin, ev.Player.String(), detail)
	})
	event.Subscribe(bus, func(ev event.PlayerLeave) {
		s.add(persist.LedgerLeave, ev.Player.String(), "")
	})
	go s.writeLoop()
	return s
}

func (s *LedgerSystem) add(kind, player, detail string) {
	s.pending = append(s.pending, persist.LedgerEntry{
		At:     s.now(),
		Node:   s.node,
		Kind:   kind,
		Player: player,
		Detail: detail,
	})
	if over := len(s.pending) - maxPendingLedger; over > 0 {
		s.log.Warn("dropping oldest ledger entries", zap.Int("dropped", over))
		s.pending = append(s.pending[:0], s.pending[over:]...)
	}
}

func (s *LedgerSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *LedgerSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.Flush()
}

// Pending is the number of entries not yet handed to the writer.
func (s *LedgerSystem) Pending() int { return len(s.pending) }

// Flush hands pending entries to the writer without blocking. When the
// writer is backed up they stay pending for the next flush.
func (s *LedgerSystem) Flush() {
	if len(s.pending) == 0 {
		return
	}
	select {
	case s.batches <- s.pending:
		s.pending = nil
	default:
		s.log.Debug("ledger writer busy", zap.Int("entries", len(s.pending)))
	}
}

// Close hands over what is pending, stops the writer and waits for its last
// write. Calls after the first are no-ops.
func (s *LedgerSystem) Close() {
	s.closeOnce.Do(func() {
		if len(s.pending) > 0 {
			s.batches <- s.pending
			s.pending = nil
		}
		close(s.batches)
		<-s.done
	})
}

// writeLoop owns retry. A failed batch is merged into the next one, capped
// at maxPendingLedger entries.
func (s *LedgerSystem) writeLoop() {
	defer close(s.done)
	var retry []persist.LedgerEntry
	for batch := range s.batches {
		retry = append(retry, batch...)
		if over := len(retry) - maxPendingLedger; over > 0 {
			s.log.Warn("dropping oldest ledger entries", zap.Int("dropped", over))
			retry = append(retry[:0], retry[over:]...)
		}
		if s.write(retry) {
			retry = nil
		}
	}
	if len(retry) > 0 {
		s.log.Error("ledger entries lost on close", zap.Int("entries", len(retry)))
	}
}

func (s *LedgerSystem) write(entries []persist.LedgerEntry) bool {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := s.repo.Record(ctx, entries); err != nil {
		s.log.Error("ledger flush failed", zap.Int("entries", len(entries)), zap.Error(err))
		observability.RecordLedgerFlush(false)
		return false
	}
	s.log.Debug("ledger flushed", zap.Int("entries", len(entries)))
	observability.RecordLedgerFlush(true)
	return true
}
