package persist

import (
	"context"
	"fmt"
	"time"
)

// Ledger entry kinds.
const (
	LedgerConnect    = "connect"
	LedgerDisconnect = "disconnect"
	LedgerJoin       = "join"
	LedgerLeave      = "leave"
)

// LedgerEntry is one session lifecycle record.
type LedgerEntry struct {
	ID     int64
	At     time.Time
	Node   string
	Kind   string
	Player string
	Detail string
}

type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Record writes a batch of entries in a single transaction.
func (r *LedgerRepo) Record(ctx context.Context, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(
		`INSERT INTO session_ledger (at_millis, node, kind, player, detail) VALUES (?, ?, ?, ?, ?)`,
	))
	if err != nil {
		return fmt.Errorf("ledger prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.At.UTC().UnixMilli(), e.Node, e.Kind, e.Player, e.Detail); err != nil {
			return fmt.Errorf("ledger insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger commit: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *LedgerRepo) Recent(ctx context.Context, limit int) ([]LedgerEntry, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(
		`SELECT id, at_millis, node, kind, player, detail
		 FROM session_ledger ORDER BY id DESC LIMIT ?`,
	), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.Node, &e.Kind, &e.Player, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByPlayer returns how many entries mention player.
func (r *LedgerRepo) CountByPlayer(ctx context.Context, player string) (int, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM session_ledger WHERE player = ?`,
	), player).Scan(&n)
	return n, err
}
