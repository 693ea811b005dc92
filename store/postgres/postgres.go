// Package postgres provides a PostgreSQL-backed LedgerStore for
// sessioncredit.
//
// Snapshots are stored one row per (session, charging key) with the
// snapshot body as JSONB. This gives ledger state durability across
// restarts and makes it inspectable with plain SQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/sessioncredit"
)

// Store is a PostgreSQL-backed LedgerStore.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ sessioncredit.LedgerStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "sessioncredit_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed LedgerStore.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "sessioncredit_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ledgersTable() string { return s.tablePrefix + "ledgers" }

// EnsureSchema creates the required table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			session_id   TEXT NOT NULL,
			charging_key BIGINT NOT NULL,
			snapshot     JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, charging_key)
		)`, s.ledgersTable())

	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("sessioncredit/postgres: ensure schema: %w", err)
	}
	return nil
}

// Save upserts the snapshot for one charging key of a session.
func (s *Store) Save(ctx context.Context, sessionID string, key sessioncredit.ChargingKey, snap sessioncredit.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sessioncredit/postgres: marshal snapshot: %w", err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (session_id, charging_key, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id, charging_key)
		DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		s.ledgersTable())

	if _, err := s.pool.Exec(ctx, q, sessionID, int64(key), data); err != nil {
		return fmt.Errorf("sessioncredit/postgres: save session %s key %d: %w", sessionID, key, err)
	}
	return nil
}

// Load returns all stored snapshots for a session.
func (s *Store) Load(ctx context.Context, sessionID string) (map[sessioncredit.ChargingKey]sessioncredit.Snapshot, error) {
	q := fmt.Sprintf(`SELECT charging_key, snapshot FROM %s WHERE session_id = $1`, s.ledgersTable())

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sessioncredit/postgres: load session %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := make(map[sessioncredit.ChargingKey]sessioncredit.Snapshot)
	for rows.Next() {
		var key int64
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("sessioncredit/postgres: scan: %w", err)
		}
		var snap sessioncredit.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("sessioncredit/postgres: unmarshal snapshot for key %d: %w", key, err)
		}
		out[sessioncredit.ChargingKey(key)] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessioncredit/postgres: load session %s: %w", sessionID, err)
	}
	return out, nil
}

// Delete removes all stored state for a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, s.ledgersTable())

	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("sessioncredit/postgres: delete session %s: %w", sessionID, err)
	}
	return nil
}
