//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/sessioncredit"
	storepg "github.com/ineyio/sessioncredit/store/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost:5432/sessioncredit_test?sslmode=disable"
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("postgres not available: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newTestStore(t *testing.T, pool *pgxpool.Pool) *storepg.Store {
	t.Helper()
	// Use a unique prefix per test to avoid collisions.
	prefix := fmt.Sprintf("test_%s_", strings.ToLower(t.Name()))
	s := storepg.New(pool, storepg.WithTablePrefix(prefix))
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %sledgers", prefix))
	})
	return s
}

func TestSaveLoadDelete(t *testing.T) {
	pool := newTestPool(t)
	s := newTestStore(t, pool)
	ctx := context.Background()

	snap := sessioncredit.Snapshot{
		UsedTx:       100,
		UsedRx:       50,
		AllowedTotal: 200,
		ReportedTx:   100,
		ReportedRx:   50,
	}

	if err := s.Save(ctx, "sess-1", 7, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Upsert replaces the previous snapshot.
	snap.UsedTx = 150
	if err := s.Save(ctx, "sess-1", 7, snap); err != nil {
		t.Fatalf("save again: %v", err)
	}

	loaded, err := s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded[7].UsedTx; got != 150 {
		t.Fatalf("used_tx = %d, want 150", got)
	}

	if err := s.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, err = s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected deleted session to be empty, got %d snapshots", len(loaded))
	}
}
