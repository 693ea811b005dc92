// Package redis provides a Redis-backed LedgerStore for sessioncredit.
//
// Each session maps to one Redis hash whose fields are charging keys and
// whose values are JSON-encoded snapshots, so a session restore is a
// single HGETALL. This makes ledger state survive gateway restarts.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/sessioncredit"
)

// Store is a Redis-backed LedgerStore.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ sessioncredit.LedgerStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "sessioncredit:ledger:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a new Redis-backed LedgerStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "sessioncredit:ledger:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) sessionKey(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Save stores the snapshot for one charging key of a session.
func (s *Store) Save(ctx context.Context, sessionID string, key sessioncredit.ChargingKey, snap sessioncredit.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sessioncredit/redis: marshal snapshot: %w", err)
	}

	field := strconv.FormatUint(uint64(key), 10)
	if err := s.client.HSet(ctx, s.sessionKey(sessionID), field, data).Err(); err != nil {
		return fmt.Errorf("sessioncredit/redis: save session %s key %d: %w", sessionID, key, err)
	}
	return nil
}

// Load returns all stored snapshots for a session.
func (s *Store) Load(ctx context.Context, sessionID string) (map[sessioncredit.ChargingKey]sessioncredit.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("sessioncredit/redis: load session %s: %w", sessionID, err)
	}

	out := make(map[sessioncredit.ChargingKey]sessioncredit.Snapshot, len(fields))
	for field, value := range fields {
		key, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("sessioncredit/redis: bad charging key field %q: %w", field, err)
		}
		var snap sessioncredit.Snapshot
		if err := json.Unmarshal([]byte(value), &snap); err != nil {
			return nil, fmt.Errorf("sessioncredit/redis: unmarshal snapshot for key %s: %w", field, err)
		}
		out[sessioncredit.ChargingKey(key)] = snap
	}
	return out, nil
}

// Delete removes all stored state for a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("sessioncredit/redis: delete session %s: %w", sessionID, err)
	}
	return nil
}
