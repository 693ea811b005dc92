// Package memory provides an in-memory LedgerStore, suitable for tests
// and single-process deployments without restart durability.
package memory

import (
	"context"
	"sync"

	"github.com/ineyio/sessioncredit"
)

// Store is an in-memory LedgerStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[sessioncredit.ChargingKey]sessioncredit.Snapshot
}

var _ sessioncredit.LedgerStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sessions: make(map[string]map[sessioncredit.ChargingKey]sessioncredit.Snapshot),
	}
}

// Save stores the snapshot for one charging key of a session.
func (s *Store) Save(_ context.Context, sessionID string, key sessioncredit.ChargingKey, snap sessioncredit.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.sessions[sessionID]
	if !ok {
		keys = make(map[sessioncredit.ChargingKey]sessioncredit.Snapshot)
		s.sessions[sessionID] = keys
	}
	keys[key] = snap
	return nil
}

// Load returns all stored snapshots for a session.
func (s *Store) Load(_ context.Context, sessionID string) (map[sessioncredit.ChargingKey]sessioncredit.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[sessioncredit.ChargingKey]sessioncredit.Snapshot, len(s.sessions[sessionID]))
	for key, snap := range s.sessions[sessionID] {
		out[key] = snap
	}
	return out, nil
}

// Delete removes all stored state for a session.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}
