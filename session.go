package sessioncredit

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session owns the credit ledgers for one data session, one per active
// charging key. It routes ingest, grants, and failures to the right ledger
// and collects due usage reports and pending enforcement actions across
// keys.
type Session struct {
	mu         sync.Mutex
	id         string
	cfg        Config
	now        func() time.Time
	startState ServiceState
	credits    map[ChargingKey]*Ledger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID sets the session identifier (default: a random UUID).
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithSessionClock overrides the time source for every ledger the session
// creates.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSessionStartState sets the initial service state for every ledger
// the session creates (default ServiceEnabled).
func WithSessionStartState(state ServiceState) SessionOption {
	return func(s *Session) { s.startState = state }
}

// NewSession creates an empty session.
func NewSession(cfg Config, opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		now:        time.Now,
		startState: ServiceEnabled,
		credits:    make(map[ChargingKey]*Ledger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// GetOrCreate returns the ledger for a charging key, creating it when the
// key becomes active.
func (s *Session) GetOrCreate(key ChargingKey) *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreate(key)
}

// getOrCreate must be called with the lock held.
func (s *Session) getOrCreate(key ChargingKey) *Ledger {
	l, ok := s.credits[key]
	if !ok {
		l = NewLedger(s.cfg, WithStartState(s.startState), WithClock(s.now))
		s.credits[key] = l
	}
	return l
}

// Ledger returns the ledger for a charging key, if it exists.
func (s *Session) Ledger(key ChargingKey) (*Ledger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.credits[key]
	return l, ok
}

// Keys returns the active charging keys in ascending order.
func (s *Session) Keys() []ChargingKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]ChargingKey, 0, len(s.credits))
	for key := range s.credits {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// AddUsedCredit ingests metered usage for a charging key, creating the
// ledger on first use.
func (s *Session) AddUsedCredit(key ChargingKey, tx, rx uint64) {
	s.GetOrCreate(key).AddUsedCredit(tx, rx)
}

// RestoreCredit installs a ledger rebuilt from a stored snapshot,
// replacing any existing ledger for the key.
func (s *Session) RestoreCredit(key ChargingKey, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credits[key] = RestoreLedger(snap, s.cfg, WithClock(s.now))
}

// CollectUpdates snapshots every key with a due update into a usage
// report. At most one report per key is collected; keys with a report
// already in flight are skipped by the update decision itself.
func (s *Session) CollectUpdates() []UsageReport {
	var reports []UsageReport
	for _, key := range s.Keys() {
		l, ok := s.Ledger(key)
		if !ok {
			continue
		}
		updateType := l.UpdateType()
		if updateType == UpdateNone {
			continue
		}
		usage, err := l.UsageForReporting(false)
		if err != nil {
			continue
		}
		reports = append(reports, UsageReport{
			SessionID: s.id,
			ReportID:  uuid.New().String(),
			Key:       key,
			Type:      updateType,
			Usage:     usage,
		})
	}
	return reports
}

// TerminationReports forces a final usage report for every key that does
// not already have one in flight, regardless of thresholds or caps.
func (s *Session) TerminationReports() []UsageReport {
	var reports []UsageReport
	for _, key := range s.Keys() {
		l, ok := s.Ledger(key)
		if !ok {
			continue
		}
		usage, err := l.UsageForReporting(true)
		if err != nil {
			continue
		}
		reports = append(reports, UsageReport{
			SessionID:   s.id,
			ReportID:    uuid.New().String(),
			Key:         key,
			Usage:       usage,
			Termination: true,
		})
	}
	return reports
}

// ReceiveCredit routes a grant to the key's ledger.
func (s *Session) ReceiveCredit(key ChargingKey, g Grant) error {
	l, ok := s.Ledger(key)
	if !ok {
		return ErrUnknownChargingKey
	}
	l.ReceiveCredit(g)
	return nil
}

// ReportFailure records a failed exchange for the key: fatal failures cut
// the key off permanently, transient ones unwind the in-flight snapshot so
// the next update cycle retries.
func (s *Session) ReportFailure(key ChargingKey, fatal bool) error {
	l, ok := s.Ledger(key)
	if !ok {
		return ErrUnknownChargingKey
	}
	if fatal {
		l.MarkFailure()
	} else {
		l.ResetReportingCredit()
	}
	return nil
}

// Reauth forces a re-authorization for one charging key.
func (s *Session) Reauth(key ChargingKey) error {
	l, ok := s.Ledger(key)
	if !ok {
		return ErrUnknownChargingKey
	}
	l.Reauth()
	return nil
}

// ReauthAll forces a re-authorization for every active charging key.
func (s *Session) ReauthAll() {
	for _, key := range s.Keys() {
		if l, ok := s.Ledger(key); ok {
			l.Reauth()
		}
	}
}

// Actions returns the enforcement actions for keys with a pending
// service-state transition. Keys whose state already matches the decision
// are omitted so the data plane is not asked to re-apply what it has
// already applied.
func (s *Session) Actions() []KeyAction {
	var actions []KeyAction
	for _, key := range s.Keys() {
		l, ok := s.Ledger(key)
		if !ok {
			continue
		}
		action := l.Action()
		switch l.ServiceState() {
		case ServiceNeedsDeactivation, ServiceNeedsActivation:
			actions = append(actions, KeyAction{Key: key, Action: action})
		}
	}
	return actions
}

// MarkActionApplied records that the data plane applied an action for a key.
func (s *Session) MarkActionApplied(key ChargingKey, action ServiceActionType) error {
	l, ok := s.Ledger(key)
	if !ok {
		return ErrUnknownChargingKey
	}
	l.MarkActionApplied(action)
	return nil
}

// Snapshots copies the current state of every ledger.
func (s *Session) Snapshots() map[ChargingKey]Snapshot {
	snaps := make(map[ChargingKey]Snapshot)
	for _, key := range s.Keys() {
		if l, ok := s.Ledger(key); ok {
			snaps[key] = l.Snapshot()
		}
	}
	return snaps
}
