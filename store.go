package sessioncredit

import (
	"context"
	"time"
)

// Snapshot is a serializable copy of one ledger's counters and flags,
// suitable for storing out-of-process and restoring after a restart.
type Snapshot struct {
	UsedTx       uint64 `json:"used_tx"`
	UsedRx       uint64 `json:"used_rx"`
	AllowedTotal uint64 `json:"allowed_total"`
	AllowedTx    uint64 `json:"allowed_tx"`
	AllowedRx    uint64 `json:"allowed_rx"`
	ReportingTx  uint64 `json:"reporting_tx"`
	ReportingRx  uint64 `json:"reporting_rx"`
	ReportedTx   uint64 `json:"reported_tx"`
	ReportedRx   uint64 `json:"reported_rx"`

	Reporting    bool         `json:"reporting"`
	IsFinal      bool         `json:"is_final"`
	Failed       bool         `json:"failed"`
	ReauthState  ReAuthState  `json:"reauth_state"`
	ServiceState ServiceState `json:"service_state"`
	ExpiryTime   time.Time    `json:"expiry_time,omitempty"`
}

// LedgerStore persists ledger snapshots keyed by session and charging key.
type LedgerStore interface {
	// Save stores the snapshot for one charging key of a session.
	Save(ctx context.Context, sessionID string, key ChargingKey, snap Snapshot) error

	// Load returns all stored snapshots for a session.
	Load(ctx context.Context, sessionID string) (map[ChargingKey]Snapshot, error)

	// Delete removes all stored state for a session.
	Delete(ctx context.Context, sessionID string) error
}

// Snapshot copies the ledger's current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Snapshot{
		UsedTx:       l.buckets[UsedTx],
		UsedRx:       l.buckets[UsedRx],
		AllowedTotal: l.buckets[AllowedTotal],
		AllowedTx:    l.buckets[AllowedTx],
		AllowedRx:    l.buckets[AllowedRx],
		ReportingTx:  l.buckets[ReportingTx],
		ReportingRx:  l.buckets[ReportingRx],
		ReportedTx:   l.buckets[ReportedTx],
		ReportedRx:   l.buckets[ReportedRx],
		Reporting:    l.reporting,
		IsFinal:      l.isFinal,
		Failed:       l.failed,
		ReauthState:  l.reauthState,
		ServiceState: l.serviceState,
		ExpiryTime:   l.expiryTime,
	}
}

// RestoreLedger builds a ledger from a previously taken snapshot.
func RestoreLedger(snap Snapshot, cfg Config, opts ...LedgerOption) *Ledger {
	l := NewLedger(cfg, opts...)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets[UsedTx] = snap.UsedTx
	l.buckets[UsedRx] = snap.UsedRx
	l.buckets[AllowedTotal] = snap.AllowedTotal
	l.buckets[AllowedTx] = snap.AllowedTx
	l.buckets[AllowedRx] = snap.AllowedRx
	l.buckets[ReportingTx] = snap.ReportingTx
	l.buckets[ReportingRx] = snap.ReportingRx
	l.buckets[ReportedTx] = snap.ReportedTx
	l.buckets[ReportedRx] = snap.ReportedRx
	l.reporting = snap.Reporting
	l.isFinal = snap.IsFinal
	l.failed = snap.Failed
	l.reauthState = snap.ReauthState
	l.serviceState = snap.ServiceState
	l.expiryTime = snap.ExpiryTime
	return l
}
