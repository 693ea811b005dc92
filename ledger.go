package sessioncredit

import (
	"sync"
	"time"
)

// Ledger tracks all credit volumes associated with one charging key. It
// receives used credit from the metering path, absorbs grants from the
// charging authority, decides when a usage report is due, and derives the
// enforcement action the data plane must apply.
//
// A Ledger is safe for concurrent use: the high-frequency ingest path and
// the asynchronous grant path serialize on one mutex, and no operation
// blocks on I/O.
type Ledger struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	buckets      [bucketCount]uint64
	reporting    bool
	isFinal      bool
	failed       bool
	reauthState  ReAuthState
	serviceState ServiceState
	expiryTime   time.Time // zero means no validity expiry
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithStartState sets the initial service state (default ServiceEnabled).
func WithStartState(s ServiceState) LedgerOption {
	return func(l *Ledger) { l.serviceState = s }
}

// WithClock overrides the time source used for validity-timer checks.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger with the given config.
func NewLedger(cfg Config, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		cfg:          cfg.withDefaults(),
		now:          time.Now,
		reauthState:  ReauthNotNeeded,
		serviceState: ServiceEnabled,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddUsedCredit ingests observed usage from the metering path, incrementing
// UsedTx and UsedRx. It is purely additive and never rejects: overspend
// detection is deferred to Action so that metering never blocks on policy.
func (l *Ledger) AddUsedCredit(tx, rx uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets[UsedTx] += tx
	l.buckets[UsedRx] += rx
}

// Credit returns the current value of a single bucket.
func (l *Ledger) Credit(b Bucket) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b < 0 || b >= bucketCount {
		return 0
	}
	return l.buckets[b]
}

// ReceiveCredit absorbs a grant from the charging authority. The in-flight
// reporting snapshot is acknowledged into ReportedTx/ReportedRx, the
// allowed buckets grow by the granted volumes, and the validity timer and
// final flag are reset from the grant. This is the single mutation path
// that retires an outstanding report.
func (l *Ledger) ReceiveCredit(g Grant) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets[ReportedTx] += l.buckets[ReportingTx]
	l.buckets[ReportedRx] += l.buckets[ReportingRx]
	l.buckets[ReportingTx] = 0
	l.buckets[ReportingRx] = 0
	l.reporting = false

	l.buckets[AllowedTotal] += g.TotalVolume
	l.buckets[AllowedTx] += g.TxVolume
	l.buckets[AllowedRx] += g.RxVolume

	if g.Validity > 0 {
		l.expiryTime = l.now().Add(g.Validity)
	} else {
		l.expiryTime = time.Time{}
	}
	l.isFinal = g.IsFinal

	if l.reauthState == ReauthProcessing {
		l.reauthState = ReauthNotNeeded
	}
}

// UpdateType returns the reason a usage report is due, or UpdateNone.
// A forced re-authorization always wins; an outstanding report suppresses
// any further trigger; exhaustion only triggers while more quota can still
// be requested; a stale validity timer comes last.
func (l *Ledger) UpdateType() UpdateType {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.updateType()
}

// updateType must be called with the lock held.
func (l *Ledger) updateType() UpdateType {
	if l.failed {
		return UpdateNone
	}
	if l.reauthState == ReauthRequired {
		return UpdateReauthRequired
	}
	if l.reporting {
		return UpdateNone
	}
	if l.quotaExhausted() && !l.isFinal {
		return UpdateQuotaExhausted
	}
	if l.validityTimerExpired() {
		return UpdateValidityTimerExpired
	}
	return UpdateNone
}

// UsageForReporting takes a reporting snapshot: the outstanding unreported
// delta is moved into ReportingTx/ReportingRx and returned as the report
// payload. Unless this is a termination report, each direction is capped at
// the configured usage reporting limit; the remainder stays outstanding and
// is picked up by a subsequent report.
//
// Returns ErrReportInFlight if a report is already outstanding, and
// ErrNoUpdateDue if no update is due and isTermination is false.
func (l *Ledger) UsageForReporting(isTermination bool) (Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reporting {
		return Usage{}, ErrReportInFlight
	}
	if !isTermination && l.updateType() == UpdateNone {
		return Usage{}, ErrNoUpdateDue
	}

	u := Usage{
		BytesTx: l.buckets[UsedTx] - l.buckets[ReportedTx],
		BytesRx: l.buckets[UsedRx] - l.buckets[ReportedRx],
	}
	if !isTermination && l.cfg.UsageReportingLimit > 0 {
		u.BytesTx = min(u.BytesTx, l.cfg.UsageReportingLimit)
		u.BytesRx = min(u.BytesRx, l.cfg.UsageReportingLimit)
	}

	l.buckets[ReportingTx] += u.BytesTx
	l.buckets[ReportingRx] += u.BytesRx
	l.reporting = true

	if l.reauthState == ReauthRequired {
		l.reauthState = ReauthProcessing
	}

	return u, nil
}

// ResetReportingCredit unwinds the in-flight snapshot after a transient
// reporting failure. The snapshotted delta becomes outstanding again, so
// the next UpdateType call is free to re-trigger a report. A forced
// re-authorization that was in flight reverts to required so it also
// re-triggers.
func (l *Ledger) ResetReportingCredit() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets[ReportingTx] = 0
	l.buckets[ReportingRx] = 0
	l.reporting = false

	if l.reauthState == ReauthProcessing {
		l.reauthState = ReauthRequired
	}
}

// MarkFailure marks the exchange with the charging authority as permanently
// broken for this key. No further reports are attempted and the next Action
// call mandates termination.
func (l *Ledger) MarkFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets[ReportingTx] = 0
	l.buckets[ReportingRx] = 0
	l.reporting = false
	l.failed = true
}

// Reauth marks the key as requiring a forced usage report regardless of
// remaining quota. No-op while a prior re-authorization is still in flight.
func (l *Ledger) Reauth() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reauthState == ReauthNotNeeded {
		l.reauthState = ReauthRequired
	}
}

// IsReporting reports whether a usage report is currently outstanding.
func (l *Ledger) IsReporting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.reporting
}

// IsFinal reports whether the authority has signalled that no further
// quota will be granted.
func (l *Ledger) IsFinal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.isFinal
}

// Action derives the enforcement action the data plane must apply right
// now, independent of whether a report is pending. Traffic keeps flowing
// optimistically while a report/grant round trip is outstanding; only once
// overspend outruns the configured tolerance is access restricted.
//
// Action also advances the service state so pending transitions can be
// detected: a restrict/terminate decision against an enabled key moves it
// to ServiceNeedsDeactivation, and a continue decision against a disabled
// key moves it to ServiceNeedsActivation.
func (l *Ledger) Action() ServiceActionType {
	l.mu.Lock()
	defer l.mu.Unlock()

	action := ContinueService
	switch {
	case l.failed:
		action = TerminateService
	case l.isFinal && l.quotaExhausted():
		action = TerminateService
	case l.maxOverageReached():
		action = RestrictAccess
	}

	switch action {
	case RestrictAccess, TerminateService:
		if l.serviceState == ServiceEnabled || l.serviceState == ServiceNeedsActivation {
			l.serviceState = ServiceNeedsDeactivation
		}
	case ContinueService:
		if l.serviceState == ServiceDisabled {
			l.serviceState = ServiceNeedsActivation
		}
	}

	return action
}

// ServiceState returns the current enforcement state for the key.
func (l *Ledger) ServiceState() ServiceState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.serviceState
}

// MarkActionApplied records that the data plane applied an enforcement
// action, completing any pending service-state transition.
func (l *Ledger) MarkActionApplied(action ServiceActionType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch action {
	case RestrictAccess, TerminateService:
		if l.serviceState == ServiceNeedsDeactivation {
			l.serviceState = ServiceDisabled
		}
	case ContinueService:
		if l.serviceState == ServiceNeedsActivation {
			l.serviceState = ServiceEnabled
		}
	}
}

// quotaExhausted must be called with the lock held. Allowed buckets are
// cumulative since session start, so a fresh ledger with no grant is
// immediately exhausted; that is what drives the initial quota request.
func (l *Ledger) quotaExhausted() bool {
	if l.buckets[UsedTx]+l.buckets[UsedRx] >= l.buckets[AllowedTotal] {
		return true
	}
	if l.buckets[AllowedTx] > 0 && l.buckets[UsedTx] >= l.buckets[AllowedTx] {
		return true
	}
	if l.buckets[AllowedRx] > 0 && l.buckets[UsedRx] >= l.buckets[AllowedRx] {
		return true
	}
	return false
}

// maxOverageReached must be called with the lock held.
func (l *Ledger) maxOverageReached() bool {
	if l.buckets[UsedTx]+l.buckets[UsedRx] > l.buckets[AllowedTotal]+l.cfg.MaxOverage {
		return true
	}
	if l.buckets[AllowedTx] > 0 && l.buckets[UsedTx] > l.buckets[AllowedTx]+l.cfg.MaxOverage {
		return true
	}
	if l.buckets[AllowedRx] > 0 && l.buckets[UsedRx] > l.buckets[AllowedRx]+l.cfg.MaxOverage {
		return true
	}
	return false
}

// validityTimerExpired must be called with the lock held.
func (l *Ledger) validityTimerExpired() bool {
	return !l.expiryTime.IsZero() && l.now().After(l.expiryTime)
}
