package sessioncredit

import (
	"context"
	"fmt"
	"time"
)

// Manager drives the credit-control loop for one session: it polls the
// update decision, exchanges due usage reports with the charging authority,
// feeds grants and failures back into the ledgers, and pushes pending
// enforcement actions to the data plane.
//
// The manager does not retry or back off: a transient exchange failure
// unwinds the in-flight snapshot and the next cycle's re-evaluation
// triggers the report again.
type Manager struct {
	session  *Session
	client   ChargingClient
	enforcer Enforcer
	monitor  Monitor
	store    LedgerStore
	cfg      Config
}

// Option configures a Manager.
type Option func(*Manager)

// WithEnforcer sets the data-plane enforcement sink.
func WithEnforcer(e Enforcer) Option {
	return func(m *Manager) { m.enforcer = e }
}

// WithMonitor sets the monitor.
func WithMonitor(mon Monitor) Option {
	return func(m *Manager) { m.monitor = mon }
}

// WithStore sets the ledger snapshot store. Snapshots are written after
// every cycle and removed on termination.
func WithStore(store LedgerStore) Option {
	return func(m *Manager) { m.store = store }
}

// NewManager creates a Manager for the given session and charging client.
// A no-op enforcer and monitor are used unless overridden via options.
func NewManager(cfg Config, session *Session, client ChargingClient, opts ...Option) (*Manager, error) {
	if session == nil {
		return nil, fmt.Errorf("sessioncredit: session is required")
	}
	if client == nil {
		return nil, fmt.Errorf("sessioncredit: charging client is required")
	}

	m := &Manager{
		session: session,
		client:  client,
		cfg:     cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(m)
	}

	// Apply defaults after options.
	if m.enforcer == nil {
		m.enforcer = noopEnforcer{}
	}
	if m.monitor == nil {
		m.monitor = noopMonitor{}
	}

	return m, nil
}

// Session returns the session this manager drives.
func (m *Manager) Session() *Session { return m.session }

// RunCycle performs one credit-control cycle: collect due reports, exchange
// them with the charging authority, apply pending enforcement actions, and
// persist snapshots. The first exchange error is returned after the whole
// cycle completes; enforcement is never skipped on exchange failure.
func (m *Manager) RunCycle(ctx context.Context) error {
	var firstErr error

	for _, report := range m.session.CollectUpdates() {
		if err := m.exchange(ctx, report); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.applyActions(ctx)

	if err := m.persist(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Run executes cycles at the configured poll interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = m.RunCycle(ctx)
		}
	}
}

// Terminate sends a final usage report for every key, tears down
// enforcement, and deletes stored state. Exchange failures are reported but
// do not stop teardown.
func (m *Manager) Terminate(ctx context.Context) error {
	var firstErr error

	for _, report := range m.session.TerminationReports() {
		if err := m.exchange(ctx, report); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, key := range m.session.Keys() {
		if err := m.enforcer.Apply(ctx, key, TerminateService); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.monitor.OnAction(ActionEvent{SessionID: m.session.ID(), Key: key, Action: TerminateService})
	}

	if m.store != nil {
		if err := m.store.Delete(ctx, m.session.ID()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Restore rebuilds the session's ledgers from the snapshot store.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	snaps, err := m.store.Load(ctx, m.session.ID())
	if err != nil {
		return err
	}
	for key, snap := range snaps {
		m.session.RestoreCredit(key, snap)
	}
	return nil
}

func (m *Manager) exchange(ctx context.Context, report UsageReport) error {
	m.monitor.OnReport(ReportEvent{
		SessionID:   report.SessionID,
		Key:         report.Key,
		ReportID:    report.ReportID,
		Type:        report.Type,
		Usage:       report.Usage,
		Termination: report.Termination,
	})

	start := time.Now()
	grant, err := m.client.SendUsage(ctx, report)
	duration := time.Since(start)

	if err != nil {
		fatal := IsFatal(err)
		_ = m.session.ReportFailure(report.Key, fatal)
		m.monitor.OnFailure(FailureEvent{
			SessionID: report.SessionID,
			Key:       report.Key,
			ReportID:  report.ReportID,
			Fatal:     fatal,
			Duration:  duration,
			Error:     err,
		})
		return &ExchangeError{
			Err:       err,
			SessionID: report.SessionID,
			Key:       report.Key,
			ReportID:  report.ReportID,
		}
	}

	if err := m.session.ReceiveCredit(report.Key, grant); err != nil {
		return err
	}
	m.monitor.OnGrant(GrantEvent{
		SessionID: report.SessionID,
		Key:       report.Key,
		ReportID:  report.ReportID,
		Grant:     grant,
		Duration:  duration,
	})
	return nil
}

func (m *Manager) applyActions(ctx context.Context) {
	for _, ka := range m.session.Actions() {
		if err := m.enforcer.Apply(ctx, ka.Key, ka.Action); err != nil {
			// Leave the transition pending so the next cycle retries it.
			continue
		}
		_ = m.session.MarkActionApplied(ka.Key, ka.Action)
		m.monitor.OnAction(ActionEvent{SessionID: m.session.ID(), Key: ka.Key, Action: ka.Action})
	}
}

func (m *Manager) persist(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	var firstErr error
	for key, snap := range m.session.Snapshots() {
		if err := m.store.Save(ctx, m.session.ID(), key, snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
