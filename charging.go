package sessioncredit

import "context"

// ChargingClient is the boundary to the charging authority exchange. The
// wire protocol behind it (Gy, CCA, vendor REST, ...) is owned by the
// adapter; the ledger only sees report-out, grant-or-error-in.
//
// A transient failure must be surfaced as (or wrap) ErrAuthorityUnavailable
// so the snapshot is unwound and retried on the next cycle; an
// unrecoverable failure as ErrAuthorityRejected so the key is cut off.
type ChargingClient interface {
	// SendUsage delivers one usage report and returns the resulting grant.
	SendUsage(ctx context.Context, report UsageReport) (Grant, error)
}

// UsageReport is one usage report delta for a single charging key.
type UsageReport struct {
	SessionID   string
	ReportID    string
	Key         ChargingKey
	Type        UpdateType
	Usage       Usage
	Termination bool
}

// Enforcer is the data-plane enforcement sink. Implementations steer
// traffic for the key (continue forwarding, discard, or tear the bearer
// down); the tunnel mechanics are out of the ledger's hands.
type Enforcer interface {
	// Apply applies an enforcement action for one charging key.
	Apply(ctx context.Context, key ChargingKey, action ServiceActionType) error
}

// noopEnforcer accepts every action without touching a data plane.
type noopEnforcer struct{}

func (noopEnforcer) Apply(context.Context, ChargingKey, ServiceActionType) error { return nil }

// noopMonitor is a monitor that does nothing.
type noopMonitor struct{}

func (noopMonitor) OnReport(ReportEvent)   {}
func (noopMonitor) OnGrant(GrantEvent)     {}
func (noopMonitor) OnFailure(FailureEvent) {}
func (noopMonitor) OnAction(ActionEvent)   {}
