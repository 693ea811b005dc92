package sessioncredit

import "time"

// Monitor observes credit-control events for monitoring/logging.
type Monitor interface {
	// OnReport is called when a usage report is sent to the charging authority.
	OnReport(event ReportEvent)

	// OnGrant is called when the charging authority grants credit.
	OnGrant(event GrantEvent)

	// OnFailure is called when a report exchange fails.
	OnFailure(event FailureEvent)

	// OnAction is called when an enforcement action is applied.
	OnAction(event ActionEvent)
}

// ReportEvent describes an outgoing usage report.
type ReportEvent struct {
	SessionID   string
	Key         ChargingKey
	ReportID    string
	Type        UpdateType
	Usage       Usage
	Termination bool
}

// GrantEvent describes a received credit grant.
type GrantEvent struct {
	SessionID string
	Key       ChargingKey
	ReportID  string
	Grant     Grant
	Duration  time.Duration
}

// FailureEvent describes a failed report exchange.
type FailureEvent struct {
	SessionID string
	Key       ChargingKey
	ReportID  string
	Fatal     bool
	Duration  time.Duration
	Error     error
}

// ActionEvent describes an enforcement action pushed to the data plane.
type ActionEvent struct {
	SessionID string
	Key       ChargingKey
	Action    ServiceActionType
}
