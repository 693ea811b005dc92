package sessioncredit

import "time"

// ChargingKey identifies the rating group under which a ledger tracks
// usage and quota independently of other keys in the same session.
type ChargingKey uint32

// Usage is a tx/rx volume pair, in bytes.
type Usage struct {
	BytesTx uint64 `json:"bytes_tx"`
	BytesRx uint64 `json:"bytes_rx"`
}

// Total returns the combined tx+rx volume.
func (u Usage) Total() uint64 { return u.BytesTx + u.BytesRx }

// Grant is a charging authority's response to a usage report, allocating
// additional allowed volume and optionally a validity duration.
type Grant struct {
	TotalVolume uint64
	TxVolume    uint64
	RxVolume    uint64

	// Validity bounds how long the grant stays fresh. Zero means no expiry.
	Validity time.Duration

	// IsFinal indicates no further quota will be granted for this key.
	IsFinal bool
}

// UpdateType is the reason a usage report is due, if any.
type UpdateType int

const (
	UpdateNone UpdateType = iota
	UpdateQuotaExhausted
	UpdateValidityTimerExpired
	UpdateReauthRequired
)

func (t UpdateType) String() string {
	switch t {
	case UpdateNone:
		return "no_update"
	case UpdateQuotaExhausted:
		return "quota_exhausted"
	case UpdateValidityTimerExpired:
		return "validity_timer_expired"
	case UpdateReauthRequired:
		return "reauth_required"
	default:
		return "unknown"
	}
}

// ReAuthState tracks an externally triggered forced re-authorization,
// independent of quota exhaustion.
type ReAuthState int

const (
	ReauthNotNeeded ReAuthState = iota
	ReauthRequired
	ReauthProcessing
)

func (s ReAuthState) String() string {
	switch s {
	case ReauthNotNeeded:
		return "not_needed"
	case ReauthRequired:
		return "required"
	case ReauthProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// ServiceState is the last-applied enforcement outcome for a charging key.
// The Needs* states mark a pending transition the data plane has not
// applied yet, so callers can skip redundant enforcement operations.
type ServiceState int

const (
	ServiceEnabled ServiceState = iota
	ServiceNeedsDeactivation
	ServiceDisabled
	ServiceNeedsActivation
)

func (s ServiceState) String() string {
	switch s {
	case ServiceEnabled:
		return "enabled"
	case ServiceNeedsDeactivation:
		return "needs_deactivation"
	case ServiceDisabled:
		return "disabled"
	case ServiceNeedsActivation:
		return "needs_activation"
	default:
		return "unknown"
	}
}

// ServiceActionType is the enforcement action the data plane must apply
// right now for a charging key.
type ServiceActionType int

const (
	ContinueService ServiceActionType = iota
	RestrictAccess
	TerminateService
)

func (a ServiceActionType) String() string {
	switch a {
	case ContinueService:
		return "continue_service"
	case RestrictAccess:
		return "restrict_access"
	case TerminateService:
		return "terminate_service"
	default:
		return "unknown"
	}
}

// KeyAction pairs a charging key with the enforcement action it needs.
type KeyAction struct {
	Key    ChargingKey
	Action ServiceActionType
}
