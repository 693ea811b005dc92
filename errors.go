package sessioncredit

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrReportInFlight       = errors.New("sessioncredit: usage report already in flight")
	ErrNoUpdateDue          = errors.New("sessioncredit: no usage update due")
	ErrUnknownChargingKey   = errors.New("sessioncredit: unknown charging key")
	ErrAuthorityUnavailable = errors.New("sessioncredit: charging authority unavailable")
	ErrAuthorityRejected    = errors.New("sessioncredit: charging authority rejected the exchange")
)

// ExchangeError wraps a charging-authority exchange failure with context.
type ExchangeError struct {
	Err       error
	SessionID string
	Key       ChargingKey
	ReportID  string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("sessioncredit: session=%s key=%d report=%s: %v",
		e.SessionID, e.Key, e.ReportID, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the exchange failure is unrecoverable and the
// key must be cut off rather than retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthorityRejected)
}

// IsRetryable returns true if the exchange can be retried on the next
// update cycle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAuthorityUnavailable)
}
