package sessioncredit

// Bucket indexes one of the fixed credit volume counters tracked per
// charging key. Buckets are incremented independently and never reset;
// all values are in bytes.
type Bucket int

const (
	UsedTx Bucket = iota
	UsedRx
	AllowedTotal
	AllowedTx
	AllowedRx
	ReportingTx
	ReportingRx
	ReportedTx
	ReportedRx

	bucketCount
)

func (b Bucket) String() string {
	switch b {
	case UsedTx:
		return "used_tx"
	case UsedRx:
		return "used_rx"
	case AllowedTotal:
		return "allowed_total"
	case AllowedTx:
		return "allowed_tx"
	case AllowedRx:
		return "allowed_rx"
	case ReportingTx:
		return "reporting_tx"
	case ReportingRx:
		return "reporting_rx"
	case ReportedTx:
		return "reported_tx"
	case ReportedRx:
		return "reported_rx"
	default:
		return "unknown"
	}
}
