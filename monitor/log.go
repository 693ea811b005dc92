package monitor

import (
	"log/slog"

	"github.com/ineyio/sessioncredit"
)

// LogMonitor logs credit-control events using slog.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ sessioncredit.Monitor = (*LogMonitor)(nil)

// NewLogMonitor creates a LogMonitor with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{Logger: logger}
}

func (m *LogMonitor) OnReport(e sessioncredit.ReportEvent) {
	m.Logger.Info("usage_report",
		"session", e.SessionID,
		"key", e.Key,
		"report_id", e.ReportID,
		"type", e.Type.String(),
		"bytes_tx", e.Usage.BytesTx,
		"bytes_rx", e.Usage.BytesRx,
		"termination", e.Termination,
	)
}

func (m *LogMonitor) OnGrant(e sessioncredit.GrantEvent) {
	m.Logger.Info("credit_grant",
		"session", e.SessionID,
		"key", e.Key,
		"report_id", e.ReportID,
		"total_volume", e.Grant.TotalVolume,
		"tx_volume", e.Grant.TxVolume,
		"rx_volume", e.Grant.RxVolume,
		"validity", e.Grant.Validity,
		"is_final", e.Grant.IsFinal,
		"duration_ms", e.Duration.Milliseconds(),
	)
}

func (m *LogMonitor) OnFailure(e sessioncredit.FailureEvent) {
	m.Logger.Warn("report_failure",
		"session", e.SessionID,
		"key", e.Key,
		"report_id", e.ReportID,
		"fatal", e.Fatal,
		"duration_ms", e.Duration.Milliseconds(),
		"error", e.Error,
	)
}

func (m *LogMonitor) OnAction(e sessioncredit.ActionEvent) {
	m.Logger.Info("enforcement_action",
		"session", e.SessionID,
		"key", e.Key,
		"action", e.Action.String(),
	)
}
