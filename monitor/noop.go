package monitor

import "github.com/ineyio/sessioncredit"

// NoopMonitor is a monitor that does nothing.
type NoopMonitor struct{}

var _ sessioncredit.Monitor = (*NoopMonitor)(nil)

func (m *NoopMonitor) OnReport(sessioncredit.ReportEvent)   {}
func (m *NoopMonitor) OnGrant(sessioncredit.GrantEvent)     {}
func (m *NoopMonitor) OnFailure(sessioncredit.FailureEvent) {}
func (m *NoopMonitor) OnAction(sessioncredit.ActionEvent)   {}
