package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ineyio/sessioncredit"
)

// PromMonitor exports credit-control events as Prometheus metrics.
type PromMonitor struct {
	reportsTotal    *prometheus.CounterVec
	reportedBytes   *prometheus.CounterVec
	grantsTotal     *prometheus.CounterVec
	grantedBytes    prometheus.Counter
	failuresTotal   *prometheus.CounterVec
	actionsTotal    *prometheus.CounterVec
	exchangeSeconds prometheus.Histogram
}

var _ sessioncredit.Monitor = (*PromMonitor)(nil)

// NewPromMonitor creates a PromMonitor and registers its collectors with
// reg. If reg is nil, the default registerer is used.
func NewPromMonitor(reg prometheus.Registerer) *PromMonitor {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PromMonitor{
		reportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessioncredit",
				Name:      "reports_total",
				Help:      "Total usage reports sent to the charging authority",
			},
			[]string{"type", "termination"},
		),
		reportedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessioncredit",
				Name:      "reported_bytes_total",
				Help:      "Total usage volume carried by sent reports",
			},
			[]string{"direction"},
		),
		grantsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessioncredit",
				Name:      "grants_total",
				Help:      "Total credit grants received",
			},
			[]string{"final"},
		),
		grantedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessioncredit",
				Name:      "granted_bytes_total",
				Help:      "Total allowed volume received in grants",
			},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessioncredit",
				Name:      "report_failures_total",
				Help:      "Total failed report exchanges",
			},
			[]string{"fatal"},
		),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessioncredit",
				Name:      "enforcement_actions_total",
				Help:      "Total enforcement actions applied to the data plane",
			},
			[]string{"action"},
		),
		exchangeSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sessioncredit",
				Name:      "exchange_duration_seconds",
				Help:      "Charging authority exchange duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
	}

	reg.MustRegister(
		m.reportsTotal,
		m.reportedBytes,
		m.grantsTotal,
		m.grantedBytes,
		m.failuresTotal,
		m.actionsTotal,
		m.exchangeSeconds,
	)
	return m
}

func (m *PromMonitor) OnReport(e sessioncredit.ReportEvent) {
	m.reportsTotal.WithLabelValues(e.Type.String(), strconv.FormatBool(e.Termination)).Inc()
	m.reportedBytes.WithLabelValues("tx").Add(float64(e.Usage.BytesTx))
	m.reportedBytes.WithLabelValues("rx").Add(float64(e.Usage.BytesRx))
}

func (m *PromMonitor) OnGrant(e sessioncredit.GrantEvent) {
	m.grantsTotal.WithLabelValues(strconv.FormatBool(e.Grant.IsFinal)).Inc()
	m.grantedBytes.Add(float64(e.Grant.TotalVolume))
	m.exchangeSeconds.Observe(e.Duration.Seconds())
}

func (m *PromMonitor) OnFailure(e sessioncredit.FailureEvent) {
	m.failuresTotal.WithLabelValues(strconv.FormatBool(e.Fatal)).Inc()
	m.exchangeSeconds.Observe(e.Duration.Seconds())
}

func (m *PromMonitor) OnAction(e sessioncredit.ActionEvent) {
	m.actionsTotal.WithLabelValues(e.Action.String()).Inc()
}
