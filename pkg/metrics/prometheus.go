package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus
// metrics registered on the default registry.
type PrometheusRecorder struct {
	tokensTotal      *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	approvalWaitTime *prometheus.HistogramVec
	boundaryTotal    *prometheus.CounterVec
	alertsTotal      *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		tokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mission_tokens_total",
				Help: "Total number of tokens consumed by mission, phase, source, and usage kind",
			},
			[]string{"task_id", "phase_id", "source", "kind"},
		),
		phaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mission_phase_duration_seconds",
				Help:    "Duration of mission phases in seconds by terminal status",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"task_id", "status"},
		),
		approvalWaitTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mission_approval_wait_seconds",
				Help:    "Time spent waiting at between-phase approval gates",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"task_id"},
		),
		boundaryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mission_phase_boundary_total",
				Help: "Total number of forced phase boundaries by reason",
			},
			[]string{"task_id", "reason"},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mission_budget_alerts_total",
				Help: "Total number of budget status crossings by status",
			},
			[]string{"status"},
		),
	}
}

func (p *PrometheusRecorder) RecordTokens(taskID, phaseID, source, kind string, tokenCount int) {
	p.tokensTotal.WithLabelValues(taskID, phaseID, source, kind).Add(float64(tokenCount))
}

func (p *PrometheusRecorder) RecordPhaseDuration(taskID, status string, duration time.Duration) {
	p.phaseDuration.WithLabelValues(taskID, status).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordApprovalWait(taskID string, duration time.Duration) {
	p.approvalWaitTime.WithLabelValues(taskID).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordBoundaryTrigger(taskID, reason string) {
	p.boundaryTotal.WithLabelValues(taskID, reason).Inc()
}

func (p *PrometheusRecorder) RecordBudgetAlert(status string) {
	p.alertsTotal.WithLabelValues(status).Inc()
}
