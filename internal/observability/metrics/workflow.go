package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

// WorkflowMetrics counts workflow outcomes. It satisfies
// ports.WorkflowObserver.
type WorkflowMetrics struct {
	service string

	uploadsTotal       *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	supersededTotal    *prometheus.CounterVec
	exportsTotal       *prometheus.CounterVec
	reconstructTotal   *prometheus.CounterVec
}

func NewWorkflowMetrics(service string, registerer prometheus.Registerer) *WorkflowMetrics {
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "uploads_total",
			Help:      "Finished document uploads by final staged status.",
		},
		[]string{"service", "status"},
	)
	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "submissions_total",
			Help:      "Applied evaluation submissions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	submissionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "submission_duration_seconds",
			Help:      "Evaluation submission round trip in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "outcome"},
	)
	supersededTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "superseded_results_total",
			Help:      "Submission results discarded because a newer action replaced them.",
		},
		[]string{"service"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "exports_total",
			Help:      "Artifact exports by render path and status.",
		},
		[]string{"service", "path", "status"},
	)
	reconstructTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "reconstructions_total",
			Help:      "Cold-start session reconstructions by outcome.",
		},
		[]string{"service", "outcome"},
	)

	if registerer != nil {
		registerer.MustRegister(uploadsTotal, submissionsTotal, submissionDuration, supersededTotal, exportsTotal, reconstructTotal)
	}

	return &WorkflowMetrics{
		service:            service,
		uploadsTotal:       uploadsTotal,
		submissionsTotal:   submissionsTotal,
		submissionDuration: submissionDuration,
		supersededTotal:    supersededTotal,
		exportsTotal:       exportsTotal,
		reconstructTotal:   reconstructTotal,
	}
}

func (m *WorkflowMetrics) UploadFinished(status domain.StagedStatus) {
	m.uploadsTotal.WithLabelValues(m.service, string(status)).Inc()
}

func (m *WorkflowMetrics) SubmissionFinished(outcome string, d time.Duration) {
	m.submissionsTotal.WithLabelValues(m.service, outcome).Inc()
	m.submissionDuration.WithLabelValues(m.service, outcome).Observe(d.Seconds())
}

func (m *WorkflowMetrics) SubmissionSuperseded() {
	m.supersededTotal.WithLabelValues(m.service).Inc()
}

func (m *WorkflowMetrics) ExportFinished(path string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.exportsTotal.WithLabelValues(m.service, path, status).Inc()
}

func (m *WorkflowMetrics) Reconstructed(outcome string) {
	m.reconstructTotal.WithLabelValues(m.service, outcome).Inc()
}

var _ ports.WorkflowObserver = (*WorkflowMetrics)(nil)
