package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/khanhnv2901/nginx-audit/internal/issue"
	consts "github.com/khanhnv2901/nginx-audit/internal/shared/constants"
)

// Metrics tracks dispatcher activity.
//
// Metrics:
//   - nginx_audit_rule_invocations_total: rule calls by rule and phase
//   - nginx_audit_rule_faults_total: failed rule calls by rule and phase
//   - nginx_audit_issues_total: findings by rule and severity
//   - nginx_audit_run_duration_seconds: wall time of a full dispatch run
//
// A nil *Metrics records nothing.
type Metrics struct {
	invocations *prometheus.CounterVec
	faults      *prometheus.CounterVec
	issues      *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics creates the dispatcher metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: consts.MetricsNamespace,
				Name:      "rule_invocations_total",
				Help:      "Total number of rule invocations",
			},
			[]string{"rule", "phase"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: consts.MetricsNamespace,
				Name:      "rule_faults_total",
				Help:      "Total number of rule invocations that returned an error or panicked",
			},
			[]string{"rule", "phase"},
		),
		issues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: consts.MetricsNamespace,
				Name:      "issues_total",
				Help:      "Total number of issues reported",
			},
			[]string{"rule", "severity"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: consts.MetricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a complete dispatch run in seconds",
				// Runs are in-memory tree walks (10µs to ~1s)
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 9),
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.invocations, m.faults, m.issues, m.duration)
	}
	return m
}

func (m *Metrics) observeInvocation(rule string, phase Phase, fault *Fault) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(rule, string(phase)).Inc()
	if fault != nil {
		m.faults.WithLabelValues(rule, string(phase)).Inc()
	}
}

func (m *Metrics) observeIssues(issues []issue.Issue) {
	if m == nil {
		return
	}
	for _, is := range issues {
		m.issues.WithLabelValues(is.Rule(), is.Severity().String()).Inc()
	}
}

func (m *Metrics) observeRun(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}
