// Package metrics holds the Prometheus collectors for translation session
// activity.
//
// Every CLI invocation gets its own registry; when a metrics file is
// configured the registry is written there in the text exposition format
// at exit, ready for the node_exporter textfile collector.
//
// Metrics:
//   - cli_localize_batches_fetched_total{format}
//   - cli_localize_submissions_total{format,outcome}
//   - cli_localize_validation_issues_total{kind}
//   - cli_localize_placeholder_warnings_total{format}
//   - cli_localize_entries_finalized_total{format,result}
//   - cli_localize_sessions_finalized_total{format}
//   - cli_localize_session_progress_ratio{session}
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cli_localize"

// Metrics records session activity on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	BatchesFetched    *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	ValidationIssues  *prometheus.CounterVec
	PlaceholderWarns  *prometheus.CounterVec
	EntriesFinalized  *prometheus.CounterVec
	SessionsFinalized *prometheus.CounterVec
	SessionProgress   *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		BatchesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_fetched_total",
			Help:      "Number of batches handed out for translation.",
		}, []string{"format"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Number of submitted replies by outcome (completed, structural, decode, content).",
		}, []string{"format", "outcome"}),
		ValidationIssues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_issues_total",
			Help:      "Number of validation issues found in rejected replies.",
		}, []string{"kind"}),
		PlaceholderWarns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholder_warnings_total",
			Help:      "Number of placeholders missing from accepted translations.",
		}, []string{"format"}),
		EntriesFinalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_finalized_total",
			Help:      "Number of entries written by finalize, translated or kept as source text.",
		}, []string{"format", "result"}),
		SessionsFinalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finalized_total",
			Help:      "Number of finalized sessions.",
		}, []string{"format"}),
		SessionProgress: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_progress_ratio",
			Help:      "Completed batches divided by total batches.",
		}, []string{"session"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) BatchFetched(format string) {
	m.BatchesFetched.WithLabelValues(format).Inc()
}

func (m *Metrics) BatchSubmitted(format, outcome string) {
	m.Submissions.WithLabelValues(format, outcome).Inc()
}

func (m *Metrics) ValidationIssue(kind string) {
	m.ValidationIssues.WithLabelValues(kind).Inc()
}

func (m *Metrics) PlaceholderWarnings(format string, n int) {
	m.PlaceholderWarns.WithLabelValues(format).Add(float64(n))
}

func (m *Metrics) Finalized(format string, translated, fallback int) {
	m.SessionsFinalized.WithLabelValues(format).Inc()
	m.EntriesFinalized.WithLabelValues(format, "translated").Add(float64(translated))
	m.EntriesFinalized.WithLabelValues(format, "fallback").Add(float64(fallback))
}

// Progress sets the completion ratio of a session. Sessions without
// batches count as complete.
func (m *Metrics) Progress(sessionID string, completed, total int) {
	ratio := 1.0
	if total > 0 {
		ratio = float64(completed) / float64(total)
	}
	m.SessionProgress.WithLabelValues(sessionID).Set(ratio)
}

// WriteFile writes every collected metric to path in the text format.
// An empty path is a no-op.
func (m *Metrics) WriteFile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
