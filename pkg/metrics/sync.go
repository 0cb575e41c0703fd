package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records outcomes of outbox sync passes and ledger submissions.
type SyncMetrics struct {
	passDuration *prometheus.HistogramVec
	entries      *prometheus.CounterVec
	submissions  *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	passDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_pass_duration_seconds",
		Help:    "Duration of outbox sync passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_entries_total",
		Help: "Outbox entries processed per outcome.",
	}, []string{"outcome"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_submissions_total",
		Help: "Ledger submissions per result.",
	}, []string{"result"})
	reg.MustRegister(passDuration, entries, submissions)
	return &SyncMetrics{
		passDuration: passDuration,
		entries:      entries,
		submissions:  submissions,
	}
}

// ObservePass records the duration of one sync pass.
func (m *SyncMetrics) ObservePass(trigger string, duration time.Duration) {
	if m == nil || m.passDuration == nil {
		return
	}
	m.passDuration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncEntry counts one processed entry by outcome (synced, conflict, error).
func (m *SyncMetrics) IncEntry(outcome string) {
	if m == nil || m.entries == nil {
		return
	}
	m.entries.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSubmission counts one ledger submission by result (accepted, duplicate, rejected).
func (m *SyncMetrics) IncSubmission(result string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
