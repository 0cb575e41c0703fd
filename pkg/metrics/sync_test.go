package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSyncMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)

	m.ObservePass("interval", 150*time.Millisecond)
	m.IncEntry("synced")
	m.IncEntry("synced")
	m.IncEntry("error")
	m.IncSubmission("accepted")
	m.IncSubmission("")

	if got := testutil.ToFloat64(m.entries.WithLabelValues("synced")); got != 2 {
		t.Fatalf("expected 2 synced entries, got %v", got)
	}
	if got := testutil.ToFloat64(m.entries.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 error entry, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty result to normalize to unknown, got %v", got)
	}
}

func TestSyncMetricsNilSafe(t *testing.T) {
	var m *SyncMetrics
	m.ObservePass("manual", time.Second)
	m.IncEntry("synced")
	m.IncSubmission("accepted")

	empty := NewSyncMetrics(nil)
	empty.IncEntry("synced")
}
