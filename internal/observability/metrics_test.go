package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := GetMetrics()

	if m.QueueDepth == nil {
		t.Error("QueueDepth metric not initialized")
	}
	if m.CacheHits == nil {
		t.Error("CacheHits metric not initialized")
	}
	if m.UpstreamRequests == nil {
		t.Error("UpstreamRequests metric not initialized")
	}

	before := testutil.ToFloat64(m.RegistryPreferred)
	m.RegistryPreferred.Inc()
	if got := testutil.ToFloat64(m.RegistryPreferred); got != before+1 {
		t.Errorf("expected RegistryPreferred to be %f, got %f", before+1, got)
	}

	m.QueueDepth.Set(5)
	if testutil.ToFloat64(m.QueueDepth) != 5 {
		t.Errorf("expected QueueDepth to be 5, got %f", testutil.ToFloat64(m.QueueDepth))
	}

	// counter vecs keep labels apart
	found := m.EnrichmentLookups.WithLabelValues("found")
	missing := m.EnrichmentLookups.WithLabelValues("missing")
	foundBefore, missingBefore := testutil.ToFloat64(found), testutil.ToFloat64(missing)

	found.Inc()
	missing.Add(3)

	if got := testutil.ToFloat64(found); got != foundBefore+1 {
		t.Errorf("found lookups = %f, want %f", got, foundBefore+1)
	}
	if got := testutil.ToFloat64(missing); got != missingBefore+3 {
		t.Errorf("missing lookups = %f, want %f", got, missingBefore+3)
	}
}

func TestMetricsSingleton(t *testing.T) {
	m1 := GetMetrics()
	m2 := GetMetrics()

	if m1 != m2 {
		t.Error("GetMetrics should return the same instance")
	}
}

func TestHistogram(t *testing.T) {
	m := GetMetrics()

	m.RefreshDuration.Observe(1.5)
	m.RefreshDuration.Observe(3.2)

	if n := testutil.CollectAndCount(m.RefreshDuration); n != 1 {
		t.Errorf("expected one refresh duration series, got %d", n)
	}
}
