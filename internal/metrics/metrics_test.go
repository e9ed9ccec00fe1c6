package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Hydrations.WithLabelValues(HydrationLoaded).Inc()
	m.Persists.WithLabelValues(PersistSuccess).Add(2)
	m.TrackedEvents.WithLabelValues("search_performed").Inc()
	m.PublishFailures.Inc()

	if got := testutil.ToFloat64(m.Persists.WithLabelValues(PersistSuccess)); got != 2 {
		t.Errorf("persist success = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 4 {
		t.Errorf("Expected 4 metric families, got %d", len(families))
	}
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("Expected registering the collectors twice to panic")
		}
	}()
	New(reg)
}

func TestNop_IsIndependent(t *testing.T) {
	t.Parallel()

	a, b := Nop(), Nop()
	a.Hydrations.WithLabelValues(HydrationCorrupt).Inc()

	if got := testutil.ToFloat64(b.Hydrations.WithLabelValues(HydrationCorrupt)); got != 0 {
		t.Errorf("Nop metrics share state: %v", got)
	}
}

func TestNewConsumer(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewConsumer(reg)

	m.Consumed.WithLabelValues("feature_used").Inc()
	m.FeatureUsage.WithLabelValues("forum").Inc()
	m.SymptomMentions.Add(3)

	if got := testutil.CollectAndCount(m.Consumed); got != 1 {
		t.Errorf("Consumed series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.SymptomMentions); got != 3 {
		t.Errorf("SymptomMentions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Rejected); got != 0 {
		t.Errorf("Rejected = %v, want 0", got)
	}
}
