package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BillingOutcomes.WithLabelValues(OutcomeCommitted).Inc()
	m.BillingOutcomes.WithLabelValues(OutcomeCommitted).Inc()
	m.UnitsDeducted.Add(10)

	if got := counterValue(t, m.BillingOutcomes.WithLabelValues(OutcomeCommitted)); got != 2 {
		t.Errorf("expected 2 committed attempts, got %v", got)
	}
	if got := counterValue(t, m.UnitsDeducted); got != 10 {
		t.Errorf("expected 10 units, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "opd_billing_attempts_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected opd_billing_attempts_total to be registered")
	}
}

func TestNewNop_Independent(t *testing.T) {
	// Two private registries must not collide.
	a := NewNop()
	b := NewNop()
	a.UnitsDeducted.Inc()
	if got := counterValue(t, b.UnitsDeducted); got != 0 {
		t.Errorf("expected independent collectors, got %v", got)
	}
}
