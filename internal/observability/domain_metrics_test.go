package observability

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func authFailures(t *testing.T, reason string) float64 {
	t.Helper()
	var metric dto.Metric
	if err := authFailuresTotal.WithLabelValues(reason).Write(&metric); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestIncrementAuthFailureCountsByReason(t *testing.T) {
	before := authFailures(t, "conflicting")
	IncrementAuthFailure("conflicting")
	IncrementAuthFailure("conflicting")
	if got := authFailures(t, "conflicting") - before; got != 2 {
		t.Fatalf("conflicting failures = %v, want 2", got)
	}
}
