package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"addrproof/internal/domain"
)

func TestObserveVerdict(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())
	m.ObserveVerdict(domain.Verdict{Valid: true, ProofType: domain.ProofMembership}, time.Millisecond)
	m.ObserveVerdict(domain.Verdict{FailedCheck: domain.CheckRevocation, ProofType: domain.ProofMembership}, time.Millisecond)
	m.ObserveVerdict(domain.Verdict{FailedCheck: domain.CheckRevocation, ProofType: domain.ProofMembership}, time.Millisecond)

	if got := testutil.ToFloat64(m.Verdicts.WithLabelValues("true", "", "membership")); got != 1 {
		t.Fatalf("expected 1 valid verdict, got %v", got)
	}
	if got := testutil.ToFloat64(m.Verdicts.WithLabelValues("false", "revocation", "membership")); got != 2 {
		t.Fatalf("expected 2 revocation failures, got %v", got)
	}
}

func TestObserveRevocation(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())
	m.ObserveRevocation("issuer-jp", 4)
	m.IncrementRateLimited("verify")
	if got := testutil.ToFloat64(m.RevocationVersion.WithLabelValues("issuer-jp")); got != 4 {
		t.Fatalf("expected version 4, got %v", got)
	}
	if got := testutil.ToFloat64(m.RateLimited.WithLabelValues("verify")); got != 1 {
		t.Fatalf("expected 1 rate limited request, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveVerdict(domain.Verdict{}, time.Second)
	m.ObserveRevocation("issuer", 1)
	m.IncrementRateLimited("verify")
}
