package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"addrproof/internal/domain"
)

// Metrics records proof engine outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	// Verdicts by outcome, failing check and proof type
	Verdicts *prometheus.CounterVec

	VerifyLatency prometheus.Histogram

	// Latest published revocation list version per issuer
	RevocationVersion *prometheus.GaugeVec

	RateLimited *prometheus.CounterVec
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "addrproof_verdicts_total",
			Help: "Proof bundle verdicts by outcome, failing check and proof type",
		}, []string{"valid", "failed_check", "proof_type"}),

		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "addrproof_verify_duration_seconds",
			Help:    "Duration of a full bundle verification",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1},
		}),

		RevocationVersion: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "addrproof_revocation_list_version",
			Help: "Latest signed revocation list version by issuer",
		}, []string{"issuer"}),

		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "addrproof_rate_limited_total",
			Help: "Requests rejected by the rate limiter by scope",
		}, []string{"scope"}),
	}
}

func (m *Metrics) ObserveVerdict(v domain.Verdict, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(strconv.FormatBool(v.Valid), string(v.FailedCheck), string(v.ProofType)).Inc()
	m.VerifyLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRevocation(issuerID string, version int64) {
	if m != nil {
		m.RevocationVersion.WithLabelValues(issuerID).Set(float64(version))
	}
}

func (m *Metrics) IncrementRateLimited(scope string) {
	if m != nil {
		m.RateLimited.WithLabelValues(scope).Inc()
	}
}
