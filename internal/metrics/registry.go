package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
)

// Registry holds the security-domain metrics.
type Registry struct {
	LoginAttempts   *prometheus.CounterVec
	RateLimitHits   prometheus.Counter
	FraudScore      prometheus.Histogram
	FraudDetections prometheus.Counter
	UploadOutcomes  *prometheus.CounterVec
	ConsentChanges  *prometheus.CounterVec
	SecurityEvents  *prometheus.CounterVec
}

// NewRegistry registers all metrics on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "security_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "security_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		FraudScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "security_fraud_score",
			Help:    "Distribution of fraud assessment scores.",
			Buckets: []float64{0, 20, 40, 60, 70, 80, 100, 150, 200},
		}),
		FraudDetections: factory.NewCounter(prometheus.CounterOpts{
			Name: "security_fraud_detections_total",
			Help: "Payment attempts scored above the fraud threshold.",
		}),
		UploadOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "security_upload_outcomes_total",
			Help: "File upload validation outcomes.",
		}, []string{"outcome"}),
		ConsentChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "security_consent_changes_total",
			Help: "Consent records appended, by direction.",
		}, []string{"direction"}),
		SecurityEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "security_events_total",
			Help: "All audit events by type and severity.",
		}, []string{"type", "severity"}),
	}
}

// AuditObserver decorates an audit sink and counts every event it sees.
// Wrapping the sink keeps the services free of metrics plumbing.
type AuditObserver struct {
	next     audit.Logger
	registry *Registry
}

func NewAuditObserver(next audit.Logger, registry *Registry) *AuditObserver {
	if next == nil {
		next = audit.NopLogger{}
	}
	return &AuditObserver{next: next, registry: registry}
}

func (o *AuditObserver) LogSecurityEvent(ctx context.Context, event audit.Event) {
	o.registry.SecurityEvents.WithLabelValues(string(event.Type), string(event.Severity)).Inc()

	switch event.Type {
	case audit.EventLoginSuccess:
		o.registry.LoginAttempts.WithLabelValues("success").Inc()
	case audit.EventLoginFailed:
		o.registry.LoginAttempts.WithLabelValues("failed").Inc()
	case audit.EventLoginLocked:
		o.registry.LoginAttempts.WithLabelValues("locked").Inc()
	case audit.EventAPIRateLimited, audit.EventUploadRateLimited:
		o.registry.RateLimitHits.Inc()
	case audit.EventPaymentFraudDetected:
		o.registry.FraudDetections.Inc()
		o.observeFraudScore(event)
	case audit.EventPaymentAssessed:
		o.observeFraudScore(event)
	case audit.EventUploadRejected:
		o.registry.UploadOutcomes.WithLabelValues("rejected").Inc()
	case audit.EventUploadSanitized:
		o.registry.UploadOutcomes.WithLabelValues("sanitized").Inc()
	case audit.EventConsentGranted:
		o.registry.ConsentChanges.WithLabelValues("granted").Inc()
	case audit.EventConsentRevoked:
		o.registry.ConsentChanges.WithLabelValues("revoked").Inc()
	}

	o.next.LogSecurityEvent(ctx, event)
}

// observeFraudScore records the score detail carried by payment assessment
// events. Events that passed through JSON carry it as float64.
func (o *AuditObserver) observeFraudScore(event audit.Event) {
	switch score := event.Details["score"].(type) {
	case int:
		o.registry.FraudScore.Observe(float64(score))
	case float64:
		o.registry.FraudScore.Observe(score)
	}
}
