package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcomes.
const (
	OutcomeStored      = "stored"
	OutcomeUnsupported = "unsupported"
	OutcomeInvalid     = "invalid"
	OutcomeMalformed   = "malformed"
	OutcomeRejected    = "rejected"
	OutcomeTooLarge    = "too_large"
	OutcomeError       = "error"
)

var (
	// WebhookDeliveriesTotal counts POST /webhook requests by event type and outcome.
	// type is empty until a delivery has been classified.
	WebhookDeliveriesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of webhook deliveries by event type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// SignatureRejectionsTotal counts deliveries whose signature did not verify.
	SignatureRejectionsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_rejections_total",
			Help:      "Total number of deliveries rejected for a bad or missing signature",
		},
	)

	// EventsPublishedTotal counts fan-out attempts by result (success|error).
	EventsPublishedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of stored events published downstream",
		},
		[]string{"type", "result"},
	)

	// RateLimitedTotal counts requests refused by the limiter, per tier.
	RateLimitedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests refused by the rate limiter",
		},
		[]string{"tier"},
	)
)

// RecordDelivery counts one webhook delivery.
func RecordDelivery(eventType, outcome string) {
	WebhookDeliveriesTotal.WithLabelValues(eventType, outcome).Inc()
	if outcome == OutcomeRejected {
		SignatureRejectionsTotal.Inc()
	}
}

// RecordPublish counts one publish attempt.
func RecordPublish(eventType string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EventsPublishedTotal.WithLabelValues(eventType, result).Inc()
}
