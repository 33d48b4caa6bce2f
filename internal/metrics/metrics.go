// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomePartial   = "partial"
	OutcomeDuplicate = "duplicate"
	OutcomeNoUser    = "no_user"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	InvoicesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoices_upserted_total",
		Help: "Invoices created, by source.",
	}, []string{"source"})

	ReadRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "read_repairs_total",
		Help: "Views reconstructed from legacy data and written back.",
	}, []string{"view"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
