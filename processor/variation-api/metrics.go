package variationapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on the default registry so the shared
// /metrics handler picks them up without extra wiring.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doppel_requests_total",
		Help: "Variation requests by requester and outcome.",
	}, []string{"requester", "outcome"})

	identitiesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doppel_identities_processed_total",
		Help: "Identities run through the variation pipeline.",
	})

	variationsBySource = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doppel_variations_total",
		Help: "Name variations produced, by generation source.",
	}, []string{"source"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doppel_request_duration_seconds",
		Help:    "End-to-end variation request duration.",
		Buckets: prometheus.DefBuckets,
	})

	collaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doppel_collaborator_failures_total",
		Help: "Failures of external collaborators (llm, geocode).",
	}, []string{"collaborator"})
)
