package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Page fetch outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finn_pages_fetched_total",
			Help: "Total number of result pages requested, by outcome",
		},
		[]string{"outcome"},
	)

	ListingsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finn_listings_extracted_total",
			Help: "Total number of listings extracted from result pages",
		},
	)

	ExtractionAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finn_extraction_anomalies_total",
			Help: "Total number of per-page extraction anomalies",
		},
		[]string{"kind"},
	)

	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finn_searches_total",
			Help: "Total number of searches run, by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finn_search_duration_seconds",
			Help:    "Duration of a complete search in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"category"},
	)
)
