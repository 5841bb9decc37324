package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source outcome metrics
	SourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tesla_sources_total",
			Help: "Total number of source URLs processed, by outcome",
		},
		[]string{"status"},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tesla_extraction_duration_seconds",
			Help:    "Time spent extracting one source, retries included",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	// Listing metrics
	ListingsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tesla_listings_extracted_total",
			Help: "Total number of normalised listings produced per source domain",
		},
		[]string{"source"},
	)

	ListingsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tesla_listings_dropped_total",
			Help: "Total number of raw listings rejected during normalisation",
		},
		[]string{"reason"},
	)

	LastDigestListings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tesla_digest_last_total_listings",
			Help: "Number of listings found by the most recent digest",
		},
	)
)

// WriteTextfile dumps the default registry in the node-exporter textfile
// format so a cron-driven CLI run can still be scraped.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
