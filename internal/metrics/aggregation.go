// SPDX-License-Identifier: MIT

// Package metrics registers the prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aggregationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerialviews_aggregation_runs_total",
		Help: "Aggregation runs by result",
	}, []string{"result"}) // result=ok|empty

	aggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aerialviews_aggregation_duration_seconds",
		Help:    "Wall time of one aggregation run",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	sourceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerialviews_source_fetch_errors_total",
		Help: "Source failures absorbed by the aggregator, by stage",
	}, []string{"source", "stage"}) // stage=prepare|media|metadata

	sourceItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aerialviews_source_items",
		Help: "Items returned by each source in the last run",
	}, []string{"source"})

	playlistItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aerialviews_playlist_items",
		Help: "Items in the current playlist by kind",
	}, []string{"kind"})

	duplicatesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aerialviews_duplicates_removed_total",
		Help: "Items dropped as duplicates",
	})

	safetyNetTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aerialviews_timeofday_safety_net_total",
		Help: "Runs where the time-of-day filter was discarded to avoid an empty video list",
	})
)

// Aggregation implements the aggregator recorder on the global registry.
type Aggregation struct{}

// RunFinished records one completed run.
func (Aggregation) RunFinished(d time.Duration, videos, images int) {
	result := "ok"
	if videos+images == 0 {
		result = "empty"
	}
	aggregationRuns.WithLabelValues(result).Inc()
	aggregationDuration.Observe(d.Seconds())
	playlistItems.WithLabelValues("video").Set(float64(videos))
	playlistItems.WithLabelValues("image").Set(float64(images))
}

// SourceFailed counts an absorbed source error.
func (Aggregation) SourceFailed(source, stage string) {
	sourceFetchErrors.WithLabelValues(source, stage).Inc()
}

// SourceItems records the item count of a source.
func (Aggregation) SourceItems(source string, n int) {
	sourceItems.WithLabelValues(source).Set(float64(n))
}

// DuplicatesRemoved adds to the dedup counter.
func (Aggregation) DuplicatesRemoved(n int) {
	if n > 0 {
		duplicatesRemoved.Add(float64(n))
	}
}

// SafetyNet counts a discarded time-of-day filter.
func (Aggregation) SafetyNet() {
	safetyNetTotal.Inc()
}
