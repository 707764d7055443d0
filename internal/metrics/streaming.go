// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerialviews_stream_bytes_total",
		Help: "Bytes delivered by streaming sessions",
	}, []string{"backend"})

	streamOpenErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerialviews_stream_open_errors_total",
		Help: "Failed session opens by cause",
	}, []string{"backend", "cause"})

	streamTruncations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerialviews_stream_truncations_total",
		Help: "Sessions whose transport ended before the announced length",
	}, []string{"backend"})
)

// Streaming implements the stream recorder on the global registry.
type Streaming struct{}

func (Streaming) AddBytes(backend string, n int) {
	streamBytes.WithLabelValues(backend).Add(float64(n))
}

func (Streaming) OpenFailed(backend, cause string) {
	streamOpenErrors.WithLabelValues(backend, cause).Inc()
}

func (Streaming) Truncated(backend string) {
	streamTruncations.WithLabelValues(backend).Inc()
}
