// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	RunIDKey        = "aggregation.run_id"
	SourceCountKey  = "aggregation.sources"
	VideoCountKey   = "aggregation.videos"
	ImageCountKey   = "aggregation.images"
	DuplicatesKey   = "aggregation.duplicates_removed"
	PeriodKey       = "aggregation.period"
	SafetyNetKey    = "aggregation.safety_net"
	SourceNameKey   = "source.name"
	SourceTypeKey   = "source.type"
	SourceStageKey  = "source.stage"
	SourceItemsKey  = "source.items"
	StreamBackend   = "stream.backend"
	StreamOffsetKey = "stream.offset"
	StreamLengthKey = "stream.length"
	ErrorKey        = "error"
	ErrorTypeKey    = "error.type"
)

// AggregationAttributes describes the result of one aggregation run.
func AggregationAttributes(runID string, sources, videos, images, duplicates int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.Int(SourceCountKey, sources),
		attribute.Int(VideoCountKey, videos),
		attribute.Int(ImageCountKey, images),
		attribute.Int(DuplicatesKey, duplicates),
	}
}

// SourceAttributes describes one source task. Empty values are omitted.
func SourceAttributes(name, sourceType, stage string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if name != "" {
		attrs = append(attrs, attribute.String(SourceNameKey, name))
	}
	if sourceType != "" {
		attrs = append(attrs, attribute.String(SourceTypeKey, sourceType))
	}
	if stage != "" {
		attrs = append(attrs, attribute.String(SourceStageKey, stage))
	}
	return attrs
}

// StreamAttributes describes a session open.
func StreamAttributes(backend string, offset, length int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StreamBackend, backend),
		attribute.Int64(StreamOffsetKey, offset),
		attribute.Int64(StreamLengthKey, length),
	}
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
