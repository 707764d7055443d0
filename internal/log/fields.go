// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldSessionID = "session_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Media / source fields
	FieldSource     = "source"
	FieldSourceType = "source_type"
	FieldKind       = "kind"
	FieldCount      = "count"
	FieldPeriod     = "period"

	// Streaming fields
	FieldBackend = "backend"
	FieldCause   = "cause"
	FieldOffset  = "offset"
	FieldLength  = "length"

	// Path / URL fields
	FieldPath = "path"
	FieldURI  = "uri"
	FieldURL  = "url"
)
