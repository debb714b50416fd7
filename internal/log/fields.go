// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldQueryID   = "query_id"
	FieldSessionID = "session_id"
	FieldHandle    = "handle"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Source fields
	FieldSourceAPI  = "source_api"
	FieldSourceName = "source_name"
	FieldStrategy   = "strategy"
	FieldAttempt    = "attempt"

	// Path / URL fields
	FieldURL         = "url"
	FieldTarget      = "target"
	FieldPlaylistURL = "playlist_url"
)
