// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by vodagg spans.
const (
	SearchSourcesKey  = "search.sources"
	SearchQueryLenKey = "search.query_len"
	SearchResultsKey  = "search.results"

	PlaylistDepthKey    = "playlist.depth"
	PlaylistSegmentsKey = "playlist.segments"
	PlaylistRemovedKey  = "playlist.removed"
	PlaylistRatioKey    = "playlist.dominant_ratio"
	PlaylistMasterKey   = "playlist.via_master"

	ErrorTypeKey = "error.type"
)

// SearchAttributes describes an aggregate search before it runs. The
// query text itself is never recorded.
func SearchAttributes(sources, queryLen int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(SearchSourcesKey, sources),
		attribute.Int(SearchQueryLenKey, queryLen),
	}
}

// SanitizeAttributes describes a finished sanitization.
func SanitizeAttributes(segments, removed int, ratio float64, viaMaster bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(PlaylistSegmentsKey, segments),
		attribute.Int(PlaylistRemovedKey, removed),
		attribute.Float64(PlaylistRatioKey, ratio),
		attribute.Bool(PlaylistMasterKey, viaMaster),
	}
}

// ErrorAttributes labels a failed span with a coarse error class.
func ErrorAttributes(errType string) []attribute.KeyValue {
	if errType == "" {
		return nil
	}
	return []attribute.KeyValue{attribute.String(ErrorTypeKey, errType)}
}
