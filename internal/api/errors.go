// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/relay"
	"github.com/ManuGH/vodagg/internal/search"
)

// ErrScanInProgress is returned when a scan is requested while one runs.
var ErrScanInProgress = errors.New("scan already in progress")

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, kind, detail string) {
	writeJSON(w, code, errorBody{Error: kind, Detail: detail, RequestID: log.RequestIDFromContext(r.Context())})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, "bad_request", detail)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := classify(err)
	logger := log.WithComponentFromContext(r.Context(), "api")
	ev := logger.Debug()
	if code >= 500 {
		ev = logger.Warn()
	}
	ev.Err(err).Str(log.FieldEvent, "api.error").Int("status", code).Str("path", r.URL.Path).Msg("request failed")
	writeProblem(w, r, code, kind, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, search.ErrEmptySourceSet):
		return http.StatusBadRequest, "no_sources"
	case errors.Is(err, search.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, ErrScanInProgress):
		return http.StatusConflict, "scan_in_progress"
	case errors.Is(err, cms.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, relay.ErrCanceled), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	case errors.Is(err, relay.ErrAllStrategiesFailed) && errors.Is(err, relay.ErrTimeout):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case errors.Is(err, relay.ErrInvalidPayload):
		return http.StatusBadGateway, "invalid_payload"
	case errors.Is(err, relay.ErrAllStrategiesFailed):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}
