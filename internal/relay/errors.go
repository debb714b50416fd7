// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/vodagg/internal/resilience"
)

var (
	// ErrTimeout means an attempt exceeded its per-attempt deadline, or the
	// caller's deadline expired.
	ErrTimeout = errors.New("network timeout")
	// ErrNetwork covers transport errors and non-2xx responses.
	ErrNetwork = errors.New("network failure")
	// ErrInvalidPayload means the body was unusable, such as an HTML error page
	// served in place of data.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrCanceled means the caller canceled the fetch. It is never reported
	// as a timeout; an expired caller deadline is ErrTimeout.
	ErrCanceled = errors.New("fetch canceled")
	// ErrAllStrategiesFailed is wrapped by every FetchError.
	ErrAllStrategiesFailed = errors.New("all fetch strategies failed")
)

// AttemptError records why one strategy failed for one target.
type AttemptError struct {
	Strategy string
	Status   int    // HTTP status, 0 if none was received
	Title    string // <title> of an HTML error page, if any
	Err      error
}

func (e *AttemptError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "strategy %s", e.Strategy)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Title != "" {
		fmt.Fprintf(&b, " (page %q)", e.Title)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *AttemptError) Unwrap() error { return e.Err }

// FetchError is returned once every strategy has failed. It unwraps to both
// ErrAllStrategiesFailed and the last attempt's failure.
type FetchError struct {
	Target   string
	Attempts []*AttemptError
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %d strategies failed, last: %v", e.Target, len(e.Attempts), e.Last)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrAllStrategiesFailed, e.Last}
}

// outcome maps an attempt failure to its metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "network"
	}
}
