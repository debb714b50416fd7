// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package scanner probes catalog sources one at a time and classifies
// them as working, dead or duplicate. It performs no persistence; callers
// turn a Result into a CleanupPlan and hand that to the sources store.
package scanner

import (
	"time"

	"github.com/ManuGH/vodagg/internal/cms"
)

// Status of a single probed source.
type Status string

const (
	StatusWorking   Status = "working"
	StatusDead      Status = "dead"
	StatusDuplicate Status = "duplicate"
)

// ProgressEvent is emitted after every source, probed or skipped.
type ProgressEvent struct {
	Index       int    `json:"index"` // 1-based
	Total       int    `json:"total"`
	CurrentName string `json:"currentName"`
	Status      Status `json:"status"`
}

// Result is the outcome of a full scan.
type Result struct {
	DuplicateCount int                  `json:"duplicateCount"`
	DeadAPIs       []string             `json:"deadApis"`
	WorkingSources []cms.SourceEndpoint `json:"workingSources"`
	Started        time.Time            `json:"started"`
	Finished       time.Time            `json:"finished"`
}

// Outcome is the terminal value of a Start stream.
type Outcome struct {
	Result Result
	Err    error
}

// CleanupPlan is the remediation derived from a Result: dead built-in
// sources get disabled, dead custom sources get dropped, and Working is
// the new working set in scan order.
type CleanupPlan struct {
	DisableBuiltins []string             `json:"disableBuiltins"`
	DropCustom      []string             `json:"dropCustom"`
	Working         []cms.SourceEndpoint `json:"working"`
}

// Empty reports whether applying the plan would change nothing.
func (p CleanupPlan) Empty() bool {
	return len(p.DisableBuiltins) == 0 && len(p.DropCustom) == 0
}
