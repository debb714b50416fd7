// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"time"
)

// FuncChecker adapts a function to Checker.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string                          { return c.name }
func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// Pinger is anything with a connectivity probe (Redis, upstream relay).
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingChecker marks a component unhealthy when its ping fails. Optional
// components report degraded instead.
type PingChecker struct {
	name     string
	pinger   Pinger
	timeout  time.Duration
	optional bool
}

func NewPingChecker(name string, p Pinger, optional bool) *PingChecker {
	return &PingChecker{name: name, pinger: p, timeout: 2 * time.Second, optional: optional}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.pinger.HealthCheck(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SourcesChecker reports on the configured source list.
type SourcesChecker struct {
	count func() int
}

func NewSourcesChecker(count func() int) *SourcesChecker {
	return &SourcesChecker{count: count}
}

func (c *SourcesChecker) Name() string { return "sources" }

func (c *SourcesChecker) Check(context.Context) CheckResult {
	n := c.count()
	if n == 0 {
		return CheckResult{Status: StatusUnhealthy, Message: "no sources configured"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d sources", n)}
}

// ScanChecker reports on the most recent background health scan.
// A scan that has never completed is not an error.
type ScanChecker struct {
	last   func() (finished time.Time, working int, err error)
	maxAge time.Duration
	now    func() time.Time
}

func NewScanChecker(last func() (time.Time, int, error), maxAge time.Duration) *ScanChecker {
	return &ScanChecker{last: last, maxAge: maxAge, now: time.Now}
}

func (c *ScanChecker) Name() string { return "last_scan" }

func (c *ScanChecker) Check(context.Context) CheckResult {
	finished, working, err := c.last()
	switch {
	case finished.IsZero():
		return CheckResult{Status: StatusHealthy, Message: "no scan yet"}
	case err != nil:
		return CheckResult{Status: StatusDegraded, Error: err.Error(), Message: "last scan failed"}
	case working == 0:
		return CheckResult{Status: StatusDegraded, Message: "last scan found no working sources"}
	case c.maxAge > 0 && c.now().Sub(finished) > c.maxAge:
		return CheckResult{Status: StatusDegraded, Message: "last scan is stale"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d working sources", working)}
}
