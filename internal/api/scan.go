// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/scanner"
)

// ScanReport is the outcome of a scan request.
type ScanReport struct {
	Result  scanner.Result      `json:"result"`
	Plan    scanner.CleanupPlan `json:"plan"`
	Applied bool                `json:"applied"`
}

// RunScan probes every configured source, disabled ones included, and
// derives a cleanup plan. With apply the plan is written to the source
// store. Only one scan runs at a time.
func (s *Server) RunScan(ctx context.Context, apply bool) (ScanReport, error) {
	if !s.scanMu.TryLock() {
		return ScanReport{}, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	all := s.deps.Sources.All()
	res, err := s.deps.Scanner.Scan(ctx, all, nil)
	s.recordScan(res, err)
	if err != nil {
		return ScanReport{Result: res}, err
	}

	rep := ScanReport{Result: res, Plan: scanner.Plan(res, all, s.deps.Sources.Disabled())}
	if apply && !rep.Plan.Empty() {
		if err := s.deps.Sources.Apply(ctx, rep.Plan); err != nil {
			return rep, fmt.Errorf("apply cleanup plan: %w", err)
		}
		rep.Applied = true
	}
	return rep, nil
}

func (s *Server) recordScan(res scanner.Result, err error) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastScan = res.Finished
	if s.lastScan.IsZero() {
		s.lastScan = time.Now()
	}
	s.lastWorking = len(res.WorkingSources)
	s.lastErr = err
}

// LastScan reports when the last scan finished, how many sources worked,
// and its error. The zero time means no scan ran yet.
func (s *Server) LastScan() (time.Time, int, error) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastScan, s.lastWorking, s.lastErr
}

// ScanEvery runs RunScan on a ticker until ctx is done, applying plans
// when apply is set.
func (s *Server) ScanEvery(ctx context.Context, interval time.Duration, apply bool) {
	logger := log.WithComponentFromContext(ctx, "scanner")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := s.RunScan(ctx, apply)
			if err != nil {
				logger.Warn().Err(err).Str(log.FieldEvent, "scan.periodic_failed").Msg("periodic scan failed")
				continue
			}
			logger.Info().
				Str(log.FieldEvent, "scan.periodic").
				Int("working", len(rep.Result.WorkingSources)).
				Int("dead", len(rep.Result.DeadAPIs)).
				Bool("applied", rep.Applied).
				Msg("periodic scan finished")
		}
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	apply := r.URL.Query().Get("apply") == "1"
	rep, err := s.RunScan(r.Context(), apply)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
