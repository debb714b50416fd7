// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package search

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/metrics"
	"github.com/google/uuid"
)

// State is the published state of a session.
type State int

const (
	StateIdle State = iota
	StateLoading
	// StateEmpty means the query settled with no reachable results.
	StateEmpty
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Snapshot is what a session currently shows.
type Snapshot struct {
	QueryID    string
	Query      string
	State      State
	Records    []cms.MediaRecord
	Err        error
	Generation uint64
}

// Session serializes queries from one logical client: starting a query
// cancels the one in flight, and only the latest query may publish.
type Session struct {
	engine *Engine

	mu          sync.Mutex
	gen         uint64
	cancel      context.CancelFunc
	current     Snapshot
	subscribers map[int]func(Snapshot)
	nextSub     int
}

func NewSession(e *Engine) *Session {
	return &Session{engine: e, subscribers: make(map[int]func(Snapshot))}
}

// Search runs query as the session's current query. It returns
// ErrSuperseded when a newer Search started before this one settled; in
// that case nothing is published.
func (s *Session) Search(ctx context.Context, query string, sources []cms.SourceEndpoint) ([]cms.MediaRecord, error) {
	queryID := uuid.NewString()
	ctx = log.ContextWithQueryID(ctx, queryID)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.publishLocked(Snapshot{QueryID: queryID, Query: query, State: StateLoading, Generation: gen})
	s.mu.Unlock()

	recs, err := s.engine.Search(ctx, query, sources)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		metrics.IncSearchSuperseded()
		log.FromContext(ctx).Debug().
			Str(log.FieldEvent, "search.superseded").
			Str("query", query).
			Msg("discarding stale search results")
		return nil, ErrSuperseded
	}
	cancel()
	s.cancel = nil

	snap := Snapshot{QueryID: queryID, Query: query, Records: recs, Generation: gen}
	switch {
	case err != nil:
		snap.State, snap.Err = StateFailed, err
	case len(recs) == 0:
		snap.State = StateEmpty
	default:
		snap.State = StateReady
	}
	s.publishLocked(snap)
	return recs, err
}

// Results returns the latest published snapshot.
func (s *Session) Results() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers fn for every published snapshot and returns an
// unsubscribe func. fn runs with the session lock held and must not call
// back into the session.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Cancel aborts the in-flight query, if any. Its results will not publish.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func (s *Session) publishLocked(snap Snapshot) {
	s.current = snap
	for _, fn := range s.subscribers {
		fn(snap)
	}
}

// Sessions keys sessions by client-supplied id and drops idle ones.
type Sessions struct {
	engine *Engine
	mu     sync.Mutex
	m      map[string]*sessionEntry
	now    func() time.Time
}

type sessionEntry struct {
	s        *Session
	lastUsed time.Time
}

func NewSessions(e *Engine) *Sessions {
	return &Sessions{engine: e, m: make(map[string]*sessionEntry), now: time.Now}
}

// Get returns the session for id, creating it on first use.
func (r *Sessions) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[id]
	if !ok {
		e = &sessionEntry{s: NewSession(r.engine)}
		r.m[id] = e
	}
	e.lastUsed = r.now()
	return e.s
}

// Sweep cancels and forgets sessions idle for longer than maxIdle.
func (r *Sessions) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxIdle)
	n := 0
	for id, e := range r.m {
		if e.lastUsed.Before(cutoff) {
			e.s.Cancel()
			delete(r.m, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
