// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSearcher returns per-query results once the query's gate is released.
type gatedSearcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
}

func newGatedSearcher(queries ...string) *gatedSearcher {
	g := &gatedSearcher{gates: make(map[string]chan struct{}), started: make(chan string, 16)}
	for _, q := range queries {
		g.gates[q] = make(chan struct{})
	}
	return g
}

func (g *gatedSearcher) Search(ctx context.Context, src cms.SourceEndpoint, query string) ([]cms.MediaRecord, error) {
	g.mu.Lock()
	gate := g.gates[query]
	g.mu.Unlock()
	g.started <- query
	select {
	case <-gate:
		return []cms.MediaRecord{{ID: query, Title: "Result for " + query}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSession_LastQueryWins(t *testing.T) {
	g := newGatedSearcher("q1", "q2")
	s := NewSession(NewEngine(g))
	sources := []cms.SourceEndpoint{src("a", "A")}

	var published []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { published = append(published, snap) })
	defer unsubscribe()

	q1err := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "q1", sources)
		q1err <- err
	}()
	require.Equal(t, "q1", <-g.started)

	q2done := make(chan []cms.MediaRecord, 1)
	go func() {
		recs, err := s.Search(context.Background(), "q2", sources)
		assert.NoError(t, err)
		q2done <- recs
	}()

	assert.ErrorIs(t, <-q1err, ErrSuperseded, "starting q2 cancels q1")
	require.Equal(t, "q2", <-g.started)
	close(g.gates["q2"])

	recs := <-q2done
	require.Len(t, recs, 1)
	assert.Equal(t, "q2", recs[0].ID)

	snap := s.Results()
	assert.Equal(t, "q2", snap.Query)
	assert.Equal(t, StateReady, snap.State)

	for _, p := range published {
		if p.State != StateLoading {
			assert.Equal(t, "q2", p.Query, "stale query must never publish results")
		}
	}
}

func TestSession_StaleCompletionDiscarded(t *testing.T) {
	// q1 completes after q2 started but its context was already canceled.
	g := newGatedSearcher("q1", "q2")
	close(g.gates["q2"])
	s := NewSession(NewEngine(g))
	sources := []cms.SourceEndpoint{src("a", "A")}

	q1err := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "q1", sources)
		q1err <- err
	}()
	<-g.started

	_, err := s.Search(context.Background(), "q2", sources)
	require.NoError(t, err)
	<-g.started

	close(g.gates["q1"])
	assert.ErrorIs(t, <-q1err, ErrSuperseded)
	assert.Equal(t, "q2", s.Results().Query)
}

func TestSession_EmptyState(t *testing.T) {
	f := &fakeSearcher{results: map[string]func(context.Context, string) ([]cms.MediaRecord, error){"a": returns()}}
	s := NewSession(NewEngine(f))

	recs, err := s.Search(context.Background(), "nothing", []cms.SourceEndpoint{src("a", "A")})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, StateEmpty, s.Results().State)
}

func TestSession_FailedState(t *testing.T) {
	s := NewSession(NewEngine(&fakeSearcher{}))
	_, err := s.Search(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrEmptySourceSet)
	snap := s.Results()
	assert.Equal(t, StateFailed, snap.State)
	assert.ErrorIs(t, snap.Err, ErrEmptySourceSet)
}

func TestSession_CancelStopsInFlight(t *testing.T) {
	s := NewSession(NewEngine(&fakeSearcher{}))
	done := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "x", []cms.SourceEndpoint{src("a", "A")})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	s.Cancel()
	assert.ErrorIs(t, <-done, ErrSuperseded)
}

func TestSessions_GetAndSweep(t *testing.T) {
	r := NewSessions(NewEngine(&fakeSearcher{}))
	now := time.Now()
	r.now = func() time.Time { return now }

	a := r.Get("a")
	assert.Same(t, a, r.Get("a"))
	r.Get("b")
	assert.Equal(t, 2, r.Len())

	now = now.Add(time.Hour)
	r.Get("b")
	assert.Equal(t, 1, r.Sweep(30*time.Minute))
	assert.Equal(t, 1, r.Len())
}
