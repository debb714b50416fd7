// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package relay fetches third-party URLs through an ordered chain of
// transport strategies (direct, then public or local relays), moving to the
// next strategy whenever one times out, fails, or hands back an HTML page
// in place of data.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/metrics"
	"github.com/ManuGH/vodagg/internal/platform/httpx"
	"github.com/ManuGH/vodagg/internal/resilience"
)

// Kind selects the per-attempt timeout.
type Kind int

const (
	KindAPI Kind = iota
	KindPlaylist
)

func (k Kind) String() string {
	if k == KindPlaylist {
		return "playlist"
	}
	return "api"
}

const (
	DefaultAPITimeout      = 15 * time.Second
	DefaultPlaylistTimeout = 8 * time.Second
	// DefaultMaxBody caps a single response body.
	DefaultMaxBody int64 = 8 << 20
)

// Options tunes a Client. Zero values select defaults.
type Options struct {
	HTTPClient      *http.Client
	APITimeout      time.Duration
	PlaylistTimeout time.Duration
	// HTMLHosts are hosts whose legitimate responses are HTML.
	HTMLHosts []string
	MaxBody   int64
	// BreakerThreshold enables a circuit breaker per relay strategy when > 0.
	// The direct strategy never gets one: its failures belong to the target.
	BreakerThreshold int
	BreakerReset     time.Duration
}

// Client runs the fallback chain. The strategy list is fixed at
// construction and shared by all concurrent calls.
type Client struct {
	strategies []Strategy
	breakers   []*resilience.CircuitBreaker
	http       *http.Client
	timeouts   [2]time.Duration
	htmlHosts  hostAllowList
	maxBody    int64
}

// NewClient builds a Client over strategies, tried in order.
func NewClient(strategies []Strategy, opts Options) (*Client, error) {
	if len(strategies) == 0 {
		return nil, errors.New("relay: at least one strategy is required")
	}
	c := &Client{
		strategies: append([]Strategy(nil), strategies...),
		breakers:   make([]*resilience.CircuitBreaker, len(strategies)),
		http:       opts.HTTPClient,
		timeouts:   [2]time.Duration{opts.APITimeout, opts.PlaylistTimeout},
		htmlHosts:  newHostAllowList(opts.HTMLHosts),
		maxBody:    opts.MaxBody,
	}
	if c.http == nil {
		c.http = httpx.NewClient(DefaultAPITimeout)
	}
	if c.timeouts[KindAPI] <= 0 {
		c.timeouts[KindAPI] = DefaultAPITimeout
	}
	if c.timeouts[KindPlaylist] <= 0 {
		c.timeouts[KindPlaylist] = DefaultPlaylistTimeout
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultMaxBody
	}
	if opts.BreakerThreshold > 0 {
		for i, s := range c.strategies {
			if s.IsDirect() {
				continue
			}
			c.breakers[i] = resilience.NewCircuitBreaker("relay:"+s.Name, opts.BreakerThreshold, opts.BreakerReset,
				resilience.WithNeutralErrors(callerDone))
		}
	}
	return c, nil
}

// Strategies returns a copy of the configured chain.
func (c *Client) Strategies() []Strategy {
	return append([]Strategy(nil), c.strategies...)
}

// Fetch returns the body of target from the first strategy that succeeds.
// When all fail the error is a *FetchError wrapping the last failure. When
// ctx ends no further strategy is tried: cancellation wraps ErrCanceled, an
// expired deadline wraps ErrTimeout, and both wrap ctx.Err().
func (c *Client) Fetch(ctx context.Context, target string, kind Kind) (string, error) {
	logger := log.WithComponentFromContext(ctx, "relay").With().
		Str(log.FieldTarget, target).
		Str("kind", kind.String()).
		Logger()

	var attempts []*AttemptError
	for i, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return "", stopped(ctx)
		}

		start := time.Now()
		body, aerr := c.attempt(ctx, i, s, target, kind)
		if aerr == nil {
			metrics.RecordRelayAttempt(s.Name, "success", time.Since(start))
			logger.Debug().
				Str(log.FieldEvent, "relay.attempt.ok").
				Str(log.FieldStrategy, s.Name).
				Int(log.FieldAttempt, i+1).
				Dur("duration", time.Since(start)).
				Msg("fetch succeeded")
			return body, nil
		}
		if ctx.Err() != nil {
			err := stopped(ctx)
			metrics.RecordRelayAttempt(s.Name, outcome(err), time.Since(start))
			return "", err
		}

		metrics.RecordRelayAttempt(s.Name, outcome(aerr.Err), time.Since(start))
		logger.Debug().
			Str(log.FieldEvent, "relay.attempt.failed").
			Str(log.FieldStrategy, s.Name).
			Int(log.FieldAttempt, i+1).
			Err(aerr).
			Msg("fetch strategy failed, trying next")
		attempts = append(attempts, aerr)
	}

	metrics.IncRelayExhausted(kind.String())
	last := attempts[len(attempts)-1]
	logger.Warn().
		Str(log.FieldEvent, "relay.exhausted").
		Int("attempts", len(attempts)).
		Err(last).
		Msg("all fetch strategies failed")
	return "", &FetchError{Target: target, Attempts: attempts, Last: last}
}

func (c *Client) attempt(ctx context.Context, idx int, s Strategy, target string, kind Kind) (string, *AttemptError) {
	b := c.breakers[idx]
	if b == nil {
		return c.do(ctx, s, target, kind)
	}
	if !b.Allow() {
		return "", &AttemptError{Strategy: s.Name, Err: resilience.ErrCircuitOpen}
	}
	body, aerr := c.do(ctx, s, target, kind)
	if aerr != nil {
		b.Record(aerr.Err)
	} else {
		b.Record(nil)
	}
	return body, aerr
}

func (c *Client) do(parent context.Context, s Strategy, target string, kind Kind) (string, *AttemptError) {
	fail := func(status int, title string, err error) *AttemptError {
		return &AttemptError{Strategy: s.Name, Status: status, Title: title, Err: err}
	}

	ctx, cancel := context.WithTimeout(parent, c.timeouts[kind])
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Wrap(target), nil)
	if err != nil {
		return "", fail(0, "", fmt.Errorf("%w: %v", ErrNetwork, err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fail(0, "", classify(parent, ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", fail(resp.StatusCode, "", fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", fail(resp.StatusCode, "", classify(parent, ctx, err))
	}
	if int64(len(raw)) > c.maxBody {
		return "", fail(resp.StatusCode, "", fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidPayload, c.maxBody))
	}

	body := string(raw)
	if looksLikeHTML(body) && !c.htmlHosts.allows(target) {
		return "", fail(resp.StatusCode, htmlTitle(body), fmt.Errorf("%w: HTML page in place of data", ErrInvalidPayload))
	}
	return body, nil
}

// classify maps a transport error to a sentinel. A done parent is reported
// through stopped; a deadline on the attempt context is a timeout.
func classify(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return stopped(parent)
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// stopped reports why the caller's ctx ended. Only these errors wrap
// ctx.Err(); attempt timeouts do not.
func stopped(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
}

// callerDone reports whether err came from the caller's ctx ending, which
// says nothing about the strategy's health.
func callerDone(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.DeadlineExceeded)
}
