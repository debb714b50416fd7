// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/metrics"
	"github.com/ManuGH/vodagg/internal/platform/httpx"
	"github.com/ManuGH/vodagg/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrRedirectLoopExceeded means master playlists nested deeper than the limit.
	ErrRedirectLoopExceeded = errors.New("master playlist nesting too deep")
	// ErrNoVariants means a master playlist had no usable variant URI.
	ErrNoVariants = errors.New("master playlist has no variants")
)

const (
	DefaultTimeout  = 8 * time.Second
	DefaultMaxDepth = 3
	// DefaultMinRatio is the dominant-cluster share below which a playlist
	// is left alone.
	DefaultMinRatio = 0.4

	maxPlaylistBytes = 4 << 20
)

// Result is a sanitized media playlist.
type Result struct {
	Content      string
	RemovedCount int
	// BaseURL is the media playlist URL the content was resolved against.
	BaseURL   string
	ViaMaster bool
	Segments  int
	Dominant  Fingerprint
	Ratio     float64

	source string // media playlist as fetched
}

// Sanitizer strips minority-origin segments from HLS media playlists.
// It fetches playlists directly, not through the relay chain.
type Sanitizer struct {
	client    *http.Client
	timeout   time.Duration
	maxDepth  int
	minRatio  float64
	store     *Store
	handleURL func(Handle) string
	tracer    trace.Tracer
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

func WithHTTPClient(c *http.Client) Option { return func(s *Sanitizer) { s.client = c } }

func WithTimeout(d time.Duration) Option {
	return func(s *Sanitizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStore lets Resolve publish sanitized playlists; urlFor maps a handle
// to the URL the player should load.
func WithStore(st *Store, urlFor func(Handle) string) Option {
	return func(s *Sanitizer) {
		s.store = st
		s.handleURL = urlFor
	}
}

func NewSanitizer(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		timeout:  DefaultTimeout,
		maxDepth: DefaultMaxDepth,
		minRatio: DefaultMinRatio,
		tracer:   telemetry.Tracer("github.com/ManuGH/vodagg/internal/hls"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = httpx.NewClient(s.timeout)
	}
	return s
}

// Sanitize fetches playlistURL, follows master playlists to their highest
// bandwidth variant, and removes segments outside the dominant fingerprint.
func (s *Sanitizer) Sanitize(ctx context.Context, playlistURL string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "playlist.sanitize")
	defer span.End()

	res, err := s.sanitize(ctx, playlistURL, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sanitize failed")
		return Result{}, err
	}
	span.SetAttributes(telemetry.SanitizeAttributes(res.Segments, res.RemovedCount, res.Ratio, res.ViaMaster)...)
	return res, nil
}

func (s *Sanitizer) sanitize(ctx context.Context, playlistURL string, depth int) (Result, error) {
	if depth > s.maxDepth {
		return Result{}, fmt.Errorf("%w: depth %d at %s", ErrRedirectLoopExceeded, depth, playlistURL)
	}

	text, base, err := s.fetch(ctx, playlistURL)
	if err != nil {
		return Result{}, err
	}
	doc := ParseDocument(text)

	if doc.IsMaster() {
		v, ok := BestVariant(doc.Variants())
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrNoVariants, playlistURL)
		}
		ref, err := url.Parse(v.URI)
		if err != nil {
			return Result{}, fmt.Errorf("variant uri %q: %w", v.URI, err)
		}
		res, err := s.sanitize(ctx, base.ResolveReference(ref).String(), depth+1)
		if err != nil {
			return Result{}, err
		}
		if !res.ViaMaster && res.Segments > 0 && res.Ratio >= s.minRatio {
			res.RemovedCount++
		}
		res.ViaMaster = true
		return res, nil
	}

	return s.strip(text, doc, base)
}

// strip applies the fingerprint clustering to a media playlist.
func (s *Sanitizer) strip(text string, doc Document, base *url.URL) (Result, error) {
	res := Result{Content: text, BaseURL: base.String(), source: text}

	type segment struct {
		line int
		abs  string
		fp   Fingerprint
	}
	var segs []segment
	counts := make(map[Fingerprint]int)
	for i, line := range doc.Lines {
		if !isURILine(line) {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(line))
		if err != nil {
			return Result{}, fmt.Errorf("segment uri %q: %w", line, err)
		}
		abs := base.ResolveReference(ref)
		fp := FingerprintOf(abs)
		segs = append(segs, segment{line: i, abs: abs.String(), fp: fp})
		counts[fp]++
	}
	res.Segments = len(segs)
	if len(segs) == 0 {
		return res, nil
	}

	// first fingerprint to reach the max count wins ties
	var dominant Fingerprint
	maxCount := 0
	for _, sg := range segs {
		if c := counts[sg.fp]; c > maxCount {
			dominant, maxCount = sg.fp, c
		}
	}
	res.Dominant = dominant
	res.Ratio = float64(maxCount) / float64(len(segs))
	if res.Ratio < s.minRatio {
		return res, nil
	}

	removed := make([]bool, len(doc.Lines))
	for _, sg := range segs {
		if sg.fp == dominant {
			continue
		}
		removed[sg.line] = true
		for j := sg.line - 1; j >= 0 && !removed[j]; j-- {
			t := strings.TrimSpace(doc.Lines[j])
			if t != "" && !isSegmentTag(t) {
				break
			}
			removed[j] = true
		}
	}

	abs := make(map[int]string, len(segs))
	for _, sg := range segs {
		abs[sg.line] = sg.abs
	}
	out := make([]string, 0, len(doc.Lines))
	for i, line := range doc.Lines {
		if removed[i] {
			continue
		}
		t := strings.TrimSpace(line)
		switch {
		case abs[i] != "":
			out = append(out, abs[i])
		case strings.HasPrefix(t, tagKey+":"), strings.HasPrefix(t, tagMap+":"):
			out = append(out, rewriteURIAttr(line, base))
		default:
			out = append(out, line)
		}
	}

	res.Content = Document{Lines: out}.String()
	res.RemovedCount = len(segs) - maxCount
	return res, nil
}

func (s *Sanitizer) fetch(ctx context.Context, playlistURL string) (string, *url.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, fmt.Errorf("fetch playlist %s: status %d", playlistURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes+1))
	if err != nil {
		return "", nil, err
	}
	if len(body) > maxPlaylistBytes {
		return "", nil, fmt.Errorf("playlist %s exceeds %d bytes", playlistURL, maxPlaylistBytes)
	}
	// redirects move the base
	return string(body), resp.Request.URL, nil
}

// Resolution is the playback decision for one playlist URL.
type Resolution struct {
	PlayURL   string `json:"playUrl"`
	Sanitized bool   `json:"sanitized"`
	Removed   int    `json:"removed"`
}

// Resolve is the best-effort entry point for playback: it returns the URL
// the player should load and whether it is a sanitized copy. Any failure,
// or nothing to strip, yields the original URL.
func (s *Sanitizer) Resolve(ctx context.Context, playlistURL string) (string, bool) {
	r := s.ResolveDetail(ctx, playlistURL)
	return r.PlayURL, r.Sanitized
}

// ResolveDetail is Resolve with the removed segment count.
func (s *Sanitizer) ResolveDetail(ctx context.Context, playlistURL string) Resolution {
	logger := log.WithComponentFromContext(ctx, "sanitizer").With().Str(log.FieldPlaylistURL, playlistURL).Logger()
	original := Resolution{PlayURL: playlistURL}

	res, err := s.Sanitize(ctx, playlistURL)
	switch {
	case err != nil:
		metrics.RecordSanitize("failed", 0)
		logger.Debug().Err(err).Str(log.FieldEvent, "sanitize.failed").Msg("sanitization failed, playing original")
		return original
	case res.Segments > 0 && res.Ratio < s.minRatio:
		metrics.RecordSanitize("low_ratio", 0)
		logger.Debug().Float64("ratio", res.Ratio).Str(log.FieldEvent, "sanitize.low_ratio").Msg("no dominant origin, playing original")
		return original
	case res.RemovedCount == 0 || s.store == nil:
		metrics.RecordSanitize("unchanged", 0)
		return original
	}

	h := s.store.Put(res.Content)
	before, after := Summarize(res.source), Summarize(res.Content)
	metrics.RecordSanitize("stripped", res.RemovedCount)
	logger.Info().
		Str(log.FieldEvent, "sanitize.stripped").
		Str(log.FieldHandle, string(h)).
		Int("removed", res.RemovedCount).
		Int("segments", res.Segments).
		Float64("ratio", res.Ratio).
		Dur("removed_duration", before.TotalDuration-after.TotalDuration).
		Bool("via_master", res.ViaMaster).
		Msg("playlist sanitized")
	return Resolution{PlayURL: s.handleURL(h), Sanitized: true, Removed: res.RemovedCount}
}
