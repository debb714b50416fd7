// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cms

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/vodagg/internal/cache"
	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/relay"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned by Detail when the source has no such id.
var ErrNotFound = errors.New("record not found")

// Fetcher is the transport used for catalog requests; *relay.Client
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, target string, kind relay.Kind) (string, error)
}

// Client issues catalog requests against CMS endpoints.
type Client struct {
	fetcher       Fetcher
	cache         cache.Cache
	ttl           time.Duration
	detailTimeout time.Duration
	flight        singleflight.Group
	limiter       *rate.Limiter
	jitter        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCache enables detail/poster caching.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.ttl = ttl
	}
}

// WithDetailTimeout bounds a shared Detail request, which outlives the
// caller that started it.
func WithDetailTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.detailTimeout = d
		}
	}
}

// WithPosterRate paces PosterBatch lookups: at most perSecond lookups with
// up to jitter extra random delay each.
func WithPosterRate(perSecond float64, jitter time.Duration) Option {
	return func(cl *Client) {
		cl.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		cl.jitter = jitter
	}
}

// NewClient returns a catalog client over f.
func NewClient(f Fetcher, opts ...Option) *Client {
	c := &Client{
		fetcher:       f,
		ttl:           10 * time.Minute,
		detailTimeout: time.Minute,
		limiter:       rate.NewLimiter(rate.Limit(8), 1),
		jitter:        50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildURL appends query parameters to an API base, respecting an
// existing query string.
func BuildURL(apiBase string, params url.Values) string {
	sep := "?"
	if strings.Contains(apiBase, "?") {
		sep = "&"
		if strings.HasSuffix(apiBase, "?") || strings.HasSuffix(apiBase, "&") {
			sep = ""
		}
	}
	return apiBase + sep + params.Encode()
}

func (c *Client) get(ctx context.Context, src SourceEndpoint, params url.Values) (Payload, error) {
	target := BuildURL(src.APIBaseURL, params)
	body, err := c.fetcher.Fetch(ctx, target, relay.KindAPI)
	if err != nil {
		return Payload{}, err
	}
	p, err := Parse(body, src.APIBaseURL)
	if err != nil {
		return Payload{}, fmt.Errorf("%s: %w", src.Name, err)
	}
	for i := range p.Records {
		p.Records[i].SourceAPI = src.APIBaseURL
		p.Records[i].SourceName = src.Name
	}
	return p, nil
}

// List fetches the category list and first page (ac=list).
func (c *Client) List(ctx context.Context, src SourceEndpoint) (Payload, error) {
	return c.get(ctx, src, url.Values{"ac": {"list"}})
}

// ListPage fetches one page of a category (ac=list&pg=N&t=T).
func (c *Client) ListPage(ctx context.Context, src SourceEndpoint, typeID string, page int) (Payload, error) {
	params := url.Values{"ac": {"list"}, "pg": {strconv.Itoa(max(page, 1))}}
	if typeID != "" {
		params.Set("t", typeID)
	}
	return c.get(ctx, src, params)
}

// Search runs a keyword search (ac=detail&wd=Q).
func (c *Client) Search(ctx context.Context, src SourceEndpoint, query string) ([]MediaRecord, error) {
	p, err := c.get(ctx, src, url.Values{"ac": {"detail"}, "wd": {query}})
	if err != nil {
		return nil, err
	}
	return p.Records, nil
}

// Detail fetches one record (ac=detail&ids=ID). Results are cached and
// concurrent lookups of the same record share one request. The shared
// request is detached from any single caller, so one caller giving up does
// not fail the others; each caller still returns as soon as its own ctx ends.
func (c *Client) Detail(ctx context.Context, src SourceEndpoint, id string) (MediaRecord, error) {
	key := "detail:" + src.APIBaseURL + "|" + id
	if c.cache != nil {
		if rec, ok := cache.GetJSON[MediaRecord](ctx, c.cache, "detail", key); ok {
			return rec, nil
		}
	}

	ch := c.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.detailTimeout)
		defer cancel()
		rec, err := c.fetchDetail(fctx, src, id)
		if err != nil {
			return MediaRecord{}, err
		}
		if c.cache != nil {
			if err := cache.SetJSON(fctx, c.cache, key, rec, c.ttl); err != nil {
				log.FromContext(fctx).Debug().Err(err).Str(log.FieldEvent, "cms.cache_set_failed").Msg("detail not cached")
			}
		}
		return rec, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return MediaRecord{}, res.Err
		}
		return res.Val.(MediaRecord), nil
	case <-ctx.Done():
		return MediaRecord{}, ctx.Err()
	}
}

func (c *Client) fetchDetail(ctx context.Context, src SourceEndpoint, id string) (MediaRecord, error) {
	p, err := c.get(ctx, src, url.Values{"ac": {"detail"}, "ids": {id}})
	if err != nil {
		return MediaRecord{}, err
	}
	for _, r := range p.Records {
		if r.ID == id {
			return r, nil
		}
	}
	if len(p.Records) == 1 {
		return p.Records[0], nil
	}
	return MediaRecord{}, fmt.Errorf("%s id %s: %w", src.Name, id, ErrNotFound)
}

// Poster resolves the poster URL of a record, using the poster cache.
func (c *Client) Poster(ctx context.Context, src SourceEndpoint, id string) (string, error) {
	key := "poster:" + src.APIBaseURL + "|" + id
	if c.cache != nil {
		if u, ok := cache.GetJSON[string](ctx, c.cache, "poster", key); ok {
			return u, nil
		}
	}
	rec, err := c.Detail(ctx, src, id)
	if err != nil {
		return "", err
	}
	if c.cache != nil && rec.PosterURL != "" {
		if err := cache.SetJSON(ctx, c.cache, key, rec.PosterURL, c.ttl); err != nil {
			log.FromContext(ctx).Debug().Err(err).Str(log.FieldEvent, "cms.cache_set_failed").Msg("poster not cached")
		}
	}
	return rec.PosterURL, nil
}

// PosterBatch resolves posters for many ids, staggering the requests so a
// burst does not hammer the source. Failed lookups are omitted.
func (c *Client) PosterBatch(ctx context.Context, src SourceEndpoint, ids []string) (map[string]string, error) {
	var mu sync.Mutex
	out := make(map[string]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range ids {
		if err := c.limiter.Wait(ctx); err != nil {
			break
		}
		if c.jitter > 0 {
			select {
			case <-time.After(rand.N(c.jitter)):
			case <-ctx.Done():
			}
		}
		g.Go(func() error {
			u, err := c.Poster(gctx, src, id)
			if err != nil || u == "" {
				return nil
			}
			mu.Lock()
			out[id] = u
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}
