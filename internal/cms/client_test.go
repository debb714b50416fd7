// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cms

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/vodagg/internal/cache"
	"github.com/ManuGH/vodagg/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	count   atomic.Int32
	delay   time.Duration
	respond func(target string) (string, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, target string, kind relay.Kind) (string, error) {
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, target)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.respond(target)
}

var testSource = SourceEndpoint{Name: "Alpha", APIBaseURL: "https://alpha.example/api.php/provide/vod/"}

func TestBuildURL(t *testing.T) {
	params := url.Values{"ac": {"detail"}, "wd": {"the matrix"}}
	assert.Equal(t, "https://a.example/api?ac=detail&wd=the+matrix", BuildURL("https://a.example/api", params))
	assert.Equal(t, "https://a.example/api?x=1&ac=detail&wd=the+matrix", BuildURL("https://a.example/api?x=1", params))
	assert.Equal(t, "https://a.example/api?ac=detail&wd=the+matrix", BuildURL("https://a.example/api?", params))
}

func TestClient_SearchTagsRecords(t *testing.T) {
	f := &fakeFetcher{respond: func(string) (string, error) {
		return `{"list":[{"vod_id":1,"vod_name":"Inception"},{"vod_id":2,"vod_name":"Interstellar"}]}`, nil
	}}
	c := NewClient(f)

	recs, err := c.Search(context.Background(), testSource, "inc")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, testSource.APIBaseURL, r.SourceAPI)
		assert.Equal(t, "Alpha", r.SourceName)
	}
	assert.Equal(t, []string{testSource.APIBaseURL + "?ac=detail&wd=inc"}, f.calls)
}

func TestClient_ListAndListPage(t *testing.T) {
	f := &fakeFetcher{respond: func(string) (string, error) {
		return `{"class":[{"type_id":1,"type_name":"Movies"}],"list":[],"page":1,"pagecount":5}`, nil
	}}
	c := NewClient(f)

	p, err := c.List(context.Background(), testSource)
	require.NoError(t, err)
	assert.Equal(t, []Category{{ID: "1", Name: "Movies"}}, p.Categories)

	_, err = c.ListPage(context.Background(), testSource, "1", 3)
	require.NoError(t, err)
	_, err = c.ListPage(context.Background(), testSource, "", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{
		testSource.APIBaseURL + "?ac=list",
		testSource.APIBaseURL + "?ac=list&pg=3&t=1",
		testSource.APIBaseURL + "?ac=list&pg=1",
	}, f.calls)
}

func TestClient_DetailCachedAndCollapsed(t *testing.T) {
	f := &fakeFetcher{
		delay: 50 * time.Millisecond,
		respond: func(string) (string, error) {
			return `{"list":[{"vod_id":"9","vod_name":"Heat","vod_pic":"/p/heat.jpg","vod_play_url":"Full$https://v.example/heat.m3u8"}]}`, nil
		},
	}
	mem := cache.NewMemoryCache(16, 0)
	c := NewClient(f, WithCache(mem, time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := c.Detail(context.Background(), testSource, "9")
			assert.NoError(t, err)
			assert.Equal(t, "Heat", rec.Title)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.count.Load(), "concurrent lookups share one request")

	rec, err := c.Detail(context.Background(), testSource, "9")
	require.NoError(t, err)
	assert.Equal(t, []Episode{{Name: "Full", URL: "https://v.example/heat.m3u8"}}, rec.Episodes)
	assert.Equal(t, int32(1), f.count.Load(), "served from cache")

	poster, err := c.Poster(context.Background(), testSource, "9")
	require.NoError(t, err)
	assert.Equal(t, "https://alpha.example/p/heat.jpg", poster)
}

func TestClient_DetailSharedRequestSurvivesCallerCancel(t *testing.T) {
	f := &fakeFetcher{
		delay: 150 * time.Millisecond,
		respond: func(string) (string, error) {
			return `{"list":[{"vod_id":"9","vod_name":"Heat"}]}`, nil
		},
	}
	c := NewClient(f)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Detail(ctxA, testSource, "9")
		errA <- err
	}()
	require.Eventually(t, func() bool { return f.count.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		rec MediaRecord
		err error
	}
	resB := make(chan result, 1)
	go func() {
		rec, err := c.Detail(context.Background(), testSource, "9")
		resB <- result{rec, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancelA()

	assert.ErrorIs(t, <-errA, context.Canceled)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "Heat", b.rec.Title)
	assert.Equal(t, int32(1), f.count.Load(), "callers share one request")
}

func TestClient_DetailCachedAfterCallersGaveUp(t *testing.T) {
	f := &fakeFetcher{
		delay: 50 * time.Millisecond,
		respond: func(string) (string, error) {
			return `{"list":[{"vod_id":"9","vod_name":"Heat"}]}`, nil
		},
	}
	mem := cache.NewMemoryCache(16, 0)
	c := NewClient(f, WithCache(mem, time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Detail(ctx, testSource, "9")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		_, ok := cache.GetJSON[MediaRecord](context.Background(), mem, "detail", "detail:"+testSource.APIBaseURL+"|9")
		return ok
	}, time.Second, 10*time.Millisecond)
	rec, err := c.Detail(context.Background(), testSource, "9")
	require.NoError(t, err)
	assert.Equal(t, "Heat", rec.Title)
	assert.Equal(t, int32(1), f.count.Load())
}

func TestClient_DetailNotFound(t *testing.T) {
	f := &fakeFetcher{respond: func(string) (string, error) { return `{"list":[]}`, nil }}
	_, err := NewClient(f).Detail(context.Background(), testSource, "404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_PropagatesFetchAndParseErrors(t *testing.T) {
	boom := errors.New("boom")
	c := NewClient(&fakeFetcher{respond: func(string) (string, error) { return "", boom }})
	_, err := c.Search(context.Background(), testSource, "x")
	assert.ErrorIs(t, err, boom)

	c = NewClient(&fakeFetcher{respond: func(string) (string, error) { return "not a payload", nil }})
	_, err = c.Search(context.Background(), testSource, "x")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestClient_PosterBatch(t *testing.T) {
	f := &fakeFetcher{respond: func(target string) (string, error) {
		u, _ := url.Parse(target)
		id := u.Query().Get("ids")
		if id == "bad" {
			return "", errors.New("dead")
		}
		return `{"list":[{"vod_id":"` + id + `","vod_name":"x","vod_pic":"https://img.example/` + id + `.jpg"}]}`, nil
	}}
	c := NewClient(f, WithPosterRate(1000, 0))

	got, err := c.PosterBatch(context.Background(), testSource, []string{"1", "bad", "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"1": "https://img.example/1.jpg",
		"2": "https://img.example/2.jpg",
	}, got)
}
