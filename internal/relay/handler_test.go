// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ManuGH/vodagg/internal/platform/httpx"
	pnet "github.com/ManuGH/vodagg/internal/platform/net"
	"github.com/stretchr/testify/assert"
)

func TestHandler_RelaysBodyAndContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte("#EXTM3U\n"))
	}))
	defer upstream.Close()

	h := NewHandler(httpx.NewClient(time.Second), time.Second)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay?url="+url.QueryEscape(upstream.URL+"/a.m3u8"), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "#EXTM3U\n", rec.Body.String())
}

func TestHandler_RejectsBadTargets(t *testing.T) {
	h := NewHandler(httpx.NewClient(time.Second), time.Second)
	for _, target := range []string{"", "relative/path", "ftp://host/file", "file:///etc/passwd"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay?url="+url.QueryEscape(target), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandler_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	h := NewHandler(httpx.NewClient(time.Second), time.Second)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay?url="+url.QueryEscape(addr), nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandler_OutboundPolicy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()
	target := "/relay?url=" + url.QueryEscape(upstream.URL+"/x")

	blocked := NewHandler(httpx.NewClient(time.Second), time.Second, WithOutboundPolicy(pnet.OutboundPolicy{}))
	rec := httptest.NewRecorder()
	blocked.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code, "loopback upstream is refused")

	allowed := NewHandler(httpx.NewClient(time.Second), time.Second,
		WithOutboundPolicy(pnet.OutboundPolicy{AllowCIDRs: []string{"127.0.0.0/8", "::1"}}))
	rec = httptest.NewRecorder()
	allowed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHandler_RejectsCredentials(t *testing.T) {
	h := NewHandler(httpx.NewClient(time.Second), time.Second)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay?url="+url.QueryEscape("http://u:p@cms.example/api"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
