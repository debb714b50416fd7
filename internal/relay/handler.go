// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/vodagg/internal/log"
	pnet "github.com/ManuGH/vodagg/internal/platform/net"
)

// Handler is the local relay endpoint: GET ?url=<target> fetches target
// server-side and returns its body and content type unchanged. It lets a
// deployment list itself as a Query-mode strategy.
type Handler struct {
	client  *http.Client
	timeout time.Duration
	maxBody int64
	policy  *pnet.OutboundPolicy
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOutboundPolicy refuses targets that resolve to addresses the policy
// blocks. Without it every http(s) target is relayed.
func WithOutboundPolicy(p pnet.OutboundPolicy) HandlerOption {
	return func(h *Handler) { h.policy = &p }
}

// NewHandler returns a relay endpoint using client for upstream requests.
func NewHandler(client *http.Client, timeout time.Duration, opts ...HandlerOption) *Handler {
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	h := &Handler{client: client, timeout: timeout, maxBody: DefaultMaxBody}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "relay-endpoint")

	target, err := parseTarget(r.URL.Query().Get("url"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.EqualFold(target.Host, r.Host) {
		http.Error(w, "refusing to relay to self", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.policy != nil {
		checked, err := pnet.ValidateOutboundURL(ctx, target, *h.policy)
		if err != nil {
			code := http.StatusBadGateway
			if errors.Is(err, pnet.ErrOutboundNotAllowed) {
				code = http.StatusForbidden
			}
			logger.Info().Err(err).Str(log.FieldEvent, "relay.target_refused").Str(log.FieldTarget, pnet.SanitizeURL(target.String())).Msg("relay target refused")
			http.Error(w, http.StatusText(code), code)
			return
		}
		target = checked
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, "bad target", http.StatusBadRequest)
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		logger.Debug().Err(err).Str(log.FieldEvent, "relay.upstream_error").Str(log.FieldTarget, pnet.SanitizeURL(target.String())).Msg("relay upstream failed")
		http.Error(w, http.StatusText(code), code)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if resp.ContentLength >= 0 && resp.ContentLength <= h.maxBody {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, h.maxBody)); err != nil {
		logger.Debug().Err(err).Str(log.FieldEvent, "relay.copy_error").Msg("relay body copy aborted")
	}
}

func parseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("missing url parameter")
	}
	u, ok := pnet.ParseDirectHTTPURL(raw)
	if !ok {
		return nil, errors.New("url must be an absolute http(s) URL without credentials")
	}
	return u, nil
}
