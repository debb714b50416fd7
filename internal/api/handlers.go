// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/hls"
	"github.com/ManuGH/vodagg/internal/log"
	pnet "github.com/ManuGH/vodagg/internal/platform/net"
	"github.com/go-chi/chi/v5"
)

type searchResponse struct {
	Query   string            `json:"query"`
	Session string            `json:"session,omitempty"`
	Count   int               `json:"count"`
	Records []cms.MediaRecord `json:"records"`
}

// handleSearch runs an aggregate search. With a session id the session's
// last query wins and a superseded request gets 409. Repeated api
// parameters restrict the search to those sources.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeBadRequest(w, r, "missing q")
		return
	}
	selected := s.selectSources(q["api"])
	sessionID := q.Get("session")

	var (
		recs []cms.MediaRecord
		err  error
	)
	if sessionID != "" && s.deps.Sessions != nil {
		ctx := log.ContextWithSessionID(r.Context(), sessionID)
		recs, err = s.deps.Sessions.Get(sessionID).Search(ctx, query, selected)
	} else {
		recs, err = s.deps.Engine.Search(r.Context(), query, selected)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []cms.MediaRecord{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Session: sessionID, Count: len(recs), Records: recs})
}

func (s *Server) selectSources(apis []string) []cms.SourceEndpoint {
	enabled := s.deps.Sources.Enabled()
	if len(apis) == 0 {
		return enabled
	}
	want := make(map[string]bool, len(apis))
	for _, a := range apis {
		want[a] = true
	}
	out := enabled[:0]
	for _, src := range enabled {
		if want[src.APIBaseURL] {
			out = append(out, src)
		}
	}
	return out
}

func (s *Server) sourceParam(w http.ResponseWriter, r *http.Request) (cms.SourceEndpoint, bool) {
	api := r.URL.Query().Get("api")
	if api == "" {
		writeBadRequest(w, r, "missing api")
		return cms.SourceEndpoint{}, false
	}
	src, ok := s.deps.Sources.Lookup(api)
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "unknown_source", api)
		return cms.SourceEndpoint{}, false
	}
	return src, true
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	src, ok := s.sourceParam(w, r)
	if !ok {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeBadRequest(w, r, "missing id")
		return
	}
	rec, err := s.deps.Catalog.Detail(r.Context(), src, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	src, ok := s.sourceParam(w, r)
	if !ok {
		return
	}
	page := 1
	if pg := r.URL.Query().Get("pg"); pg != "" {
		n, err := strconv.Atoi(pg)
		if err != nil || n < 1 {
			writeBadRequest(w, r, "pg must be a positive integer")
			return
		}
		page = n
	}
	payload, err := s.deps.Catalog.ListPage(r.Context(), src, r.URL.Query().Get("t"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if payload.Records == nil {
		payload.Records = []cms.MediaRecord{}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.deps.Sources.All()})
}

func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if _, ok := pnet.ParseDirectHTTPURL(raw); !ok {
		writeBadRequest(w, r, "url must be an absolute http(s) URL")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Resolver.ResolveDetail(r.Context(), raw))
}

func handleParam(r *http.Request) hls.Handle {
	return hls.Handle(strings.TrimSuffix(chi.URLParam(r, "name"), ".m3u8"))
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	content, ok := s.deps.Playlists.Get(handleParam(r))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not_found", "unknown playlist handle")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write([]byte(content))
}

// handleRelease drops a synthetic playlist once the player is done with it.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	h := handleParam(r)
	if !s.deps.Playlists.Release(h) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "unknown playlist handle")
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Debug().
		Str(log.FieldEvent, "playlist.released").
		Str(log.FieldHandle, string(h)).
		Msg("synthetic playlist released")
	w.WriteHeader(http.StatusNoContent)
}
