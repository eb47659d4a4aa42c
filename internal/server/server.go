// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the search engine over HTTP: a synchronous
// JSON search endpoint, a websocket subscription endpoint for streamed
// provider results, and a health probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/schema"

	"github.com/openshelf/openshelf/internal/coordinator"
	"github.com/openshelf/openshelf/internal/realtime"
	"github.com/openshelf/openshelf/pkg/types"
)

// searchParams is the query-string shape of GET /api/search.
type searchParams struct {
	Q       string `schema:"q"`
	Year    int    `schema:"year"`
	Order   string `schema:"order"`
	Covers  bool   `schema:"covers"`
	Session string `schema:"session"`
}

// Server routes HTTP traffic to the coordinator and the realtime hub.
type Server struct {
	coord   *coordinator.Coordinator
	mux     *http.ServeMux
	decoder *schema.Decoder
	log     *slog.Logger

	httpSrv *http.Server
}

// New builds the server and its routes.
func New(coord *coordinator.Coordinator, hub *realtime.Hub, cfg types.ServerConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		coord:   coord,
		mux:     http.NewServeMux(),
		decoder: decoder,
		log:     log,
	}
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.Handle("GET /api/search/subscribe", realtime.NewWSHandler(hub, log))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var params searchParams
	if err := s.decoder.Decode(&params, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if params.Q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	req := coordinator.Request{
		Query: params.Q,
		Filters: types.Filters{
			PublishedYear: params.Year,
			OrderBy:       types.OrderBy(params.Order),
			PreferCovers:  params.Covers,
		},
		Session: params.Session,
	}

	rs, err := s.coord.Search(r.Context(), req)
	if err != nil {
		s.log.Error("search failed", "query", params.Q, "error", err)
		writeError(w, http.StatusServiceUnavailable, "search unavailable")
		return
	}

	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
