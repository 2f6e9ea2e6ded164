package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mcstatus/internal/middleware"
	"mcstatus/internal/status"
)

// Options configures a Server.
type Options struct {
	Addr      string
	Version   string
	StartTime time.Time

	// Middleware wraps every /api/ route, outermost first.
	Middleware []middleware.Middleware

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server is the status API HTTP server.
type Server struct {
	reg    *Registry
	opts   Options
	logger *slog.Logger
	srv    *http.Server
}

// New creates a Server. Call Start to begin listening.
func New(reg *Registry, opts Options) *Server {
	if opts.StartTime.IsZero() {
		opts.StartTime = time.Now()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{reg: reg, opts: opts, logger: logger}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/servers", s.handleListServers)
	api.HandleFunc("GET /api/servers/{id}/status", s.handleStatus)
	api.HandleFunc("GET /api/servers/{id}/code", s.handleCode)
	api.HandleFunc("GET /api/servers/{id}/favicon", s.handleFavicon)
	api.HandleFunc("GET /api/stats", s.handleStats)

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Chain(api, opts.Middleware...))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start binds the listen address and serves in a background goroutine.
// A bind failure is returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.srv.Addr, err)
	}
	go func() {
		s.logger.Info("status API listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server within the given context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ── Handlers ────────────────────────────────────────────────────────────────

type statusResponse struct {
	status.Report
	Favicon string `json:"favicon,omitempty"`
}

func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, s.reg.Servers())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, ok := s.reg.Status(id)
	if !ok {
		notFound(w, id)
		return
	}

	resp := statusResponse{Report: st.Report()}
	if _, ok := s.reg.FaviconPath(id); ok {
		resp.Favicon = "/api/servers/" + id + "/favicon"
	}
	jsonOK(w, resp)
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	code, ok := s.reg.Code(id)
	if !ok {
		notFound(w, id)
		return
	}
	w.WriteHeader(code.HTTPStatus())
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.reg.Known(id) {
		notFound(w, id)
		return
	}
	path, ok := s.reg.FaviconPath(id)
	if !ok {
		jsonErr(w, fmt.Sprintf("Server %s has no favicon!", id), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

type statsResponse struct {
	Uptime      string `json:"uptime"`
	Version     string `json:"version"`
	Servers     int    `json:"servers"`
	Online      int    `json:"online"`
	Offline     int    `json:"offline"`
	Unreachable int    `json:"unreachable"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	online, offline, unreachable := s.reg.Counts()
	jsonOK(w, statsResponse{
		Uptime:      time.Since(s.opts.StartTime).Round(time.Second).String(),
		Version:     s.opts.Version,
		Servers:     online + offline + unreachable,
		Online:      online,
		Offline:     offline,
		Unreachable: unreachable,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
		"uptime":  time.Since(s.opts.StartTime).Round(time.Second).String(),
	})
}

// ── helpers ─────────────────────────────────────────────────────────────────

func notFound(w http.ResponseWriter, id string) {
	jsonErr(w, fmt.Sprintf("Server %s not found!", id), http.StatusNotFound)
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
