// Package dashboard serves the HTML dashboard built from the poller cache.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/darshan-rambhia/hostwatch/internal/api"
	"github.com/darshan-rambhia/hostwatch/internal/cache"
	"github.com/darshan-rambhia/hostwatch/templates"
)

// Server is the dashboard HTTP server.
type Server struct {
	cache   *cache.Cache
	refresh time.Duration
	now     func() time.Time
	mux     *http.ServeMux
	server  *http.Server
}

// NewServer creates a dashboard server. refresh is the htmx reload period,
// normally the poll interval.
func NewServer(addr string, c *cache.Cache, refresh time.Duration) *Server {
	srv := &Server{
		cache:   c,
		refresh: refresh,
		now:     time.Now,
		mux:     http.NewServeMux(),
	}

	srv.mux.HandleFunc("GET /{$}", srv.handleDashboard)
	srv.mux.HandleFunc("GET /fragments/status", srv.handleStatusFragment)
	srv.mux.HandleFunc("GET /api/history", srv.handleHistory)
	srv.mux.HandleFunc("GET /healthz", srv.handleHealthz)

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      api.SecurityHeadersMiddleware(api.RecoveryMiddleware(api.LoggingMiddleware(srv.mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return api.Serve(ctx, s.server, "dashboard")
}

// renderHTML renders a templ component to a buffer first, then writes the
// buffer to the response. This ensures rendering errors can be returned as a
// proper 500 before any bytes reach the client.
func renderHTML(w http.ResponseWriter, r *http.Request, component templ.Component) {
	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		slog.Error("rendering component", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("writing HTML response", "path", r.URL.Path, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, r, templates.Dashboard(s.cache.Snapshot(), s.refresh, s.now()))
}

func (s *Server) handleStatusFragment(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, r, templates.StatusFragment(s.cache.Snapshot(), s.now()))
}

// handleHistory returns the polled history, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.cache.Snapshot().History)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()

	status := "ok"
	switch {
	case !snap.Available():
		status = "no_data"
	case snap.Degraded():
		status = "degraded"
	}

	resp := map[string]any{
		"status":    status,
		"timestamp": s.now().Unix(),
		"last_poll": templates.FormatSince(snap.LastPoll, s.now()),
		"history":   len(snap.History),
	}
	if snap.LastError != "" {
		resp["last_error"] = snap.LastError
	}
	writeJSON(w, r, resp)
}
