// Package api provides the HTTP interface of the classification service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/inference"
	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/darshan-rambhia/hostwatch/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/darshan-rambhia/hostwatch/docs/swagger"
)

// APIVersion is reported by /health.
const APIVersion = "1.0.0"

const (
	maxBodyBytes        = 1 << 20
	defaultListLimit    = 50
	maxListLimit        = 1000
	shutdownGracePeriod = 5 * time.Second
)

// Server is the HTTP server for the classification service.
type Server struct {
	svc    *inference.Service
	store  *store.Store
	gather prometheus.Gatherer
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a new HTTP server. s may be nil, in which case the
// history endpoints answer 503. g may be nil to disable /metrics.
func NewServer(addr string, svc *inference.Service, s *store.Store, g prometheus.Gatherer) *Server {
	srv := &Server{
		svc:    svc,
		store:  s,
		gather: g,
		mux:    http.NewServeMux(),
	}

	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return Serve(ctx, s.server, "classification API")
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, name string) error {
	slog.Info("HTTP server starting", "server", name, "addr", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down", "server", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /predict", s.handlePredict)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /classes", s.handleClasses)

	s.mux.HandleFunc("GET /api/predictions", s.handlePredictions)
	s.mux.HandleFunc("GET /api/alerts", s.handleAlerts)

	if s.gather != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}

	// Swagger UI doubles as the endpoint index.
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /{$}", http.RedirectHandler("/swagger/index.html", http.StatusFound))
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

// errorResponse is the body of every 4xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

// failureResponse is the body of a 500 from /predict.
type failureResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// predictResponse is a classification result tagged with a status.
type predictResponse struct {
	Status string `json:"status"`
	model.ClassificationResult
}

type statusResponse struct {
	Status    string                     `json:"status"`
	Data      model.ClassificationResult `json:"data"`
	Timestamp string                     `json:"timestamp"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	ModelLoaded bool   `json:"model_loaded"`
	APIVersion  string `json:"api_version"`
	Degraded    bool   `json:"degraded,omitempty"`
}

type classesResponse struct {
	Classes []string `json:"classes"`
	Count   int      `json:"count"`
}

// @Summary Classify a feature vector
// @Description Classifies 9 host-health features into one of 12 categories
// @Accept json
// @Produce json
// @Param request body inference.PredictRequest true "Feature vector"
// @Success 200 {object} predictResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} failureResponse
// @Router /predict [post]
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req inference.PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON body: %v", err)})
		return
	}

	res, err := s.svc.Classify(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, predictResponse{Status: "success", ClassificationResult: res})
	case errors.Is(err, inference.ErrInvalidRequest):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, failureResponse{
			Status:  "error",
			Message: "classification failed",
			Details: err.Error(),
		})
	}
}

// @Summary Latest classification
// @Description Returns the most recent successful classification
// @Produce json
// @Success 200 {object} statusResponse
// @Failure 404 {object} errorResponse
// @Router /api/status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, ok := s.svc.Status()
	if !ok {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: inference.ErrNotFound.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, statusResponse{
		Status:    "success",
		Data:      res,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// @Summary Health check
// @Description Reports liveness and whether a trained model is loaded
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().Format(time.RFC3339),
		ModelLoaded: s.svc.ModelLoaded(),
		APIVersion:  APIVersion,
		Degraded:    s.svc.Degraded(),
	})
}

// @Summary Category list
// @Description Lists the category names in code order
// @Produce json
// @Success 200 {object} classesResponse
// @Router /classes [get]
func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	names := model.CategoryNames()
	writeJSON(w, r, http.StatusOK, classesResponse{Classes: names, Count: len(names)})
}

// @Summary Stored classifications
// @Description Returns stored classifications, newest first
// @Produce json
// @Param limit query int false "Maximum rows (default 50, max 1000)"
// @Success 200 {array} model.PredictionRecord
// @Failure 400 {object} errorResponse
// @Failure 503 {object} errorResponse
// @Router /api/predictions [get]
func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.listLimit(w, r)
	if !ok {
		return
	}
	recs, err := s.store.RecentPredictions(r.Context(), limit)
	if err != nil {
		slog.Error("listing predictions", "error", err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "listing predictions failed"})
		return
	}
	writeJSON(w, r, http.StatusOK, recs)
}

// @Summary Alert log
// @Description Returns fired and resolved alerts, newest first
// @Produce json
// @Param limit query int false "Maximum rows (default 50, max 1000)"
// @Success 200 {array} store.AlertRecord
// @Failure 400 {object} errorResponse
// @Failure 503 {object} errorResponse
// @Router /api/alerts [get]
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.listLimit(w, r)
	if !ok {
		return
	}
	recs, err := s.store.RecentAlerts(r.Context(), limit)
	if err != nil {
		slog.Error("listing alerts", "error", err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "listing alerts failed"})
		return
	}
	writeJSON(w, r, http.StatusOK, recs)
}

// listLimit parses ?limit= and checks the store is configured. It writes the
// error response itself and returns false when the handler should stop.
func (s *Server) listLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	if s.store == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "history storage disabled"})
		return 0, false
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return 0, false
		}
		limit = min(n, maxListLimit)
	}
	return limit, true
}
