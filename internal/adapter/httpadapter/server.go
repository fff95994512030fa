// Package httpadapter exposes the service over HTTP: health and readiness
// probes, Prometheus metrics, the latest burn-scar raster as PNG or TIFF,
// and the run ledger.
package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
	"github.com/couchcryptid/burn-scar-detection/internal/render"
	"github.com/couchcryptid/burn-scar-detection/internal/store"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// MaskProvider yields the most recent clipped burn mask. The second return
// is false before the first completed run.
type MaskProvider interface {
	LatestMask() (domain.Raster, bool)
}

// RunLister reads recent rows from the run ledger.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Server exposes the service HTTP endpoints.
type Server struct {
	httpServer *http.Server
	masks      MaskProvider
	runs       RunLister
	logger     *slog.Logger
}

// NewServer creates an HTTP server with probe, metrics, burn-scar, and run
// history routes. runs may be nil, disabling /v1/runs.
func NewServer(addr string, ready ReadinessChecker, masks MaskProvider, runs RunLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		masks:  masks,
		runs:   runs,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/burn-scar.png", s.handleBurnScarPNG)
	mux.HandleFunc("GET /v1/burn-scar.tif", s.handleBurnScarTIFF)
	if runs != nil {
		mux.HandleFunc("GET /v1/runs", s.handleRuns)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleBurnScarPNG(w http.ResponseWriter, _ *http.Request) {
	s.serveMask(w, "image/png", render.WriteMaskPNG)
}

func (s *Server) handleBurnScarTIFF(w http.ResponseWriter, _ *http.Request) {
	s.serveMask(w, "image/tiff", render.WriteTIFF)
}

func (s *Server) serveMask(w http.ResponseWriter, contentType string, encode func(w io.Writer, r domain.Raster, band string) error) {
	mask, ok := s.masks.LatestMask()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "no detection run has completed yet",
		})
		return
	}
	if mask.Empty() {
		// No imagery in either season; there is nothing to draw.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if err := encode(w, mask, mask.BandNames()[0]); err != nil {
		s.logger.Error("render burn mask failed", "error", err)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run ledger unavailable"})
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
