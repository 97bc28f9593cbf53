// Package ops exposes the operational HTTP surface: health, metrics
// and a live view of the proxy pool.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

// PoolViewer is the read-only slice of the proxy pool the ops surface
// exposes.
type PoolViewer interface {
	Snapshot(ctx context.Context) ([]harvest.ProxyRecord, error)
}

// Server wires the ops routes onto a chi router.
type Server struct {
	router chi.Router
	pool   PoolViewer
	logger *zap.Logger
	http   *http.Server
}

// NewServer constructs a Server.
func NewServer(addr string, pool PoolViewer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pool:   pool,
		logger: logger.Named("ops"),
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/proxies", s.proxies)
	s.router = r

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router for use in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown or a listener failure.
func (s *Server) Start() error {
	s.logger.Info("ops server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) proxies(w http.ResponseWriter, r *http.Request) {
	records, err := s.pool.Snapshot(r.Context())
	if err != nil {
		s.logger.Warn("pool snapshot failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "pool unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"proxies": records,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
