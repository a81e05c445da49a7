package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// AlertReader reads current hazard alerts.
type AlertReader interface {
	ActiveAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.HazardAlert, error)
}

// SourceStatusReader reads per-source sync state.
type SourceStatusReader interface {
	ListWatermarks(ctx context.Context) ([]domain.SourceWatermark, error)
	RecentIngestionLogs(ctx context.Context, source string, limit int) ([]domain.IngestionLogEntry, error)
}

// Store is everything the read API needs from persistence.
type Store interface {
	AlertReader
	SourceStatusReader
}

// Server exposes health, readiness, metrics and the read-only hazard API.
type Server struct {
	httpServer *http.Server
	store      Store
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes. Every route allows cross-origin GETs.
func NewServer(addr string, ready sharedobs.ReadinessChecker, store Store, clock clockwork.Clock, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      allowAllOrigins().Handler(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:  store,
		clock:  clock,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/threats", s.handleThreats)
	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	mux.HandleFunc("GET /api/v1/sources/{source}/logs", s.handleSourceLogs)

	return s
}

func allowAllOrigins() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
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
