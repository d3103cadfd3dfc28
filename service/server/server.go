package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bloqz/settle/service/config"
	"github.com/bloqz/settle/service/db"
	"github.com/bloqz/settle/service/dispatch"
	"github.com/bloqz/settle/service/intent"
	"github.com/bloqz/settle/service/metrics"
	"github.com/bloqz/settle/service/pipeline"
	"github.com/bloqz/settle/service/ramp"
	"github.com/bloqz/settle/service/wallet"
)

// SettlementPipeline is the pipeline surface the HTTP handlers need.
type SettlementPipeline interface {
	Settle(ctx context.Context, it *intent.Intent, snap wallet.AuthSnapshot, messageID string) (*dispatch.Result, error)
	GetEnrichedRecord(ctx context.Context, messageID string) (*db.SettlementRecord, error)
	OpenFiatRamp(params pipeline.RampParams) (string, error)
}

// RequestManager is the payment-request surface the HTTP handlers need.
type RequestManager interface {
	Accept(ctx context.Context, id string, snap wallet.AuthSnapshot) (*dispatch.Result, error)
	Decline(ctx context.Context, id string) error
}

// RampEvents is the ramp webhook surface.
type RampEvents interface {
	HandleOrderEvent(ctx context.Context, ev *ramp.OrderEvent) error
}

// SnapshotProvider produces the signing snapshot for a user. The custodial
// key service implements this in production; tests use a static snapshot.
type SnapshotProvider interface {
	SnapshotFor(ctx context.Context, userID string) (wallet.AuthSnapshot, error)
}

// Server represents the HTTP server for the settlement service.
type Server struct {
	addr      string
	cfg       *config.Config
	pipe      SettlementPipeline
	requests  RequestManager
	rampIn    RampEvents
	snapshots SnapshotProvider
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, pipe SettlementPipeline, requests RequestManager, rampIn RampEvents, snapshots SnapshotProvider, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		cfg:       cfg,
		pipe:      pipe,
		requests:  requests,
		rampIn:    rampIn,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Settlement routes
	mux.Handle("POST /api/v1/intents", handleSubmitIntent(s.pipe, s.snapshots, s.logger))
	mux.Handle("GET /api/v1/records/{message_id}", handleGetRecord(s.pipe, s.logger))

	// Payment request routes
	mux.Handle("POST /api/v1/requests/{id}/accept", handleAcceptRequest(s.requests, s.snapshots, s.logger))
	mux.Handle("POST /api/v1/requests/{id}/decline", handleDeclineRequest(s.requests, s.logger))

	// Fiat ramp routes
	mux.Handle("POST /api/v1/ramp/events", handleRampEvent(s.rampIn, s.logger))
	mux.Handle("POST /api/v1/ramp/widget", handleRampWidget(s.pipe, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
