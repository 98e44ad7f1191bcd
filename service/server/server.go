package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/brojonat/txconfirm/service/db"
	"github.com/brojonat/txconfirm/service/metrics"
	"github.com/brojonat/txconfirm/service/nats"
	"github.com/brojonat/txconfirm/service/program"
	"github.com/brojonat/txconfirm/service/temporal"
	"github.com/brojonat/txconfirm/service/txn"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SubmissionStore reads recorded submissions. *db.Store implements it.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, signature string) (*db.Submission, error)
	ListSubmissions(ctx context.Context, params db.ListSubmissionsParams) ([]*db.Submission, error)
}

// StatusReader performs a single status poll. *txn.Tracker implements it.
type StatusReader interface {
	Status(ctx context.Context, sig solanago.Signature) (txn.Observation, error)
}

// EventWatcher streams confirmation events. *nats.Subscriber implements it.
type EventWatcher interface {
	Watch(ctx context.Context, program string, handle func(*nats.OutcomeEvent) error) error
}

// Server represents the HTTP server for the confirmation service.
type Server struct {
	addr     string
	cfg      *config.Config
	store    SubmissionStore
	starter  temporal.Starter
	status   StatusReader
	accounts program.AccountReader
	events   EventWatcher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The store is optional - if nil, submission history endpoints won't be available.
// The starter is optional - if nil, workflow submission won't be available.
// The events watcher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(
	addr string,
	cfg *config.Config,
	store SubmissionStore,
	starter temporal.Starter,
	status StatusReader,
	accounts program.AccountReader,
	events EventWatcher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	return &Server{
		addr:     addr,
		cfg:      cfg,
		store:    store,
		starter:  starter,
		status:   status,
		accounts: accounts,
		events:   events,
		metrics:  m,
		logger:   logger,
	}
}

// Handler builds the routed handler. Start serves it; tests use it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	instrument := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
	}

	if s.starter != nil {
		instrument("POST /api/v1/submissions", handleStartSubmission(s.starter, s.cfg, s.logger))
	} else {
		s.logger.Warn("temporal client not configured, submission endpoint disabled")
	}

	if s.store != nil {
		instrument("GET /api/v1/submissions", handleListSubmissions(s.store, s.logger))
		instrument("GET /api/v1/submissions/{signature}", handleGetSubmission(s.store, s.logger))
	} else {
		s.logger.Warn("database not configured, submission history endpoints disabled")
	}

	instrument("GET /api/v1/signatures/{signature}", handleSignatureStatus(s.status, s.logger))
	instrument("GET /api/v1/programs/{program}", handleProgramStatus(s.accounts, s.logger))

	// SSE streaming endpoints (if a watcher is configured)
	if s.events != nil {
		mux.Handle("GET /api/v1/stream/outcomes/{program}", handleStreamOutcomes(s.events, s.logger))
		mux.Handle("GET /api/v1/stream/outcomes", handleStreamOutcomes(s.events, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// writeTimeout leaves room for wait=true submissions, which block for up to
// waitBudget.
func (s *Server) writeTimeout() time.Duration {
	timeout := 15 * time.Second
	if window := waitBudget(s.cfg) + 30*time.Second; window > timeout {
		timeout = window
	}
	return timeout
}

// waitBudget is the longest confirmation window a wait=true submission may
// request: the configured one.
func waitBudget(cfg *config.Config) time.Duration {
	if cfg == nil {
		return 0
	}
	return cfg.ConfirmTimeout()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
