package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/server/handler"
	"github.com/alanyoungcy/wagerbook/internal/server/middleware"
	"github.com/alanyoungcy/wagerbook/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty and APIKeyHash empty, authentication is disabled
	APIKeyHash  string // bcrypt hash; takes precedence over APIKey

	// RateLimit caps requests per caller per RateWindow. Zero disables the
	// middleware even when a limiter is supplied.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Propositions *handler.PropositionHandler
	Stakes       *handler.StakeHandler
	Settlement   *handler.SettlementHandler
	Escrow       *handler.EscrowHandler
	Audit        *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server for the wagering ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (metrics, CORS, logging, rate limiting, auth) and
// attaches the WebSocket hub. limiter may be nil to skip rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check and metrics (no auth required on health; metrics sits
	// behind the same chain as everything else).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Proposition endpoints.
	mux.HandleFunc("POST /api/propositions", handlers.Propositions.Open)
	mux.HandleFunc("GET /api/propositions", handlers.Propositions.ListByCreator)
	mux.HandleFunc("GET /api/propositions/{id}", handlers.Propositions.Get)
	mux.HandleFunc("GET /api/propositions/{id}/odds", handlers.Propositions.Odds)

	// Stake endpoints.
	mux.HandleFunc("POST /api/propositions/{id}/stakes", handlers.Stakes.Place)
	mux.HandleFunc("GET /api/propositions/{id}/stakes", handlers.Stakes.List)

	// Settlement endpoints.
	mux.HandleFunc("POST /api/propositions/{id}/resolve", handlers.Settlement.Resolve)
	mux.HandleFunc("POST /api/propositions/{id}/claim", handlers.Settlement.Claim)
	mux.HandleFunc("GET /api/propositions/{id}/resolution", handlers.Settlement.GetResolution)
	mux.HandleFunc("POST /api/verdicts", handlers.Settlement.SubmitVerdict)

	// Escrow endpoints.
	mux.HandleFunc("POST /api/escrow/deposits", handlers.Escrow.Deposit)
	mux.HandleFunc("GET /api/escrow/balance", handlers.Escrow.Balance)

	// Audit endpoint.
	mux.HandleFunc("GET /api/audit", handlers.Audit.List)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Metrics()(h)
	h = middleware.Auth(cfg.APIKey, cfg.APIKeyHash)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
