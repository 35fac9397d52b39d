package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"deployer/internal/ledger"
)

// Server represents the HTTP API server
// Exposes the factories of a ledger, its contract instances, health checks and Prometheus metrics
type Server struct {
	httpServer        *http.Server
	mux               *http.ServeMux
	handler           http.Handler
	limiter           *clientLimiter
	ledger            *ledger.Ledger
	networkPassphrase string
	port              int
}

// Option configures a Server
type Option func(*Server)

// WithRateLimit limits every client to rps requests per second, with bursts up to
// burst, on the factory POST endpoints. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = newClientLimiter(rps, burst)
	}
}

// NewServer creates a new API server instance
// Signed credentials submitted to the deploy endpoint are verified against networkPassphrase
func NewServer(port int, l *ledger.Ledger, networkPassphrase string, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:               mux,
		handler:           withRequestID(mux),
		ledger:            l,
		networkPassphrase: networkPassphrase,
		port:              port,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Register all HTTP routes
	s.registerRoutes()

	return s
}

// Handler returns the root handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// Contract endpoints
	s.mux.HandleFunc("/contracts", s.handleContracts)
	s.mux.HandleFunc("/contracts/", s.handleContractRoutes)

	// Factory endpoints
	s.mux.HandleFunc("/factories/", s.handleFactoryRoutes)
}

// handleContracts routes to list contracts (without trailing slash)
func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleListContracts(w, r)
}

// handleContractRoutes routes contract sub-endpoints (with trailing slash)
func (s *Server) handleContractRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/contracts/")
	parts := strings.Split(path, "/")

	// GET /contracts/{id}
	if len(parts) == 1 && parts[0] != "" {
		s.handleGetContract(w, r, parts[0])
		return
	}

	s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
}

// handleFactoryRoutes routes factory sub-endpoints
func (s *Server) handleFactoryRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/factories/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
		return
	}
	factoryID := parts[0]

	if r.Method == http.MethodPost && !s.limiter.allow(clientKey(r), time.Now()) {
		w.Header().Set("Retry-After", "1")
		s.sendError(w, r, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	switch {
	// GET /factories/{id}/address?deployer=...&salt=...
	case parts[1] == "address" && r.Method == http.MethodGet:
		s.handleCalculateAddress(w, r, factoryID)

	// POST /factories/{id}/addresses
	case parts[1] == "addresses" && r.Method == http.MethodPost:
		s.handleCalculateAddresses(w, r, factoryID)

	// POST /factories/{id}/invocation
	case parts[1] == "invocation" && r.Method == http.MethodPost:
		s.handleDeployInvocation(w, r, factoryID)

	// POST /factories/{id}/deploy
	case parts[1] == "deploy" && r.Method == http.MethodPost:
		s.handleDeploy(w, r, factoryID)

	case parts[1] == "address", parts[1] == "addresses", parts[1] == "invocation", parts[1] == "deploy":
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)

	default:
		s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
	}
}

// Start starts the HTTP server in a goroutine
// Returns immediately after starting the server
func (s *Server) Start() error {
	go func() {
		slog.Info("API server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/contracts", "/factories"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}
