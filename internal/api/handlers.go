package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"deployer/internal/auth"
	"deployer/internal/factory"
	"deployer/internal/host"
	"deployer/internal/metrics"
	"deployer/internal/models"
	"deployer/internal/pipeline"
	"deployer/internal/scval"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// maxBodyBytes bounds request bodies
	maxBodyBytes = 1 << 20

	// maxBatchSize bounds the queries of one batch address calculation
	maxBatchSize = 1000
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "Contract Deployer",
		"version":     "1.0.0",
		"description": "Deploys contracts at deterministic addresses through factory contracts",
		"network":     s.networkPassphrase,
		"endpoints": map[string]string{
			"GET /":                           "This page - Service information",
			"GET /health":                     "Health check endpoint",
			"GET /metrics":                    "Prometheus metrics for monitoring",
			"GET /contracts":                  "List contract instances (supports ?limit=, ?offset=)",
			"GET /contracts/{id}":             "Get a contract instance with its storage",
			"GET /factories/{id}/address":     "Calculate the address for ?deployer= and ?salt=",
			"POST /factories/{id}/addresses":  "Calculate the addresses of a batch of (deployer, salt) pairs",
			"POST /factories/{id}/invocation": "Get the invocation a deployer has to sign",
			"POST /factories/{id}/deploy":     "Deploy and initialize a contract",
		},
	}

	s.sendJSON(w, r, http.StatusOK, info)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Store().Ping(r.Context()); err != nil {
		slog.Error("Health check failed", "error", err)
		s.sendError(w, r, "Store unhealthy", http.StatusServiceUnavailable)
		return
	}

	s.sendJSON(w, r, http.StatusOK, models.HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Service:    "deployer",
		LastLedger: s.ledger.LastClosed(),
	})
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// CONTRACT ENDPOINTS
// =============================================================================

// handleListContracts lists contract instances, newest first
// GET /contracts?limit=50&offset=0
func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	contracts, err := s.ledger.Store().ListInstances(r.Context(), limit, offset)
	if err != nil {
		slog.Error("Failed to list contracts", "error", err)
		s.sendError(w, r, "Internal server error", http.StatusInternalServerError)
		return
	}
	if contracts == nil {
		contracts = []*models.ContractInstance{}
	}

	s.sendJSON(w, r, http.StatusOK, models.ContractListResponse{
		Contracts: contracts,
		Page:      offset/limit + 1,
		PageSize:  limit,
	})
}

// handleGetContract returns a contract instance with its current storage
// GET /contracts/{id}
func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request, id string) {
	contractID, err := host.ParseAddress(id)
	if err != nil {
		s.sendError(w, r, "Invalid contract ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	instance, err := s.ledger.Store().GetInstance(ctx, contractID)
	if err != nil {
		s.sendError(w, r, err.Error(), StatusForError(err))
		return
	}

	entries, err := s.ledger.Store().ListStorage(ctx, contractID)
	if err != nil {
		slog.Error("Failed to get storage", "contract_id", id, "error", err)
		s.sendError(w, r, "Internal server error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.StorageEntry{}
	}

	s.sendJSON(w, r, http.StatusOK, models.ContractResponse{
		ContractInstance: *instance,
		Storage:          entries,
	})
}

// =============================================================================
// FACTORY ENDPOINTS
// =============================================================================

// handleCalculateAddress returns the address a deployment would claim
// GET /factories/{id}/address?deployer=G...&salt=<hex>
func (s *Server) handleCalculateAddress(w http.ResponseWriter, r *http.Request, id string) {
	client, ok := s.factoryClient(w, r, id)
	if !ok {
		return
	}

	query := r.URL.Query()
	deployer, err := host.ParseAddress(query.Get("deployer"))
	if err != nil {
		s.sendError(w, r, "deployer: "+err.Error(), http.StatusBadRequest)
		return
	}
	salt, err := host.ParseSalt(query.Get("salt"))
	if err != nil {
		s.sendError(w, r, "salt: "+err.Error(), http.StatusBadRequest)
		return
	}

	addr, err := client.CalculateAddress(r.Context(), deployer, salt)
	if err != nil {
		s.sendError(w, r, err.Error(), StatusForError(err))
		return
	}

	s.sendJSON(w, r, http.StatusOK, models.AddressResponse{
		Factory:  client.Address().String(),
		Deployer: deployer.String(),
		Salt:     salt.String(),
		Address:  addr.String(),
	})
}

// handleCalculateAddresses calculates addresses for a batch of (deployer, salt) pairs.
// Entries are answered in request order; an invalid entry carries an error instead
// of failing the batch.
// POST /factories/{id}/addresses
func (s *Server) handleCalculateAddresses(w http.ResponseWriter, r *http.Request, id string) {
	client, ok := s.factoryClient(w, r, id)
	if !ok {
		return
	}
	ctx := r.Context()

	var body models.AddressBatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.sendError(w, r, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Queries) == 0 || len(body.Queries) > maxBatchSize {
		s.sendError(w, r, fmt.Sprintf("queries must hold between 1 and %d entries", maxBatchSize), http.StatusBadRequest)
		return
	}

	if err := s.requireFactory(ctx, client.Address()); err != nil {
		s.sendError(w, r, err.Error(), StatusForError(err))
		return
	}

	factoryAddr := client.Address()
	deriver := s.ledger.Deriver()
	calculate := func(_ context.Context, q models.AddressQuery) (models.AddressResponse, error) {
		deployer, err := host.ParseAddress(q.Deployer)
		if err != nil {
			return models.AddressResponse{}, err
		}
		salt, err := host.ParseSalt(q.Salt)
		if err != nil {
			return models.AddressResponse{}, err
		}
		metrics.AddressCalculations.Inc()
		return models.AddressResponse{
			Factory:  factoryAddr.String(),
			Deployer: deployer.String(),
			Salt:     salt.String(),
			Address:  deriver.Derive(factoryAddr, deployer, salt).String(),
		}, nil
	}

	addresses := make([]models.AddressResponse, 0, len(body.Queries))
	err := pipeline.Run(ctx, pipeline.Config{ResultsBufferSize: len(body.Queries)}, body.Queries, calculate,
		func(result pipeline.Result[models.AddressResponse]) error {
			if result.Err != nil {
				q := body.Queries[result.Index]
				addresses = append(addresses, models.AddressResponse{
					Factory:  factoryAddr.String(),
					Deployer: q.Deployer,
					Salt:     q.Salt,
					Error:    result.Err.Error(),
				})
				return nil
			}
			addresses = append(addresses, result.Output)
			return nil
		})
	if err != nil {
		slog.Error("Batch address calculation failed", "request_id", RequestID(ctx), "factory", id, "error", err)
		s.sendError(w, r, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, r, http.StatusOK, models.AddressBatchResponse{Addresses: addresses})
}

// handleDeployInvocation returns the invocation tree the deployer must sign
// POST /factories/{id}/invocation
func (s *Server) handleDeployInvocation(w http.ResponseWriter, r *http.Request, id string) {
	client, ok := s.factoryClient(w, r, id)
	if !ok {
		return
	}
	req, _, ok := s.decodeDeployRequest(w, r)
	if !ok {
		return
	}

	inv, err := client.DeployInvocation(req)
	if err != nil {
		s.sendError(w, r, err.Error(), StatusForError(err))
		return
	}
	encoded, err := EncodeInvocation(inv)
	if err != nil {
		s.sendError(w, r, "Internal server error", http.StatusInternalServerError)
		return
	}

	deriver := s.ledger.Deriver()
	s.sendJSON(w, r, http.StatusOK, models.InvocationResponse{
		Invocation: encoded,
		Address:    deriver.Derive(client.Address(), req.Deployer, req.Salt).String(),
	})
}

// handleDeploy deploys and initializes a contract through a factory
// POST /factories/{id}/deploy
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request, id string) {
	client, ok := s.factoryClient(w, r, id)
	if !ok {
		return
	}
	req, creds, ok := s.decodeDeployRequest(w, r)
	if !ok {
		return
	}

	verifier := auth.NewSignatureVerifier(s.networkPassphrase, creds...)

	result, err := client.Deploy(r.Context(), verifier, req)
	if err != nil {
		status := StatusForError(err)
		if status == http.StatusInternalServerError {
			slog.Error("Deployment failed", "request_id", RequestID(r.Context()), "factory", id, "error", err)
		}
		s.sendError(w, r, err.Error(), status)
		return
	}

	s.sendJSON(w, r, http.StatusCreated, models.DeployResponse{
		ContractID: result.Address.String(),
		InitResult: scval.ToInterface(result.InitResult),
		LedgerSeq:  s.ledger.LastClosed().Sequence,
	})
}

// factoryClient resolves the factory contract addressed by a request
func (s *Server) factoryClient(w http.ResponseWriter, r *http.Request, id string) (*factory.Client, bool) {
	addr, err := host.ParseAddress(id)
	if err != nil || addr.Kind() != host.KindContract {
		s.sendError(w, r, "Invalid factory ID", http.StatusBadRequest)
		return nil, false
	}
	return factory.NewClient(s.ledger, addr), true
}

// requireFactory checks that a contract instance running the factory code exists at addr
func (s *Server) requireFactory(ctx context.Context, addr host.Address) error {
	instance, err := s.ledger.Store().GetInstance(ctx, addr)
	if err != nil {
		return err
	}
	if instance.WasmHash != host.HashCode(factory.Code).String() {
		return fmt.Errorf("%w: %s is not a factory", host.ErrUnknownFunction, addr)
	}
	return nil
}

func (s *Server) decodeDeployRequest(w http.ResponseWriter, r *http.Request) (factory.DeployRequest, []auth.Credential, bool) {
	var body models.DeployRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.sendError(w, r, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return factory.DeployRequest{}, nil, false
	}

	req, creds, err := ParseDeployRequest(body)
	if err != nil {
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
		return factory.DeployRequest{}, nil, false
	}
	return req, creds, true
}

// sendJSON sends a JSON response and counts it
func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	metrics.HTTPRequests.WithLabelValues(routeLabel(r.URL.Path), strconv.Itoa(code)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, message string, code int) {
	s.sendJSON(w, r, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
