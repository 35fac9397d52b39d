// Package factory deploys contracts at deterministic addresses and initializes them
// in the same transaction, so an uninitialized instance is never observable.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deployer/internal/address"
	"deployer/internal/auth"
	"deployer/internal/host"
	"deployer/internal/metrics"

	"github.com/stellar/go/xdr"
)

// DeployRequest holds the arguments of a deploy call
type DeployRequest struct {
	Deployer host.Address
	WasmHash host.CodeHash
	Salt     host.Salt
	InitFn   string
	InitArgs []xdr.ScVal
}

// DeployResult is returned by a successful deploy
type DeployResult struct {
	Address    host.Address
	InitResult xdr.ScVal
}

// Factory implements the deploy and calculate_address operations.
// It keeps no state: addresses come from the deriver, uniqueness from the host.
type Factory struct {
	deriver *address.Deriver
}

// New creates a Factory. deriver must be the one the host uses for deployments.
func New(deriver *address.Deriver) *Factory {
	return &Factory{deriver: deriver}
}

// Deploy authorizes the deployer, instantiates the code at the derived address and calls
// the initializer. Any failure aborts the call; the host discards the partial effects.
//
// Authorization is skipped only when the deployer is the factory itself. Otherwise the
// deployer must have authorized this exact call, including code, salt and init arguments.
func (f *Factory) Deploy(ctx context.Context, env host.Env, req DeployRequest) (*DeployResult, error) {
	start := time.Now()
	self := env.CurrentContractAddress()

	result, err := f.deploy(ctx, env, self, req)
	metrics.DeployDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := FailureReason(err)
		metrics.DeployFailures.WithLabelValues(reason).Inc()
		slog.Warn("Factory: deploy failed",
			"factory", self.String(),
			"deployer", req.Deployer.String(),
			"salt", req.Salt.String(),
			"wasm_hash", req.WasmHash.String(),
			"reason", reason,
			"error", err,
		)
		return nil, err
	}

	metrics.DeploymentsTotal.Inc()
	slog.Info("✅ Factory: contract deployed",
		"factory", self.String(),
		"contract_id", result.Address.String(),
		"deployer", req.Deployer.String(),
		"wasm_hash", req.WasmHash.String(),
		"init_fn", req.InitFn,
	)
	return result, nil
}

func (f *Factory) deploy(ctx context.Context, env host.Env, self host.Address, req DeployRequest) (*DeployResult, error) {
	if req.Deployer != self {
		create := auth.CreateContractInvocation(f.deriver.Preimage(self, req.Deployer, req.Salt), req.WasmHash)
		if err := env.RequireAuth(ctx, req.Deployer, create); err != nil {
			return nil, fmt.Errorf("deployer %s: %w", req.Deployer, err)
		}
	}

	deployed, err := env.DeployContract(ctx, req.Deployer, req.Salt, req.WasmHash)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate contract: %w", err)
	}

	initResult, err := env.InvokeContract(ctx, deployed, req.InitFn, req.InitArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", host.ErrInitializationFailed, req.InitFn, deployed, err)
	}

	return &DeployResult{Address: deployed, InitResult: initResult}, nil
}

// CalculateAddress returns the address Deploy assigns for (deployer, salt) on this
// factory. It is valid before, during and after the deployment.
func (f *Factory) CalculateAddress(env host.Env, deployer host.Address, salt host.Salt) host.Address {
	metrics.AddressCalculations.Inc()
	return f.deriver.Derive(env.CurrentContractAddress(), deployer, salt)
}

// FailureReason classifies a deploy error for metrics and API responses
func FailureReason(err error) string {
	switch {
	case errors.Is(err, host.ErrInitializationFailed):
		return "initialization_failed"
	case errors.Is(err, host.ErrAuthorizationDenied):
		return "authorization_denied"
	case errors.Is(err, host.ErrAddressAlreadyClaimed):
		return "address_already_claimed"
	case errors.Is(err, host.ErrInvalidCodeReference):
		return "invalid_code_reference"
	case errors.Is(err, host.ErrInvalidArguments):
		return "invalid_arguments"
	default:
		return "internal"
	}
}
