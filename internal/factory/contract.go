package factory

import (
	"context"
	"fmt"

	"deployer/internal/host"
	"deployer/internal/scval"

	"github.com/stellar/go/xdr"
)

// Entry points exposed by the factory contract
const (
	FnDeploy           = "deploy"
	FnCalculateAddress = "calculate_address"
)

// Code is the code blob the factory contract is registered under
var Code = []byte("deployer/factory:v1")

// Contract exposes a Factory as a host.Program
type Contract struct {
	factory *Factory
}

// NewContract wraps f so the ledger can call it
func NewContract(f *Factory) *Contract {
	return &Contract{factory: f}
}

// Call implements host.Program
//
//	deploy(deployer: Address, wasm_hash: BytesN<32>, salt: BytesN<32>, init_fn: Symbol, init_args: Vec<Val>) -> (Address, Val)
//	calculate_address(deployer: Address, salt: BytesN<32>) -> Address
func (c *Contract) Call(ctx context.Context, env host.Env, fn string, args []xdr.ScVal) (xdr.ScVal, error) {
	switch fn {
	case FnDeploy:
		req, err := DecodeDeployArgs(args)
		if err != nil {
			return xdr.ScVal{}, err
		}
		result, err := c.factory.Deploy(ctx, env, req)
		if err != nil {
			return xdr.ScVal{}, err
		}
		addr, err := scval.Address(result.Address)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return scval.Vec([]xdr.ScVal{addr, result.InitResult}), nil

	case FnCalculateAddress:
		if len(args) != 2 {
			return xdr.ScVal{}, fmt.Errorf("%w: %s takes 2 arguments, got %d", host.ErrInvalidArguments, fn, len(args))
		}
		deployer, err := scval.ToAddress(args[0])
		if err != nil {
			return xdr.ScVal{}, err
		}
		salt, err := scval.ToBytes32(args[1])
		if err != nil {
			return xdr.ScVal{}, err
		}
		return scval.Address(c.factory.CalculateAddress(env, deployer, host.Salt(salt)))

	default:
		return xdr.ScVal{}, fmt.Errorf("%w: %s", host.ErrUnknownFunction, fn)
	}
}

// EncodeDeployArgs returns the argument list of a deploy call
func EncodeDeployArgs(req DeployRequest) ([]xdr.ScVal, error) {
	if !scval.ValidSymbol(req.InitFn) {
		return nil, fmt.Errorf("%w: invalid init function name %q", host.ErrInvalidArguments, req.InitFn)
	}

	deployer, err := scval.Address(req.Deployer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", host.ErrInvalidArguments, err)
	}

	return []xdr.ScVal{
		deployer,
		scval.Bytes(req.WasmHash[:]),
		scval.Bytes(req.Salt[:]),
		scval.Symbol(req.InitFn),
		scval.Vec(req.InitArgs),
	}, nil
}

// DecodeDeployArgs parses the argument list of a deploy call
func DecodeDeployArgs(args []xdr.ScVal) (DeployRequest, error) {
	if len(args) != 5 {
		return DeployRequest{}, fmt.Errorf("%w: %s takes 5 arguments, got %d", host.ErrInvalidArguments, FnDeploy, len(args))
	}

	deployer, err := scval.ToAddress(args[0])
	if err != nil {
		return DeployRequest{}, err
	}
	wasmHash, err := scval.ToBytes32(args[1])
	if err != nil {
		return DeployRequest{}, err
	}
	salt, err := scval.ToBytes32(args[2])
	if err != nil {
		return DeployRequest{}, err
	}
	initFn, err := scval.ToSymbol(args[3])
	if err != nil {
		return DeployRequest{}, err
	}
	initArgs, err := scval.ToVec(args[4])
	if err != nil {
		return DeployRequest{}, err
	}

	return DeployRequest{
		Deployer: deployer,
		WasmHash: host.CodeHash(wasmHash),
		Salt:     host.Salt(salt),
		InitFn:   initFn,
		InitArgs: initArgs,
	}, nil
}
