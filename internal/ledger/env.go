package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deployer/internal/auth"
	"deployer/internal/debug"
	"deployer/internal/host"
	"deployer/internal/models"
	"deployer/internal/storage"

	"github.com/stellar/go/xdr"
)

// env is one call frame. It implements host.Env for the contract it executes.
type env struct {
	ledger     *Ledger
	tx         storage.Tx
	authorizer auth.Authorizer
	seq        uint32

	contract host.Address
	function string
	args     []xdr.ScVal
	caller   host.Address // Zero for the top-level call
	depth    int
}

// call executes fn on contract in a new frame below e
func (e *env) call(ctx context.Context, contract host.Address, fn string, args []xdr.ScVal) (result xdr.ScVal, err error) {
	if e.depth >= MaxCallDepth {
		return xdr.ScVal{}, fmt.Errorf("%w: %d", host.ErrCallDepthExceeded, e.depth)
	}
	if err := ctx.Err(); err != nil {
		return xdr.ScVal{}, err
	}

	instance, err := e.tx.GetInstance(ctx, contract)
	if err != nil {
		return xdr.ScVal{}, err
	}
	hash, err := host.ParseCodeHash(instance.WasmHash)
	if err != nil {
		return xdr.ScVal{}, err
	}
	program, ok := e.ledger.program(hash)
	if !ok {
		return xdr.ScVal{}, fmt.Errorf("%w: %s", host.ErrNoExecutable, hash)
	}

	frame := &env{
		ledger:     e.ledger,
		tx:         e.tx,
		authorizer: e.authorizer,
		seq:        e.seq,
		contract:   contract,
		function:   fn,
		args:       args,
		caller:     e.contract,
		depth:      e.depth + 1,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Ledger: contract panicked",
				"contract", contract.String(),
				"function", fn,
				"panic", r,
			)
			result = xdr.ScVal{}
			err = fmt.Errorf("%w: %s.%s: %v", host.ErrContractPanicked, contract, fn, r)
		}
	}()

	return program.Call(ctx, frame, fn, args)
}

// CurrentContractAddress implements host.Env
func (e *env) CurrentContractAddress() host.Address {
	return e.contract
}

// RequireAuth implements host.Env. The authorized invocation is the current frame's
// contract, function and complete argument list. A contract that directly called the
// current frame is authorized implicitly.
func (e *env) RequireAuth(ctx context.Context, addr host.Address, subInvocations ...xdr.SorobanAuthorizedInvocation) error {
	if !e.caller.IsZero() && addr == e.caller {
		return nil
	}
	if e.authorizer == nil {
		return fmt.Errorf("%w: no authorizer for %s", host.ErrAuthorizationDenied, addr)
	}

	inv, err := auth.ContractInvocation(e.contract, e.function, e.args, subInvocations...)
	if err != nil {
		return err
	}

	return e.authorizer.RequireAuth(ctx, auth.Request{
		Address:    addr,
		Invocation: inv,
		LedgerSeq:  e.seq,
	})
}

// DeployContract implements host.Env
func (e *env) DeployContract(ctx context.Context, deployer host.Address, salt host.Salt, code host.CodeHash) (host.Address, error) {
	ok, err := e.tx.HasCode(ctx, code)
	if err != nil {
		return host.Address{}, err
	}
	if !ok {
		return host.Address{}, fmt.Errorf("%w: %s", host.ErrInvalidCodeReference, code)
	}

	addr := e.ledger.deriver.Derive(e.contract, deployer, salt)

	instance := &models.ContractInstance{
		ContractID:        addr.String(),
		FactoryContractID: e.contract.String(),
		Deployer:          deployer.String(),
		Salt:              salt.String(),
		WasmHash:          code.String(),
		CreatedAtLedger:   e.seq,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.tx.CreateInstance(ctx, instance); err != nil {
		return host.Address{}, err
	}
	debug.PrintInstance(instance)

	return addr, nil
}

// InvokeContract implements host.Env
func (e *env) InvokeContract(ctx context.Context, contract host.Address, fn string, args []xdr.ScVal) (xdr.ScVal, error) {
	return e.call(ctx, contract, fn, args)
}

// Get implements host.Env
func (e *env) Get(ctx context.Context, key string) (xdr.ScVal, bool, error) {
	return e.tx.GetData(ctx, e.contract, key)
}

// Set implements host.Env
func (e *env) Set(ctx context.Context, key string, val xdr.ScVal) error {
	return e.tx.PutData(ctx, e.contract, key, val)
}
