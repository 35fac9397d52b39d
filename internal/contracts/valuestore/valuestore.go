// Package valuestore is a minimal payload contract: it is initialized once with a
// value and returns it afterwards. It exists to be deployed through factories.
package valuestore

import (
	"context"
	"fmt"

	"deployer/internal/host"
	"deployer/internal/scval"

	"github.com/stellar/go/xdr"
)

const valueKey = "value"

// Code blobs for two builds of the contract. They behave the same but hash differently.
var (
	Code  = []byte("deployer/valuestore:v1")
	CodeB = []byte("deployer/valuestore:v1-b")
)

// Contract implements host.Program
//
//	init(value: u32)
//	value() -> u32
type Contract struct{}

// Call implements host.Program
func (Contract) Call(ctx context.Context, env host.Env, fn string, args []xdr.ScVal) (xdr.ScVal, error) {
	switch fn {
	case "init":
		if len(args) != 1 {
			return xdr.ScVal{}, fmt.Errorf("%w: init takes 1 argument, got %d", host.ErrInvalidArguments, len(args))
		}
		if _, err := scval.ToU32(args[0]); err != nil {
			return xdr.ScVal{}, err
		}

		_, exists, err := env.Get(ctx, valueKey)
		if err != nil {
			return xdr.ScVal{}, err
		}
		if exists {
			return xdr.ScVal{}, host.ErrAlreadyInitialized
		}

		if err := env.Set(ctx, valueKey, args[0]); err != nil {
			return xdr.ScVal{}, err
		}
		return scval.Void(), nil

	case "value":
		val, exists, err := env.Get(ctx, valueKey)
		if err != nil {
			return xdr.ScVal{}, err
		}
		if !exists {
			return xdr.ScVal{}, fmt.Errorf("not initialized")
		}
		return val, nil

	default:
		return xdr.ScVal{}, fmt.Errorf("%w: %s", host.ErrUnknownFunction, fn)
	}
}
