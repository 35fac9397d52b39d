// Package host defines the narrow interface between contracts and the ledger
// that executes them, together with the value types both sides share.
package host

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/stellar/go/xdr"
)

var (
	// ErrAuthorizationDenied is returned when an address did not authorize the current call
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrAddressAlreadyClaimed is returned when a contract instance already exists at the target address
	ErrAddressAlreadyClaimed = errors.New("address already claimed")

	// ErrInitializationFailed is returned when the initializer of a freshly deployed contract fails
	ErrInitializationFailed = errors.New("initialization failed")

	// ErrInvalidCodeReference is returned when a code hash does not match any uploaded code
	ErrInvalidCodeReference = errors.New("invalid code reference")

	ErrContractNotFound   = errors.New("contract not found")
	ErrNoExecutable       = errors.New("no executable registered for code")
	ErrUnknownFunction    = errors.New("unknown function")
	ErrInvalidArguments   = errors.New("invalid arguments")
	ErrCallDepthExceeded  = errors.New("call depth exceeded")
	ErrContractPanicked   = errors.New("contract panicked")
	ErrAlreadyInitialized = errors.New("already initialized")
)

// CodeHash is the sha256 of an uploaded code blob
type CodeHash [32]byte

// HashCode computes the code hash of a blob
func HashCode(code []byte) CodeHash {
	return CodeHash(sha256.Sum256(code))
}

// ParseCodeHash decodes a hex encoded code hash
func ParseCodeHash(s string) (CodeHash, error) {
	var h CodeHash
	if err := decodeHex32(s, h[:]); err != nil {
		return CodeHash{}, fmt.Errorf("invalid code hash: %w", err)
	}
	return h, nil
}

// String returns the hex encoding of the hash
func (h CodeHash) String() string {
	return hex.EncodeToString(h[:])
}

// Salt diversifies derived contract addresses. All values are valid.
type Salt [32]byte

// ParseSalt decodes a hex encoded salt
func ParseSalt(s string) (Salt, error) {
	var salt Salt
	if err := decodeHex32(s, salt[:]); err != nil {
		return Salt{}, fmt.Errorf("invalid salt: %w", err)
	}
	return salt, nil
}

// String returns the hex encoding of the salt
func (s Salt) String() string {
	return hex.EncodeToString(s[:])
}

func decodeHex32(s string, dst []byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(dst, raw)
	return nil
}

// Env is the view of the ledger given to a contract for the duration of one call frame.
// All effects made through an Env belong to the enclosing transaction and are
// discarded together if the transaction fails.
type Env interface {
	// CurrentContractAddress returns the address of the executing contract
	CurrentContractAddress() Address

	// RequireAuth fails unless addr authorized the current call (contract, function and
	// all arguments), optionally together with the given sub-invocations
	RequireAuth(ctx context.Context, addr Address, subInvocations ...xdr.SorobanAuthorizedInvocation) error

	// DeployContract creates an instance of code at the address derived from
	// (current contract, deployer, salt). Fails if that address is already claimed.
	DeployContract(ctx context.Context, deployer Address, salt Salt, code CodeHash) (Address, error)

	// InvokeContract calls fn on another contract within the same transaction
	InvokeContract(ctx context.Context, contract Address, fn string, args []xdr.ScVal) (xdr.ScVal, error)

	// Get reads a value from the current contract's instance storage
	Get(ctx context.Context, key string) (xdr.ScVal, bool, error)

	// Set writes a value to the current contract's instance storage
	Set(ctx context.Context, key string, val xdr.ScVal) error
}

// Program is the executable behind a code hash
type Program interface {
	Call(ctx context.Context, env Env, fn string, args []xdr.ScVal) (xdr.ScVal, error)
}

// ProgramFunc adapts a function to the Program interface
type ProgramFunc func(ctx context.Context, env Env, fn string, args []xdr.ScVal) (xdr.ScVal, error)

// Call implements Program
func (f ProgramFunc) Call(ctx context.Context, env Env, fn string, args []xdr.ScVal) (xdr.ScVal, error) {
	return f(ctx, env, fn, args)
}
