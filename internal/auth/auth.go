// Package auth decides whether an address consented to a contract invocation.
//
// Authorizers are capabilities handed to the ledger per transaction: tests use a
// Recorder that approves and records every request, production uses a
// SignatureVerifier that checks ed25519 credentials.
package auth

import (
	"context"
	"crypto/sha256"
	"fmt"

	"deployer/internal/host"

	"github.com/stellar/go/xdr"
)

// Request asks an authorizer whether Address consented to Invocation
type Request struct {
	Address    host.Address
	Invocation xdr.SorobanAuthorizedInvocation
	LedgerSeq  uint32 // sequence of the ledger the transaction will close in
}

// Authorizer approves or rejects authorization requests
type Authorizer interface {
	RequireAuth(ctx context.Context, req Request) error
}

// Deny rejects every request
type Deny struct{}

// RequireAuth implements Authorizer
func (Deny) RequireAuth(_ context.Context, req Request) error {
	return fmt.Errorf("%w: %s", host.ErrAuthorizationDenied, req.Address)
}

// ContractInvocation builds the authorized invocation of fn on contract with args
func ContractInvocation(contract host.Address, fn string, args []xdr.ScVal, subs ...xdr.SorobanAuthorizedInvocation) (xdr.SorobanAuthorizedInvocation, error) {
	sc, err := contract.ScAddress()
	if err != nil {
		return xdr.SorobanAuthorizedInvocation{}, err
	}

	return xdr.SorobanAuthorizedInvocation{
		Function: xdr.SorobanAuthorizedFunction{
			Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
			ContractFn: &xdr.InvokeContractArgs{
				ContractAddress: sc,
				FunctionName:    xdr.ScSymbol(fn),
				Args:            append([]xdr.ScVal{}, args...),
			},
		},
		SubInvocations: append([]xdr.SorobanAuthorizedInvocation{}, subs...),
	}, nil
}

// CreateContractInvocation builds the authorized invocation of the create-contract host
// function for the given preimage and wasm code
func CreateContractInvocation(preimage xdr.ContractIdPreimage, code host.CodeHash) xdr.SorobanAuthorizedInvocation {
	wasm := xdr.Hash(code)
	return xdr.SorobanAuthorizedInvocation{
		Function: xdr.SorobanAuthorizedFunction{
			Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeCreateContractHostFn,
			CreateContractHostFn: &xdr.CreateContractArgs{
				ContractIdPreimage: preimage,
				Executable: xdr.ContractExecutable{
					Type:     xdr.ContractExecutableTypeContractExecutableWasm,
					WasmHash: &wasm,
				},
			},
		},
		SubInvocations: []xdr.SorobanAuthorizedInvocation{},
	}
}

// Payload returns the hash a credential signs: sha256 of the XDR
// HashIdPreimage for SOROBAN_AUTHORIZATION
func Payload(networkID [32]byte, nonce int64, expirationLedger uint32, inv xdr.SorobanAuthorizedInvocation) ([32]byte, error) {
	preimage := xdr.HashIdPreimage{
		Type: xdr.EnvelopeTypeEnvelopeTypeSorobanAuthorization,
		SorobanAuthorization: &xdr.HashIdPreimageSorobanAuthorization{
			NetworkId:                 xdr.Hash(networkID),
			Nonce:                     xdr.Int64(nonce),
			SignatureExpirationLedger: xdr.Uint32(expirationLedger),
			Invocation:                inv,
		},
	}

	raw, err := preimage.MarshalBinary()
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to marshal authorization preimage: %w", err)
	}
	return sha256.Sum256(raw), nil
}

// SameInvocation compares two invocation trees by their XDR encoding
func SameInvocation(a, b xdr.SorobanAuthorizedInvocation) bool {
	ra, errA := a.MarshalBinary()
	rb, errB := b.MarshalBinary()
	if errA != nil || errB != nil {
		return false
	}
	return string(ra) == string(rb)
}
