package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"deployer/internal/debug"
	"deployer/internal/host"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
)

// Credential is an account's signature over one invocation tree
type Credential struct {
	Address          host.Address
	Nonce            int64
	ExpirationLedger uint32
	Signature        []byte
}

// Sign produces a credential for inv signed by kp
func Sign(kp *keypair.Full, networkPassphrase string, inv xdr.SorobanAuthorizedInvocation, nonce int64, expirationLedger uint32) (Credential, error) {
	addr, err := host.ParseAddress(kp.Address())
	if err != nil {
		return Credential{}, err
	}

	payload, err := Payload(network.ID(networkPassphrase), nonce, expirationLedger, inv)
	if err != nil {
		return Credential{}, err
	}

	sig, err := kp.Sign(payload[:])
	if err != nil {
		return Credential{}, fmt.Errorf("failed to sign authorization payload: %w", err)
	}

	return Credential{
		Address:          addr,
		Nonce:            nonce,
		ExpirationLedger: expirationLedger,
		Signature:        sig,
	}, nil
}

// SignatureVerifier approves a request only if one of its credentials is a valid,
// unexpired signature by the requested address over the exact invocation.
// Each credential authorizes at most one request.
type SignatureVerifier struct {
	networkID   [32]byte
	mu          sync.Mutex
	credentials []Credential
	used        []bool
}

// NewSignatureVerifier creates a verifier for one transaction's credentials
func NewSignatureVerifier(networkPassphrase string, credentials ...Credential) *SignatureVerifier {
	return &SignatureVerifier{
		networkID:   network.ID(networkPassphrase),
		credentials: credentials,
		used:        make([]bool, len(credentials)),
	}
}

// RequireAuth implements Authorizer
func (v *SignatureVerifier) RequireAuth(_ context.Context, req Request) error {
	if req.Address.Kind() != host.KindAccount {
		return fmt.Errorf("%w: %s cannot sign", host.ErrAuthorizationDenied, req.Address)
	}

	signer, err := keypair.ParseAddress(req.Address.String())
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrAuthorizationDenied, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i, cred := range v.credentials {
		if v.used[i] || cred.Address != req.Address {
			continue
		}
		if req.LedgerSeq > cred.ExpirationLedger {
			slog.Debug("Auth: credential expired",
				"address", req.Address.String(),
				"expiration_ledger", cred.ExpirationLedger,
				"ledger", req.LedgerSeq,
			)
			continue
		}

		payload, err := Payload(v.networkID, cred.Nonce, cred.ExpirationLedger, req.Invocation)
		if err != nil {
			return err
		}
		if err := signer.Verify(payload[:], cred.Signature); err != nil {
			continue
		}

		v.used[i] = true
		return nil
	}

	debug.PrintInvocation("Auth: no valid signature for invocation", req.Invocation)
	return fmt.Errorf("%w: no valid signature from %s", host.ErrAuthorizationDenied, req.Address)
}
