package auth

import (
	"context"
	"sync"

	"deployer/internal/host"

	"github.com/stellar/go/xdr"
)

// Authorization is one approved request
type Authorization struct {
	Address    host.Address
	Invocation xdr.SorobanAuthorizedInvocation
}

// Recorder approves every request and remembers it
type Recorder struct {
	mu    sync.Mutex
	auths []Authorization
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RequireAuth implements Authorizer
func (r *Recorder) RequireAuth(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auths = append(r.auths, Authorization{Address: req.Address, Invocation: req.Invocation})
	return nil
}

// Auths returns the requests seen so far, oldest first
func (r *Recorder) Auths() []Authorization {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Authorization(nil), r.auths...)
}
