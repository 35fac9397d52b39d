// Package ledger executes contract calls against a Store.
//
// Every top-level call is one transaction: all effects of the call and of every
// nested call commit together or are rolled back together. Contracts rely on
// this for atomicity instead of implementing their own compensation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deployer/internal/address"
	"deployer/internal/auth"
	"deployer/internal/host"
	"deployer/internal/metrics"
	"deployer/internal/models"
	"deployer/internal/storage"

	"github.com/stellar/go/xdr"
)

// MaxCallDepth bounds nested contract calls within one transaction
const MaxCallDepth = 16

// Call describes a top-level contract invocation
type Call struct {
	Contract   host.Address
	Function   string
	Args       []xdr.ScVal
	Authorizer auth.Authorizer // nil rejects every authorization request
}

// Ledger is the host that stores contracts and runs their code
type Ledger struct {
	store   storage.Store
	deriver *address.Deriver

	// Transactions are processed one at a time
	txMu sync.Mutex

	programsMu sync.RWMutex
	programs   map[host.CodeHash]host.Program

	lastMu     sync.RWMutex
	lastClosed models.LedgerInfo
}

// New creates a Ledger over store. Addresses of deployed contracts are computed by deriver.
func New(store storage.Store, deriver *address.Deriver) *Ledger {
	return &Ledger{
		store:    store,
		deriver:  deriver,
		programs: make(map[host.CodeHash]host.Program),
	}
}

// Deriver returns the address deriver used for deployments
func (l *Ledger) Deriver() *address.Deriver {
	return l.deriver
}

// Store returns the underlying store
func (l *Ledger) Store() storage.Store {
	return l.store
}

// LastClosed returns information about the last committed transaction
func (l *Ledger) LastClosed() models.LedgerInfo {
	l.lastMu.RLock()
	defer l.lastMu.RUnlock()
	return l.lastClosed
}

// UploadCode stores code and binds program as its executable. Uploading the same code
// again is a no-op that rebinds the program.
func (l *Ledger) UploadCode(ctx context.Context, code []byte, program host.Program) (host.CodeHash, error) {
	hash := host.HashCode(code)

	err := l.transact(ctx, func(tx storage.Tx, _ uint32) error {
		return tx.PutCode(ctx, hash, code)
	})
	if err != nil {
		return host.CodeHash{}, fmt.Errorf("failed to upload code: %w", err)
	}

	l.bind(hash, program)

	slog.Info("Ledger: code uploaded",
		"wasm_hash", hash.String(),
		"size", len(code),
	)
	return hash, nil
}

// RegisterContract creates an instance of code at the contract address id without going
// through a factory. It is how root contracts such as factories come to exist.
func (l *Ledger) RegisterContract(ctx context.Context, id [32]byte, code []byte, program host.Program) (host.Address, error) {
	hash := host.HashCode(code)
	addr := host.ContractAddress(id)

	err := l.transact(ctx, func(tx storage.Tx, seq uint32) error {
		if err := tx.PutCode(ctx, hash, code); err != nil {
			return err
		}
		return tx.CreateInstance(ctx, &models.ContractInstance{
			ContractID:      addr.String(),
			WasmHash:        hash.String(),
			CreatedAtLedger: seq,
			CreatedAt:       time.Now().UTC(),
		})
	})
	l.bind(hash, program)
	if err != nil {
		return addr, fmt.Errorf("failed to register contract: %w", err)
	}

	slog.Info("Ledger: contract registered",
		"contract_id", addr.String(),
		"wasm_hash", hash.String(),
	)
	return addr, nil
}

// Invoke runs call as one transaction and commits its effects if it succeeds
func (l *Ledger) Invoke(ctx context.Context, call Call) (xdr.ScVal, error) {
	return l.run(ctx, call, true)
}

// Simulate runs call as one transaction and always discards its effects
func (l *Ledger) Simulate(ctx context.Context, call Call) (xdr.ScVal, error) {
	return l.run(ctx, call, false)
}

func (l *Ledger) run(ctx context.Context, call Call, commit bool) (xdr.ScVal, error) {
	start := time.Now()
	var result xdr.ScVal

	err := l.transactWith(ctx, commit, func(tx storage.Tx, seq uint32) error {
		frame := &env{
			ledger:     l,
			tx:         tx,
			authorizer: call.Authorizer,
			seq:        seq,
		}

		var err error
		result, err = frame.call(ctx, call.Contract, call.Function, call.Args)
		return err
	})

	outcome := "committed"
	switch {
	case err != nil:
		outcome = "rolled_back"
	case !commit:
		outcome = "simulated"
	}
	metrics.TransactionsTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		slog.Debug("Ledger: transaction rolled back",
			"contract", call.Contract.String(),
			"function", call.Function,
			"error", err,
		)
		return xdr.ScVal{}, err
	}

	if commit {
		seq, _ := l.store.LedgerSequence(ctx)
		l.lastMu.Lock()
		l.lastClosed = models.LedgerInfo{
			Sequence:   seq,
			Contract:   call.Contract.String(),
			Function:   call.Function,
			ClosedAt:   time.Now().UTC(),
			DurationMs: time.Since(start).Milliseconds(),
		}
		l.lastMu.Unlock()
		metrics.CurrentLedger.Set(float64(seq))
	}

	return result, nil
}

func (l *Ledger) transact(ctx context.Context, fn func(tx storage.Tx, seq uint32) error) error {
	return l.transactWith(ctx, true, fn)
}

// transactWith opens a store transaction for the next ledger sequence, runs fn and
// commits only if fn succeeded and commit is set
func (l *Ledger) transactWith(ctx context.Context, commit bool, fn func(tx storage.Tx, seq uint32) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.txMu.Lock()
	defer l.txMu.Unlock()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil || !commit {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("Ledger: rollback failed", "error", rbErr)
				err = errors.Join(err, rbErr)
			}
		}
	}()

	current, err := tx.LedgerSequence(ctx)
	if err != nil {
		return err
	}
	seq := current + 1

	if err := fn(tx, seq); err != nil {
		return err
	}
	if !commit {
		return nil
	}

	if err := tx.SetLedgerSequence(ctx, seq); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *Ledger) bind(hash host.CodeHash, program host.Program) {
	if program == nil {
		return
	}
	l.programsMu.Lock()
	l.programs[hash] = program
	l.programsMu.Unlock()
}

func (l *Ledger) program(hash host.CodeHash) (host.Program, bool) {
	l.programsMu.RLock()
	defer l.programsMu.RUnlock()
	p, ok := l.programs[hash]
	return p, ok
}
