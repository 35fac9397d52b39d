package storage

import (
	"context"

	"deployer/internal/host"
	"deployer/internal/models"

	"github.com/stellar/go/xdr"
)

// Store persists ledger state: uploaded code, contract instances and their storage.
// Writes happen only through a Tx; the read methods see committed state.
type Store interface {
	// Begin starts a transaction. Transactions are serialized: Begin blocks (or the
	// first write blocks) until the previous transaction finishes.
	Begin(ctx context.Context) (Tx, error)

	// Committed state
	GetInstance(ctx context.Context, contractID host.Address) (*models.ContractInstance, error)
	ListInstances(ctx context.Context, limit, offset int) ([]*models.ContractInstance, error)
	ListStorage(ctx context.Context, contractID host.Address) ([]models.StorageEntry, error)
	LedgerSequence(ctx context.Context) (uint32, error)

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}

// Tx is one atomic unit of work against a Store
type Tx interface {
	// Ledger sequence of the last committed transaction
	LedgerSequence(ctx context.Context) (uint32, error)
	SetLedgerSequence(ctx context.Context, seq uint32) error

	// Code blobs
	PutCode(ctx context.Context, hash host.CodeHash, code []byte) error
	HasCode(ctx context.Context, hash host.CodeHash) (bool, error)

	// Contract instances. CreateInstance returns host.ErrAddressAlreadyClaimed if an
	// instance exists at the same address.
	CreateInstance(ctx context.Context, instance *models.ContractInstance) error
	GetInstance(ctx context.Context, contractID host.Address) (*models.ContractInstance, error)

	// Instance storage
	GetData(ctx context.Context, contractID host.Address, key string) (xdr.ScVal, bool, error)
	PutData(ctx context.Context, contractID host.Address, key string, val xdr.ScVal) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
