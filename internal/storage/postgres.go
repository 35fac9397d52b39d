package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"deployer/internal/host"
	"deployer/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stellar/go/xdr"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements the Store interface using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and applies the schema
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// migrate applies schema.sql one statement at a time
func (s *PostgresStore) migrate(ctx context.Context) error {
	applied := 0
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		applied++
	}

	slog.Debug("Storage: schema applied", "statements", applied)
	return nil
}

// Begin implements Store. The ledger_state row is locked for the lifetime of the
// transaction, which serializes writers across processes.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var seq int64
	err = tx.QueryRow(ctx, `SELECT sequence FROM ledger_state WHERE id = 1 FOR UPDATE`).Scan(&seq)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to lock ledger state: %w", err)
	}

	return &postgresTx{tx: tx, sequence: uint32(seq)}, nil
}

// GetInstance implements Store
func (s *PostgresStore) GetInstance(ctx context.Context, contractID host.Address) (*models.ContractInstance, error) {
	return getInstance(ctx, s.pool, contractID)
}

// ListInstances implements Store. Newest instances come first.
func (s *PostgresStore) ListInstances(ctx context.Context, limit, offset int) ([]*models.ContractInstance, error) {
	query := `
		SELECT
			contract_id, factory_contract_id, deployer, salt, wasm_hash,
			created_at_ledger, created_at
		FROM contract_instances
		ORDER BY created_at_ledger DESC, contract_id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contract instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.ContractInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contract instances: %w", err)
	}

	return instances, nil
}

// ListStorage implements Store
func (s *PostgresStore) ListStorage(ctx context.Context, contractID host.Address) ([]models.StorageEntry, error) {
	query := `SELECT key, value FROM contract_storage WHERE contract_id = $1 ORDER BY key`

	rows, err := s.pool.Query(ctx, query, contractID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list contract storage: %w", err)
	}
	defer rows.Close()

	var entries []models.StorageEntry
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan storage entry: %w", err)
		}
		entry, err := storageEntry(contractID, key, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating storage entries: %w", err)
	}

	return entries, nil
}

// LedgerSequence implements Store
func (s *PostgresStore) LedgerSequence(ctx context.Context) (uint32, error) {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT sequence FROM ledger_state WHERE id = 1`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read ledger sequence: %w", err)
	}
	return uint32(seq), nil
}

// Ping implements Store
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// querier is the subset shared by *pgxpool.Pool and pgx.Tx
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getInstance(ctx context.Context, q querier, contractID host.Address) (*models.ContractInstance, error) {
	query := `
		SELECT
			contract_id, factory_contract_id, deployer, salt, wasm_hash,
			created_at_ledger, created_at
		FROM contract_instances
		WHERE contract_id = $1
	`

	instance, err := scanInstance(q.QueryRow(ctx, query, contractID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", host.ErrContractNotFound, contractID)
	}
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func scanInstance(row pgx.Row) (*models.ContractInstance, error) {
	var instance models.ContractInstance
	var wasmHash []byte
	var createdAtLedger int64

	err := row.Scan(
		&instance.ContractID,
		&instance.FactoryContractID,
		&instance.Deployer,
		&instance.Salt,
		&wasmHash,
		&createdAtLedger,
		&instance.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contract instance: %w", err)
	}

	var hash host.CodeHash
	copy(hash[:], wasmHash)
	instance.WasmHash = hash.String()
	instance.CreatedAtLedger = uint32(createdAtLedger)
	return &instance, nil
}

type postgresTx struct {
	tx       pgx.Tx
	sequence uint32
}

func (t *postgresTx) LedgerSequence(_ context.Context) (uint32, error) {
	return t.sequence, nil
}

func (t *postgresTx) SetLedgerSequence(ctx context.Context, seq uint32) error {
	_, err := t.tx.Exec(ctx, `UPDATE ledger_state SET sequence = $1, updated_at = $2 WHERE id = 1`, int64(seq), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update ledger sequence: %w", err)
	}
	t.sequence = seq
	return nil
}

func (t *postgresTx) PutCode(ctx context.Context, hash host.CodeHash, code []byte) error {
	query := `
		INSERT INTO contract_code (hash, code)
		VALUES ($1, $2)
		ON CONFLICT (hash) DO NOTHING
	`
	if _, err := t.tx.Exec(ctx, query, hash[:], code); err != nil {
		return fmt.Errorf("failed to save contract code: %w", err)
	}
	return nil
}

func (t *postgresTx) HasCode(ctx context.Context, hash host.CodeHash) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contract_code WHERE hash = $1)`, hash[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up contract code: %w", err)
	}
	return exists, nil
}

func (t *postgresTx) CreateInstance(ctx context.Context, instance *models.ContractInstance) error {
	hash, err := host.ParseCodeHash(instance.WasmHash)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contract_instances (
			contract_id, factory_contract_id, deployer, salt, wasm_hash,
			created_at_ledger, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contract_id) DO NOTHING
	`

	tag, err := t.tx.Exec(ctx, query,
		instance.ContractID,
		instance.FactoryContractID,
		instance.Deployer,
		instance.Salt,
		hash[:],
		int64(instance.CreatedAtLedger),
		instance.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save contract instance: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", host.ErrAddressAlreadyClaimed, instance.ContractID)
	}
	return nil
}

func (t *postgresTx) GetInstance(ctx context.Context, contractID host.Address) (*models.ContractInstance, error) {
	return getInstance(ctx, t.tx, contractID)
}

func (t *postgresTx) GetData(ctx context.Context, contractID host.Address, key string) (xdr.ScVal, bool, error) {
	var raw []byte
	err := t.tx.QueryRow(ctx,
		`SELECT value FROM contract_storage WHERE contract_id = $1 AND key = $2`,
		contractID.String(), key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return xdr.ScVal{}, false, nil
	}
	if err != nil {
		return xdr.ScVal{}, false, fmt.Errorf("failed to read storage value: %w", err)
	}

	var val xdr.ScVal
	if err := val.UnmarshalBinary(raw); err != nil {
		return xdr.ScVal{}, false, fmt.Errorf("failed to decode storage value: %w", err)
	}
	return val, true, nil
}

func (t *postgresTx) PutData(ctx context.Context, contractID host.Address, key string, val xdr.ScVal) error {
	raw, err := val.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode storage value: %w", err)
	}

	query := `
		INSERT INTO contract_storage (contract_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_id, key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := t.tx.Exec(ctx, query, contractID.String(), key, raw); err != nil {
		return fmt.Errorf("failed to save storage value: %w", err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
