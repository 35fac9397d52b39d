package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"deployer/internal/host"
	"deployer/internal/models"
	"deployer/internal/scval"

	"github.com/stellar/go/xdr"
)

// memoryState is one immutable snapshot of the ledger
type memoryState struct {
	sequence  uint32
	code      map[host.CodeHash][]byte
	instances map[host.Address]*models.ContractInstance
	order     []host.Address // instance creation order
	data      map[host.Address]map[string][]byte
}

func newMemoryState() *memoryState {
	return &memoryState{
		code:      make(map[host.CodeHash][]byte),
		instances: make(map[host.Address]*models.ContractInstance),
		data:      make(map[host.Address]map[string][]byte),
	}
}

// clone copies the maps; code blobs and instance records are never mutated in place
func (s *memoryState) clone() *memoryState {
	next := &memoryState{
		sequence:  s.sequence,
		code:      make(map[host.CodeHash][]byte, len(s.code)),
		instances: make(map[host.Address]*models.ContractInstance, len(s.instances)),
		order:     append([]host.Address(nil), s.order...),
		data:      make(map[host.Address]map[string][]byte, len(s.data)),
	}
	for k, v := range s.code {
		next.code[k] = v
	}
	for k, v := range s.instances {
		next.instances[k] = v
	}
	for addr, entries := range s.data {
		copied := make(map[string][]byte, len(entries))
		for k, v := range entries {
			copied[k] = v
		}
		next.data[addr] = copied
	}
	return next
}

// MemoryStore keeps ledger state in process memory.
// A transaction works on a private snapshot which replaces the committed state on Commit.
type MemoryStore struct {
	writer sync.Mutex // held by the open transaction

	mu    sync.RWMutex // protects state
	state *memoryState
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// Begin implements Store
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writer.Lock()

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return &memoryTx{store: s, state: snapshot}, nil
}

func (s *MemoryStore) current() *memoryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// GetInstance implements Store
func (s *MemoryStore) GetInstance(_ context.Context, contractID host.Address) (*models.ContractInstance, error) {
	instance, ok := s.current().instances[contractID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrContractNotFound, contractID)
	}
	copied := *instance
	return &copied, nil
}

// ListInstances implements Store. Newest instances come first.
func (s *MemoryStore) ListInstances(_ context.Context, limit, offset int) ([]*models.ContractInstance, error) {
	state := s.current()

	var result []*models.ContractInstance
	for i := len(state.order) - 1 - offset; i >= 0 && len(result) < limit; i-- {
		copied := *state.instances[state.order[i]]
		result = append(result, &copied)
	}
	return result, nil
}

// ListStorage implements Store
func (s *MemoryStore) ListStorage(_ context.Context, contractID host.Address) ([]models.StorageEntry, error) {
	entries := s.current().data[contractID]

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]models.StorageEntry, 0, len(keys))
	for _, k := range keys {
		entry, err := storageEntry(contractID, k, entries[k])
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

// LedgerSequence implements Store
func (s *MemoryStore) LedgerSequence(_ context.Context) (uint32, error) {
	return s.current().sequence, nil
}

// Ping implements Store
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}

type memoryTx struct {
	store *MemoryStore
	state *memoryState
	done  bool
}

func (t *memoryTx) check() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	return nil
}

func (t *memoryTx) LedgerSequence(_ context.Context) (uint32, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	return t.state.sequence, nil
}

func (t *memoryTx) SetLedgerSequence(_ context.Context, seq uint32) error {
	if err := t.check(); err != nil {
		return err
	}
	t.state.sequence = seq
	return nil
}

func (t *memoryTx) PutCode(_ context.Context, hash host.CodeHash, code []byte) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.state.code[hash]; ok {
		return nil
	}
	t.state.code[hash] = append([]byte(nil), code...)
	return nil
}

func (t *memoryTx) HasCode(_ context.Context, hash host.CodeHash) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	_, ok := t.state.code[hash]
	return ok, nil
}

func (t *memoryTx) CreateInstance(_ context.Context, instance *models.ContractInstance) error {
	if err := t.check(); err != nil {
		return err
	}
	addr, err := host.ParseAddress(instance.ContractID)
	if err != nil {
		return err
	}
	if _, exists := t.state.instances[addr]; exists {
		return fmt.Errorf("%w: %s", host.ErrAddressAlreadyClaimed, addr)
	}

	copied := *instance
	t.state.instances[addr] = &copied
	t.state.order = append(t.state.order, addr)
	return nil
}

func (t *memoryTx) GetInstance(_ context.Context, contractID host.Address) (*models.ContractInstance, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	instance, ok := t.state.instances[contractID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrContractNotFound, contractID)
	}
	copied := *instance
	return &copied, nil
}

func (t *memoryTx) GetData(_ context.Context, contractID host.Address, key string) (xdr.ScVal, bool, error) {
	if err := t.check(); err != nil {
		return xdr.ScVal{}, false, err
	}
	raw, ok := t.state.data[contractID][key]
	if !ok {
		return xdr.ScVal{}, false, nil
	}

	var val xdr.ScVal
	if err := val.UnmarshalBinary(raw); err != nil {
		return xdr.ScVal{}, false, fmt.Errorf("failed to decode storage value: %w", err)
	}
	return val, true, nil
}

func (t *memoryTx) PutData(_ context.Context, contractID host.Address, key string, val xdr.ScVal) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.state.instances[contractID]; !ok {
		return fmt.Errorf("%w: %s", host.ErrContractNotFound, contractID)
	}

	raw, err := val.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode storage value: %w", err)
	}

	entries, ok := t.state.data[contractID]
	if !ok {
		entries = make(map[string][]byte)
		t.state.data[contractID] = entries
	}
	entries[key] = raw
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true

	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()

	t.store.writer.Unlock()
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.writer.Unlock()
	return nil
}

// storageEntry decodes a raw storage value into its API model
func storageEntry(contractID host.Address, key string, raw []byte) (models.StorageEntry, error) {
	var val xdr.ScVal
	if err := val.UnmarshalBinary(raw); err != nil {
		return models.StorageEntry{}, fmt.Errorf("failed to decode storage value %q: %w", key, err)
	}
	return models.StorageEntry{
		ContractID: contractID.String(),
		Key:        key,
		Value:      scval.ToInterface(val),
		ValueType:  val.Type.String(),
		RawValue:   raw,
	}, nil
}
