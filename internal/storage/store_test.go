package storage

import (
	"context"
	"testing"
	"time"

	"deployer/internal/host"
	"deployer/internal/models"
	"deployer/internal/scval"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCode     = []byte("test/code")
	testCodeHash = host.HashCode(testCode)
)

func testInstance(id byte, seq uint32) *models.ContractInstance {
	return &models.ContractInstance{
		ContractID:        host.ContractAddress([32]byte{id}).String(),
		FactoryContractID: host.ContractAddress([32]byte{0xf}).String(),
		Deployer:          host.AccountAddress([32]byte{1}).String(),
		Salt:              host.Salt{id}.String(),
		WasmHash:          testCodeHash.String(),
		CreatedAtLedger:   seq,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
}

// runStoreSuite checks the behavior every Store implementation shares
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("commit makes writes visible", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		contract := host.ContractAddress([32]byte{1})

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.PutCode(ctx, testCodeHash, testCode))
		require.NoError(t, tx.CreateInstance(ctx, testInstance(1, 1)))
		require.NoError(t, tx.PutData(ctx, contract, "value", scval.U32(5)))
		require.NoError(t, tx.SetLedgerSequence(ctx, 1))

		// Reads outside the transaction still see committed state
		_, err = s.GetInstance(ctx, contract)
		assert.ErrorIs(t, err, host.ErrContractNotFound)

		require.NoError(t, tx.Commit(ctx))
		require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

		instance, err := s.GetInstance(ctx, contract)
		require.NoError(t, err)
		assert.Equal(t, testInstance(1, 1).ContractID, instance.ContractID)
		assert.Equal(t, testCodeHash.String(), instance.WasmHash)
		assert.Equal(t, uint32(1), instance.CreatedAtLedger)

		entries, err := s.ListStorage(ctx, contract)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "value", entries[0].Key)
		assert.Equal(t, uint32(5), entries[0].Value)
		assert.Equal(t, xdr.ScValTypeScvU32.String(), entries[0].ValueType)

		seq, err := s.LedgerSequence(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), seq)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.PutCode(ctx, testCodeHash, testCode))
		require.NoError(t, tx.CreateInstance(ctx, testInstance(1, 1)))
		require.NoError(t, tx.SetLedgerSequence(ctx, 1))
		require.NoError(t, tx.Rollback(ctx))

		_, err = s.GetInstance(ctx, host.ContractAddress([32]byte{1}))
		assert.ErrorIs(t, err, host.ErrContractNotFound)

		seq, err := s.LedgerSequence(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), seq)

		tx, err = s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)
		ok, err := tx.HasCode(ctx, testCodeHash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("an address is claimed once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		require.NoError(t, tx.PutCode(ctx, testCodeHash, testCode))
		require.NoError(t, tx.PutCode(ctx, testCodeHash, testCode), "code upload is idempotent")
		require.NoError(t, tx.CreateInstance(ctx, testInstance(1, 1)))

		err = tx.CreateInstance(ctx, testInstance(1, 2))
		assert.ErrorIs(t, err, host.ErrAddressAlreadyClaimed)
	})

	t.Run("data reads within the transaction", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		contract := host.ContractAddress([32]byte{1})

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		require.NoError(t, tx.PutCode(ctx, testCodeHash, testCode))
		require.NoError(t, tx.CreateInstance(ctx, testInstance(1, 1)))

		_, ok, err := tx.GetData(ctx, contract, "value")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, tx.PutData(ctx, contract, "value", scval.U32(1)))
		require.NoError(t, tx.PutData(ctx, contract, "value", scval.U32(2)))

		val, ok, err := tx.GetData(ctx, contract, "value")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, scval.Equal(scval.U32(2), val))

		instance, err := tx.GetInstance(ctx, contract)
		require.NoError(t, err)
		assert.Equal(t, contract.String(), instance.ContractID)
	})

	t.Run("instances are listed newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := byte(1); i <= 3; i++ {
			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.PutCode(ctx, testCodeHash, testCode))
			require.NoError(t, tx.CreateInstance(ctx, testInstance(i, uint32(i))))
			require.NoError(t, tx.SetLedgerSequence(ctx, uint32(i)))
			require.NoError(t, tx.Commit(ctx))
		}

		all, err := s.ListInstances(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, testInstance(3, 3).ContractID, all[0].ContractID)
		assert.Equal(t, testInstance(1, 1).ContractID, all[2].ContractID)

		page, err := s.ListInstances(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, testInstance(2, 2).ContractID, page[0].ContractID)

		none, err := s.ListInstances(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("transactions are serialized", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.Begin(ctx)
		require.NoError(t, err)

		started := make(chan struct{})
		acquired := make(chan Tx)
		go func() {
			close(started)
			tx, err := s.Begin(ctx)
			if err != nil {
				close(acquired)
				return
			}
			acquired <- tx
		}()

		<-started
		select {
		case <-acquired:
			t.Fatal("second transaction started while the first was open")
		case <-time.After(50 * time.Millisecond):
		}

		require.NoError(t, first.SetLedgerSequence(ctx, 1))
		require.NoError(t, first.Commit(ctx))

		second, ok := <-acquired
		require.True(t, ok)
		seq, err := second.LedgerSequence(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), seq, "the second transaction sees the first one's commit")
		require.NoError(t, second.Rollback(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_FinishedTransaction(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assert.Error(t, tx.Commit(ctx))
	_, err = tx.LedgerSequence(ctx)
	assert.Error(t, err)
}

func TestMemoryStore_DataRequiresInstance(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = tx.PutData(ctx, host.ContractAddress([32]byte{9}), "k", scval.U32(1))
	assert.ErrorIs(t, err, host.ErrContractNotFound)
}
