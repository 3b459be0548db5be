package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage/memory"
)

func seedAccount(t *testing.T, store *memory.Store) uuid.UUID {
	t.Helper()
	account := &models.Account{
		ID:        uuid.New(),
		Balance:   decimal.NewFromInt(100),
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account.ID
}

func creditEntry(accountID uuid.UUID, ref string, amount int64) *models.Transaction {
	credit := decimal.NewFromInt(amount)
	return &models.Transaction{
		ID:             models.NewTransactionID(),
		AccountID:      accountID,
		Credit:         &credit,
		TransactionRef: ref,
		CreatedAt:      time.Now(),
	}
}

func TestCreateAccountRejectsDuplicateID(t *testing.T) {
	store := memory.NewStore()
	id := seedAccount(t, store)

	err := store.CreateAccount(context.Background(), &models.Account{ID: id})
	assert.ErrorIs(t, err, storage.ErrAccountExists)
}

func TestGetAccountForUpdateTimesOut(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.WithLockWait(30 * time.Millisecond))
	id := seedAccount(t, store)

	holder, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = holder.GetAccountForUpdate(ctx, id)
	require.NoError(t, err)

	// A second unit of work cannot get the row while the first holds it.
	waiter, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = waiter.GetAccountForUpdate(ctx, id)
	assert.ErrorIs(t, err, storage.ErrLockNotAvailable)
	require.NoError(t, waiter.Rollback(ctx))

	// Releasing the lock makes the row available again.
	require.NoError(t, holder.Rollback(ctx))
	retry, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = retry.GetAccountForUpdate(ctx, id)
	assert.NoError(t, err)
	require.NoError(t, retry.Rollback(ctx))
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	id := seedAccount(t, store)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	account, err := tx.GetAccountForUpdate(ctx, id)
	require.NoError(t, err)
	account.Balance = decimal.NewFromInt(42)
	require.NoError(t, tx.SaveAccount(ctx, account))
	require.NoError(t, tx.AppendTransaction(ctx, creditEntry(id, "ref-1", 42)))
	require.NoError(t, tx.Rollback(ctx))

	stored, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(100)))

	entries, err := store.FindTransactionsByRef(ctx, "ref-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommitAppliesAtomicallyAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	id := seedAccount(t, store)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	account, err := tx.GetAccountForUpdate(ctx, id)
	require.NoError(t, err)
	account.Balance = account.Balance.Add(decimal.NewFromInt(42))
	require.NoError(t, tx.SaveAccount(ctx, account))
	require.NoError(t, tx.AppendTransaction(ctx, creditEntry(id, "ref-1", 42)))
	require.NoError(t, tx.Commit(ctx))

	stored, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(142)))
	assert.Equal(t, int64(1), stored.Version)

	entries, err := store.FindTransactionsByRef(ctx, "ref-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCommitRejectsDuplicateRefForAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	id := seedAccount(t, store)

	first, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, first.AppendTransaction(ctx, creditEntry(id, "ref-1", 10)))
	require.NoError(t, first.Commit(ctx))

	second, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, second.AppendTransaction(ctx, creditEntry(id, "ref-1", 10)))
	assert.ErrorIs(t, second.Commit(ctx), storage.ErrDuplicateEntry)

	entries, err := store.FindTransactionsByRef(ctx, "ref-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFindTransactionsByAccountAndDateRange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	id := seedAccount(t, store)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{-48 * time.Hour, 0, time.Hour, 48 * time.Hour} {
		entry := creditEntry(id, uuid.NewString(), int64(i+1))
		entry.CreatedAt = base.Add(offset)
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.AppendTransaction(ctx, entry))
		require.NoError(t, tx.Commit(ctx))
	}

	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	entries, err := store.FindTransactionsByAccountAndDateRange(ctx, id, from, to)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
