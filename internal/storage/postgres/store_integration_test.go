package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage/postgres"
)

// openTestStore connects to the database named by TEST_DATABASE_URL, skipping
// the test when none is configured.
func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := postgres.NewStore(db, postgres.WithLockTimeout(100*time.Millisecond))
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	account := &models.Account{
		ID:            uuid.New(),
		NumberAccount: 42,
		OwnerAccount:  "integration",
		Balance:       decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.CreateAccount(ctx, account))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	locked, err := tx.GetAccountForUpdate(ctx, account.ID)
	require.NoError(t, err)

	amount := decimal.NewFromInt(100)
	locked.Balance = locked.Balance.Add(amount)
	require.NoError(t, tx.SaveAccount(ctx, locked))
	require.NoError(t, tx.AppendTransaction(ctx, &models.Transaction{
		ID:             models.NewTransactionID(),
		AccountID:      account.ID,
		Credit:         &amount,
		TransactionRef: uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
	}))
	require.NoError(t, tx.Commit(ctx))

	stored, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(amount))
	assert.Equal(t, int64(1), stored.Version)
}

func TestPostgresLockTimeout(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	account := &models.Account{
		ID:        uuid.New(),
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateAccount(ctx, account))

	holder, err := store.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx)
	_, err = holder.GetAccountForUpdate(ctx, account.ID)
	require.NoError(t, err)

	waiter, err := store.Begin(ctx)
	require.NoError(t, err)
	defer waiter.Rollback(ctx)
	_, err = waiter.GetAccountForUpdate(ctx, account.ID)
	assert.ErrorIs(t, err, storage.ErrLockNotAvailable)
}

func TestPostgresDuplicateRef(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	account := &models.Account{
		ID:        uuid.New(),
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateAccount(ctx, account))

	ref := uuid.NewString()
	amount := decimal.NewFromInt(10)

	appendEntry := func() error {
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)
		if err := tx.AppendTransaction(ctx, &models.Transaction{
			ID:             models.NewTransactionID(),
			AccountID:      account.ID,
			Credit:         &amount,
			TransactionRef: ref,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	require.NoError(t, appendEntry())
	assert.ErrorIs(t, appendEntry(), storage.ErrDuplicateEntry)
}
