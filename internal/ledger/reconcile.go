package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
)

// Recalculate recomputes the account's balance from its full transaction log
// and overwrites the cached value if they differ. The transaction log is the
// source of truth; the cached balance is only a cache. It takes the same
// per-account lock as transfers so it never reads a balance mid-mutation,
// and it is idempotent: a second run with no new entries changes nothing.
func (s *Service) Recalculate(ctx context.Context, accountID uuid.UUID) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer s.rollback(ctx, tx)

	account, err := tx.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	entries, err := tx.FindTransactionsByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount())
	}

	if total.Equal(account.Balance) {
		return nil
	}

	s.log.Info("correcting balance drift",
		zap.String("account", accountID.String()),
		zap.String("cached", account.Balance.String()),
		zap.String("computed", total.String()))

	account.Balance = total
	if err := tx.SaveAccount(ctx, account); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
