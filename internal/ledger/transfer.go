package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
	eventmodels "github.com/sheikh-saqib/bank-ledger-engine/internal/models/events"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
)

// retryPolicy bounds how a contended transfer is retried: attempts runs of
// the whole algorithm with a fixed pause between them.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

// withRetry runs fn up to the policy's attempt budget, retrying only on lock
// contention. Any other outcome, success or failure, is returned as is;
// exhausting the budget returns the last contention error.
func (p retryPolicy) withRetry(ctx context.Context, fn func() error) error {
	if p.attempts < 1 {
		p.attempts = 1
	}

	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, storage.ErrLockNotAvailable) {
			return err
		}
		if attempt == p.attempts {
			break
		}
		select {
		case <-time.After(p.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// lockOrder returns the two account ids in the global locking order, lower
// id first. Every caller that locks two accounts must go through this helper;
// the consistent total order is what prevents circular waits between
// opposing transfers.
func lockOrder(a, b uuid.UUID) (first, second uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

// Transfer moves amount from one account to another as a pair of ledger
// entries sharing transactionRef, written atomically with both balance
// changes. The returned slice holds the debit entry then the credit entry;
// for a retried ref it holds the originally recorded pair.
func (s *Service) Transfer(ctx context.Context, fromID, toID uuid.UUID, transactionRef string, amount decimal.Decimal) ([]models.Transaction, error) {
	if fromID == toID {
		return nil, fmt.Errorf("%w: transfer from an account to itself", ErrInvalidRequest)
	}

	var result []models.Transaction
	err := s.retry.withRetry(ctx, func() error {
		var execErr error
		result, execErr = s.executeTransfer(ctx, fromID, toID, transactionRef, amount)
		if errors.Is(execErr, storage.ErrLockNotAvailable) {
			s.log.Debug("transfer contention, retrying",
				zap.String("from", fromID.String()),
				zap.String("to", toID.String()),
				zap.String("transaction_ref", transactionRef))
		}
		return execErr
	})
	if errors.Is(err, storage.ErrLockNotAvailable) {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// executeTransfer is one full run of the transfer algorithm inside a single
// serializable unit of work. Funds and limits are validated after both row
// locks are held, so nothing read can change before the commit.
func (s *Service) executeTransfer(ctx context.Context, fromID, toID uuid.UUID, transactionRef string, amount decimal.Decimal) ([]models.Transaction, error) {
	if err := s.limits.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := s.accountsExist(ctx, fromID, toID); err != nil {
		return nil, err
	}

	tx, err := s.store.BeginSerializable(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	// Lock both rows in the global order regardless of transfer direction.
	locked := make(map[uuid.UUID]*models.Account, 2)
	firstID, secondID := lockOrder(fromID, toID)
	for _, id := range []uuid.UUID{firstID, secondID} {
		account, err := tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
			}
			return nil, err
		}
		locked[id] = account
	}
	from, to := locked[fromID], locked[toID]

	if err := s.limits.ValidateTransferCap(amount); err != nil {
		return nil, err
	}

	existing, err := tx.FindTransactionsByRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if prior, err := priorTransfer(existing, fromID, toID); err != nil || prior != nil {
		return prior, err
	}

	// Re-read the source's outgoing window for the current local day now
	// that the row is locked.
	dayStart, dayEnd := dayWindow(s.now())
	window, err := tx.FindTransactionsByAccountAndDateRange(ctx, fromID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if err := s.limits.ValidateDailyCap(amount, sumDebits(window)); err != nil {
		return nil, err
	}
	if from.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	now := s.now()
	debit := models.Transaction{
		ID:             models.NewTransactionID(),
		AccountID:      fromID,
		Debit:          &amount,
		TransactionRef: transactionRef,
		CreatedAt:      now,
	}
	credit := models.Transaction{
		ID:             models.NewTransactionID(),
		AccountID:      toID,
		Credit:         &amount,
		TransactionRef: transactionRef,
		CreatedAt:      now,
	}
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)

	if err := tx.SaveAccount(ctx, from); err != nil {
		return nil, err
	}
	if err := tx.SaveAccount(ctx, to); err != nil {
		return nil, err
	}
	if err := tx.AppendTransaction(ctx, &debit); err != nil {
		return nil, err
	}
	if err := tx.AppendTransaction(ctx, &credit); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, storage.ErrDuplicateEntry) {
			// A concurrent duplicate of the same logical transfer committed
			// first; hand back its recorded pair.
			return s.recoverTransfer(ctx, fromID, toID, transactionRef)
		}
		return nil, err
	}

	s.publish(eventmodels.TransactionCompleted{
		TransactionID:  debit.ID,
		TransactionRef: transactionRef,
		FromAccount:    fromID.String(),
		ToAccount:      toID.String(),
		Amount:         amount,
		OccurredAt:     now,
	})

	return []models.Transaction{debit, credit}, nil
}

// accountsExist reports ErrAccountNotFound naming every missing account.
func (s *Service) accountsExist(ctx context.Context, ids ...uuid.UUID) error {
	var missing []string
	for _, id := range ids {
		if _, err := s.store.GetAccount(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				missing = append(missing, id.String())
				continue
			}
			return err
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrAccountNotFound, missing)
	}
	return nil
}

// recoverTransfer re-reads the committed pair after a unique-index collision.
func (s *Service) recoverTransfer(ctx context.Context, fromID, toID uuid.UUID, transactionRef string) ([]models.Transaction, error) {
	existing, err := s.store.FindTransactionsByRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	prior, err := priorTransfer(existing, fromID, toID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, ErrDuplicateReference
	}
	return prior, nil
}
