package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/events"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
	eventmodels "github.com/sheikh-saqib/bank-ledger-engine/internal/models/events"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
)

const (
	defaultTransferAttempts = 3
	defaultTransferBackoff  = 50 * time.Millisecond
)

// Service is the ledger engine: deposits, withdrawals, transfers,
// reconciliation and transaction queries over an abstract store. Every
// mutation runs inside one storage unit of work holding the affected
// account row locks, so the cached balance and the entry log move together.
type Service struct {
	store     storage.Store
	publisher events.Publisher
	limits    Limits
	retry     retryPolicy
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLimits overrides the default transfer and daily caps.
func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithRetryPolicy overrides how often and how patiently a contended transfer
// is retried.
func WithRetryPolicy(attempts int, backoff time.Duration) Option {
	return func(s *Service) { s.retry = retryPolicy{attempts: attempts, backoff: backoff} }
}

// WithPublisher sets the event publisher for completed transactions.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source; the daily-cap window depends on it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a ledger service over the given store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: events.Noop{},
		limits:    DefaultLimits(),
		retry:     retryPolicy{attempts: defaultTransferAttempts, backoff: defaultTransferBackoff},
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount opens a new account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, numberAccount int64, ownerAccount string) (*models.Account, error) {
	account := &models.Account{
		ID:            uuid.New(),
		NumberAccount: numberAccount,
		OwnerAccount:  ownerAccount,
		Balance:       decimal.Zero,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// GetAccount returns an account by id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// Deposit credits amount to the account. Resubmitting the same transaction
// ref for the same account returns the original entry without a second
// mutation.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, transactionRef string, amount decimal.Decimal) (*models.Transaction, error) {
	return s.applySingle(ctx, accountID, transactionRef, amount, directionCredit)
}

// Withdrawal debits amount from the account, failing with
// ErrInsufficientFunds when amount exceeds the current balance.
func (s *Service) Withdrawal(ctx context.Context, accountID uuid.UUID, transactionRef string, amount decimal.Decimal) (*models.Transaction, error) {
	return s.applySingle(ctx, accountID, transactionRef, amount, directionDebit)
}

// applySingle runs the shared deposit/withdrawal sequence: validate, consult
// the idempotency guard, lock the account, apply one signed entry and the
// balance change as one atomic unit.
func (s *Service) applySingle(ctx context.Context, accountID uuid.UUID, transactionRef string, amount decimal.Decimal, want direction) (*models.Transaction, error) {
	if err := s.limits.ValidateAmount(amount); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	existing, err := tx.FindTransactionsByRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if prior, err := priorOutcome(existing, accountID, want); err != nil || prior != nil {
		return prior, err
	}

	account, err := tx.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	entry := &models.Transaction{
		ID:             models.NewTransactionID(),
		AccountID:      accountID,
		TransactionRef: transactionRef,
		CreatedAt:      s.now(),
	}
	if want == directionCredit {
		entry.Credit = &amount
		account.Balance = account.Balance.Add(amount)
	} else {
		if amount.GreaterThan(account.Balance) {
			return nil, ErrInsufficientFunds
		}
		entry.Debit = &amount
		account.Balance = account.Balance.Sub(amount)
	}

	if err := tx.SaveAccount(ctx, account); err != nil {
		return nil, err
	}
	if err := tx.AppendTransaction(ctx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, storage.ErrDuplicateEntry) {
			// A concurrent duplicate won the race; the unique index kept the
			// ledger single-effect. Return the winner's outcome.
			return s.recoverSingle(ctx, accountID, transactionRef, want)
		}
		return nil, err
	}

	ev := eventmodels.TransactionCompleted{
		TransactionID:  entry.ID,
		TransactionRef: transactionRef,
		Amount:         amount,
		OccurredAt:     entry.CreatedAt,
	}
	if want == directionCredit {
		ev.ToAccount = accountID.String()
	} else {
		ev.FromAccount = accountID.String()
	}
	s.publish(ev)

	return entry, nil
}

// recoverSingle re-reads the committed outcome after a unique-index collision.
func (s *Service) recoverSingle(ctx context.Context, accountID uuid.UUID, transactionRef string, want direction) (*models.Transaction, error) {
	existing, err := s.store.FindTransactionsByRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	prior, err := priorOutcome(existing, accountID, want)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, ErrDuplicateReference
	}
	return prior, nil
}

// ListTransactions returns every ledger entry for the account.
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	return s.store.FindTransactionsByAccount(ctx, accountID)
}

// ListTransactionsByDate returns the account's entries with from inclusive
// and to exclusive.
func (s *Service) ListTransactionsByDate(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	return s.store.FindTransactionsByAccountAndDateRange(ctx, accountID, from, to)
}

func (s *Service) publish(ev eventmodels.TransactionCompleted) {
	if err := s.publisher.Publish(events.TopicTransactionCompleted, ev); err != nil {
		s.log.Warn("publish transaction event",
			zap.String("transaction_ref", ev.TransactionRef),
			zap.Error(err))
	}
}

func (s *Service) rollback(ctx context.Context, tx storage.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		s.log.Warn("rollback unit of work", zap.Error(err))
	}
}
