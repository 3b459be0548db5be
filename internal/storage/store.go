package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAccountExists is returned when creating an account whose id is taken.
	ErrAccountExists = errors.New("storage: account already exists")

	// ErrLockNotAvailable is returned when a row lock could not be granted
	// within the store's lock-wait timeout, or when the store aborted a unit
	// of work because of a serialization or deadlock condition. Callers may
	// retry the whole unit of work.
	ErrLockNotAvailable = errors.New("storage: lock not available")

	// ErrDuplicateEntry is returned from Commit when a staged transaction
	// violates the (transaction_ref, account_id) uniqueness constraint.
	ErrDuplicateEntry = errors.New("storage: duplicate transaction reference for account")
)

// Store is durable keyed storage of accounts and their ledger entries.
// Reads outside a unit of work see committed state only.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)

	FindTransactionsByRef(ctx context.Context, ref string) ([]models.Transaction, error)
	FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error)
	FindTransactionsByAccountAndDateRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Transaction, error)

	// Begin opens a unit of work. Writes made through the returned Tx become
	// visible atomically on Commit or not at all.
	Begin(ctx context.Context) (Tx, error)

	// BeginSerializable opens a unit of work at the strongest isolation the
	// store offers. Used by the transfer path so one transfer never observes
	// another's partially applied balance change.
	BeginSerializable(ctx context.Context) (Tx, error)
}

// Tx is a single atomic unit of work. Row locks taken via GetAccountForUpdate
// are held until Commit or Rollback; Rollback after a successful Commit is a
// no-op so it can always be deferred.
type Tx interface {
	// GetAccountForUpdate loads an account under an exclusive row lock,
	// blocking until the lock is granted or the lock-wait timeout fires
	// (ErrLockNotAvailable).
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)

	SaveAccount(ctx context.Context, account *models.Account) error
	AppendTransaction(ctx context.Context, tx *models.Transaction) error

	FindTransactionsByRef(ctx context.Context, ref string) ([]models.Transaction, error)
	FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error)
	FindTransactionsByAccountAndDateRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Transaction, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
