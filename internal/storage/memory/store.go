package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
)

const defaultLockWait = 250 * time.Millisecond

// Store is an in-memory implementation of storage.Store with the same
// semantics as the Postgres store: per-account exclusive locks with a
// bounded wait, staged writes applied atomically on Commit, and a
// (transaction_ref, account_id) uniqueness check at commit time.
type Store struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]models.Account
	entries  []models.Transaction
	locks    map[uuid.UUID]chan struct{}
	lockWait time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockWait overrides how long GetAccountForUpdate waits for a row lock
// before giving up with ErrLockNotAvailable.
func WithLockWait(d time.Duration) Option {
	return func(s *Store) { s.lockWait = d }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[uuid.UUID]models.Account),
		locks:    make(map[uuid.UUID]chan struct{}),
		lockWait: defaultLockWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("account %s: %w", account.ID, storage.ErrAccountExists)
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return &account, nil
}

func (s *Store) FindTransactionsByRef(ctx context.Context, ref string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Transaction
	for _, e := range s.entries {
		if e.TransactionRef == ref {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Transaction
	for _, e := range s.entries {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) FindTransactionsByAccountAndDateRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Transaction
	for _, e := range s.entries {
		if e.AccountID == accountID && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	return &memTx{
		store:    s,
		accounts: make(map[uuid.UUID]*models.Account),
	}, nil
}

// BeginSerializable is identical to Begin: row locks already serialize every
// conflicting unit of work in this store.
func (s *Store) BeginSerializable(ctx context.Context) (storage.Tx, error) {
	return s.Begin(ctx)
}

// lockFor returns the lock channel for an account, creating it on first use.
// A buffered channel of capacity one acts as a mutex with a try-timeout.
func (s *Store) lockFor(id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// memTx stages writes and applies them on Commit under the store mutex.
type memTx struct {
	store    *Store
	held     []uuid.UUID
	accounts map[uuid.UUID]*models.Account
	staged   []models.Transaction
	done     bool
}

func (t *memTx) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if t.done {
		return nil, fmt.Errorf("unit of work already finished")
	}
	// Re-entrant within the same unit of work.
	if account, ok := t.accounts[id]; ok {
		return account, nil
	}

	lock := t.store.lockFor(id)
	select {
	case lock <- struct{}{}:
	case <-time.After(t.store.lockWait):
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrLockNotAvailable)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.store.mu.Lock()
	stored, ok := t.store.accounts[id]
	t.store.mu.Unlock()
	if !ok {
		<-lock
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}

	t.held = append(t.held, id)
	account := stored
	t.accounts[id] = &account
	return &account, nil
}

func (t *memTx) SaveAccount(ctx context.Context, account *models.Account) error {
	if t.done {
		return fmt.Errorf("unit of work already finished")
	}
	copied := *account
	t.accounts[account.ID] = &copied
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	if t.done {
		return fmt.Errorf("unit of work already finished")
	}
	t.staged = append(t.staged, *tx)
	return nil
}

func (t *memTx) FindTransactionsByRef(ctx context.Context, ref string) ([]models.Transaction, error) {
	return t.store.FindTransactionsByRef(ctx, ref)
}

func (t *memTx) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	return t.store.FindTransactionsByAccount(ctx, accountID)
}

func (t *memTx) FindTransactionsByAccountAndDateRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	return t.store.FindTransactionsByAccountAndDateRange(ctx, accountID, from, to)
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	defer t.finish()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	// Enforce the (transaction_ref, account_id) uniqueness constraint the
	// same way the database unique index does.
	for _, staged := range t.staged {
		for _, existing := range t.store.entries {
			if existing.TransactionRef == staged.TransactionRef && existing.AccountID == staged.AccountID {
				return fmt.Errorf("ref %q account %s: %w", staged.TransactionRef, staged.AccountID, storage.ErrDuplicateEntry)
			}
		}
	}

	for id, account := range t.accounts {
		stored := *account
		stored.Version = t.store.accounts[id].Version + 1
		t.store.accounts[id] = stored
	}
	t.store.entries = append(t.store.entries, t.staged...)
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

// finish releases held row locks in reverse acquisition order.
func (t *memTx) finish() {
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		<-t.store.lockFor(t.held[i])
	}
	t.held = nil
}

// Compile-time check: Store implements storage.Store.
var _ storage.Store = (*Store)(nil)
