package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const defaultLockTimeout = 250 * time.Millisecond

// Postgres error codes mapped to storage sentinels.
const (
	codeLockNotAvailable    = "55P03"
	codeSerializationFailed = "40001"
	codeDeadlockDetected    = "40P01"
	codeUniqueViolation     = "23505"
)

// Store is the durable storage.Store implementation backed by Postgres.
// Exclusive row acquisition uses SELECT ... FOR UPDATE with a per-transaction
// lock_timeout, so contention surfaces as ErrLockNotAvailable instead of an
// unbounded wait.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout overrides the lock-wait timeout applied to every unit of work.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the accounts and transactions tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	const query = `INSERT INTO accounts (id, number_account, owner_account, balance, version, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.NumberAccount, account.OwnerAccount,
		account.Balance, account.Version, account.CreatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return fmt.Errorf("account %s: %w", account.ID, storage.ErrAccountExists)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const query = `SELECT id, number_account, owner_account, balance, version, created_at
	FROM accounts WHERE id = $1`

	return scanAccount(s.db.QueryRowContext(ctx, query, id), id)
}

func (s *Store) FindTransactionsByRef(ctx context.Context, ref string) ([]models.Transaction, error) {
	const query = `SELECT id, account_id, credit, debit, transaction_ref, created_at
	FROM transactions WHERE transaction_ref = $1 ORDER BY created_at`

	return queryTransactions(ctx, s.db, query, ref)
}

func (s *Store) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	const query = `SELECT id, account_id, credit, debit, transaction_ref, created_at
	FROM transactions WHERE account_id = $1 ORDER BY created_at`

	return queryTransactions(ctx, s.db, query, accountID)
}

func (s *Store) FindTransactionsByAccountAndDateRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	const query = `SELECT id, account_id, credit, debit, transaction_ref, created_at
	FROM transactions WHERE account_id = $1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at`

	return queryTransactions(ctx, s.db, query, accountID, from, to)
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	return s.begin(ctx, sql.LevelReadCommitted)
}

func (s *Store) BeginSerializable(ctx context.Context) (storage.Tx, error) {
	return s.begin(ctx, sql.LevelSerializable)
}

func (s *Store) begin(ctx context.Context, isolation sql.IsolationLevel) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}

	// Bound every row-lock wait inside this unit of work.
	timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, timeout); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx   *sql.Tx
	done bool
}

func (t *pgTx) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const query = `SELECT id, number_account, owner_account, balance, version, created_at
	FROM accounts WHERE id = $1 FOR UPDATE`

	return scanAccount(t.tx.QueryRowContext(ctx, query, id), id)
}

func (t *pgTx) SaveAccount(ctx context.Context, account *models.Account) error {
	const query = `UPDATE accounts SET balance = $2, version = version + 1 WHERE id = $1`

	res, err := t.tx.ExecContext(ctx, query, account.ID, account.Balance)
	if err != nil {
		return mapPQError("save account", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %s: %w", account.ID, storage.ErrNotFound)
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	const query = `INSERT INTO transactions (id, account_id, credit, debit, transaction_ref, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	var credit, debit decimal.NullDecimal
	if tx.Credit != nil {
		credit = decimal.NullDecimal{Decimal: *tx.Credit, Valid: true}
	}
	if tx.Debit != nil {
		debit = decimal.NullDecimal{Decimal: *tx.Debit, Valid: true}
	}

	_, err := t.tx.ExecContext(ctx, query, tx.ID, tx.AccountID, credit, debit, tx.TransactionRef, tx.CreatedAt)
	if err != nil {
		return mapPQError("append transaction", err)
	}
	return nil
}

func (t *pgTx) FindTransactionsByRef(ctx context.Context, ref string) ([]models.Transaction, error) {
	const query = `SELECT id, account_id, credit, debit, transaction_ref, created_at
	FROM transactions WHERE transaction_ref = $1 ORDER BY created_at`

	return queryTransactions(ctx, t.tx, query, ref)
}

func (t *pgTx) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	const query = `SELECT id, account_id, credit, debit, transaction_ref, created_at
	FROM transactions WHERE account_id = $1 ORDER BY created_at`

	return queryTransactions(ctx, t.tx, query, accountID)
}

func (t *pgTx) FindTransactionsByAccountAndDateRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	const query = `SELECT id, account_id, credit, debit, transaction_ref, created_at
	FROM transactions WHERE account_id = $1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at`

	return queryTransactions(ctx, t.tx, query, accountID, from, to)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return mapPQError("commit", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.NumberAccount,
		&account.OwnerAccount,
		&account.Balance,
		&account.Version,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
		}
		return nil, mapPQError("get account", err)
	}
	return &account, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapPQError("query transactions", err)
	}
	defer rows.Close()

	var entries []models.Transaction
	for rows.Next() {
		var entry models.Transaction
		var credit, debit decimal.NullDecimal
		if err := rows.Scan(&entry.ID, &entry.AccountID, &credit, &debit, &entry.TransactionRef, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if credit.Valid {
			entry.Credit = &credit.Decimal
		}
		if debit.Valid {
			entry.Debit = &debit.Decimal
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return entries, nil
}

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// mapPQError converts driver errors on concurrency and uniqueness conditions
// into storage sentinels the ledger core can classify with errors.Is.
func mapPQError(op string, err error) error {
	switch pgCode(err) {
	case codeLockNotAvailable, codeSerializationFailed, codeDeadlockDetected:
		return fmt.Errorf("%s: %w: %v", op, storage.ErrLockNotAvailable, err)
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w: %v", op, storage.ErrDuplicateEntry, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Compile-time check: Store implements storage.Store.
var _ storage.Store = (*Store)(nil)
