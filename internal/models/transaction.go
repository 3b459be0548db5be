package models

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger entry on a single account. Exactly one
// of Credit or Debit is set. Entries sharing a TransactionRef belong to the
// same logical request: a transfer records a debit on the source and a credit
// on the destination under one ref, a deposit or withdrawal records one entry.
type Transaction struct {
	ID             string           `json:"id"`
	AccountID      uuid.UUID        `json:"account_id"`
	Credit         *decimal.Decimal `json:"credit,omitempty"`
	Debit          *decimal.Decimal `json:"debit,omitempty"`
	TransactionRef string           `json:"transaction_ref"`
	CreatedAt      time.Time        `json:"created_at"`
}

// IsCredit reports whether the entry increases the account balance.
func (t *Transaction) IsCredit() bool {
	return t.Credit != nil
}

// Amount returns the signed effect of the entry: positive for a credit,
// negative for a debit.
func (t *Transaction) Amount() decimal.Decimal {
	if t.Credit != nil {
		return *t.Credit
	}
	return t.Debit.Neg()
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewTransactionID returns a ULID, so entry ids sort by creation time.
func NewTransactionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
