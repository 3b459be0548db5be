package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCompleted is emitted after a ledger mutation commits.
// FromAccount is empty for deposits, ToAccount is empty for withdrawals.
type TransactionCompleted struct {
	TransactionID  string          `json:"transaction_id"`
	TransactionRef string          `json:"transaction_ref"`
	FromAccount    string          `json:"from_account,omitempty"`
	ToAccount      string          `json:"to_account,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
