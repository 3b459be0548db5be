package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
)

// defaultCap is the ceiling for both a single transfer and the total
// outgoing amount per account per local calendar day.
const defaultCap = 5000

// Limits holds the business caps applied to outgoing money movements.
// Pure policy: evaluation never touches storage.
type Limits struct {
	TransferCap decimal.Decimal
	DailyCap    decimal.Decimal
}

// DefaultLimits returns the standard 5000/5000 caps.
func DefaultLimits() Limits {
	ceiling := decimal.NewFromInt(defaultCap)
	return Limits{TransferCap: ceiling, DailyCap: ceiling}
}

// ValidateAmount rejects amounts that are not strictly positive.
func (l Limits) ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateTransferCap rejects a single transfer above the per-transfer ceiling.
func (l Limits) ValidateTransferCap(amount decimal.Decimal) error {
	if amount.GreaterThan(l.TransferCap) {
		return fmt.Errorf("%w: transfer can be up to %s", ErrLimitExceeded, l.TransferCap)
	}
	return nil
}

// ValidateDailyCap rejects a transfer that would push the account's outgoing
// total for the current day past the daily ceiling.
func (l Limits) ValidateDailyCap(amount, todaysOutgoing decimal.Decimal) error {
	if todaysOutgoing.Add(amount).GreaterThan(l.DailyCap) {
		return fmt.Errorf("%w: day limit of %s reached", ErrLimitExceeded, l.DailyCap)
	}
	return nil
}

// dayWindow returns the local calendar day containing t: start of day
// inclusive to start of the next day exclusive.
func dayWindow(t time.Time) (from, to time.Time) {
	from = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 0, 1)
}

// sumDebits totals the debit magnitudes in a transaction window.
func sumDebits(entries []models.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.Debit != nil {
			sum = sum.Add(*e.Debit)
		}
	}
	return sum
}
