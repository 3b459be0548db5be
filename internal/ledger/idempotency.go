package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/models"
)

// direction selects which side of the ledger a prior entry must be on to
// count as the same logical request.
type direction int

const (
	directionCredit direction = iota
	directionDebit
)

// checkRef verifies that every prior use of a transaction ref involved one of
// the given accounts. A ref reused across unrelated accounts is a client
// error, not a retry.
func checkRef(existing []models.Transaction, involved ...uuid.UUID) error {
	for _, entry := range existing {
		matched := false
		for _, id := range involved {
			if entry.AccountID == id {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("%w: ref %q belongs to another operation", ErrDuplicateReference, entry.TransactionRef)
		}
	}
	return nil
}

// priorOutcome returns the already-recorded entry for a retried single-account
// request, ErrDuplicateReference if the ref was used for an unrelated account,
// or (nil, nil) when the caller should proceed with a fresh mutation.
func priorOutcome(existing []models.Transaction, accountID uuid.UUID, want direction) (*models.Transaction, error) {
	if err := checkRef(existing, accountID); err != nil {
		return nil, err
	}
	for i := range existing {
		entry := &existing[i]
		if want == directionCredit && entry.Credit != nil {
			return entry, nil
		}
		if want == directionDebit && entry.Debit != nil {
			return entry, nil
		}
	}
	return nil, nil
}

// priorTransfer returns the recorded entry pair for a retried transfer, debit
// first, or (nil, nil) when no prior use of the ref exists.
func priorTransfer(existing []models.Transaction, fromID, toID uuid.UUID) ([]models.Transaction, error) {
	if err := checkRef(existing, fromID, toID); err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}

	ordered := make([]models.Transaction, 0, len(existing))
	for _, entry := range existing {
		if entry.Debit != nil {
			ordered = append(ordered, entry)
		}
	}
	for _, entry := range existing {
		if entry.Credit != nil {
			ordered = append(ordered, entry)
		}
	}
	return ordered, nil
}
