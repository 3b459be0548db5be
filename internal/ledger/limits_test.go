package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/ledger"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestValidateAmount(t *testing.T) {
	limits := ledger.DefaultLimits()

	assert.NoError(t, limits.ValidateAmount(dec(t, "0.01")))
	assert.ErrorIs(t, limits.ValidateAmount(decimal.Zero), ledger.ErrInvalidAmount)
	assert.ErrorIs(t, limits.ValidateAmount(dec(t, "-5")), ledger.ErrInvalidAmount)
}

func TestValidateTransferCap(t *testing.T) {
	limits := ledger.DefaultLimits()

	assert.NoError(t, limits.ValidateTransferCap(dec(t, "5000")))
	assert.ErrorIs(t, limits.ValidateTransferCap(dec(t, "5000.01")), ledger.ErrLimitExceeded)
}

func TestValidateDailyCap(t *testing.T) {
	limits := ledger.DefaultLimits()

	// Exactly at the cap passes, one cent over fails.
	assert.NoError(t, limits.ValidateDailyCap(dec(t, "2000"), dec(t, "3000")))
	assert.ErrorIs(t, limits.ValidateDailyCap(dec(t, "2000.01"), dec(t, "3000")), ledger.ErrLimitExceeded)
	assert.ErrorIs(t, limits.ValidateDailyCap(dec(t, "3000"), dec(t, "3000")), ledger.ErrLimitExceeded)
	assert.NoError(t, limits.ValidateDailyCap(dec(t, "5000"), decimal.Zero))
}
