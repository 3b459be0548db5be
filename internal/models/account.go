package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a monetary account with a cached balance.
// Outside of an in-flight unit of work the balance always equals the signed
// sum of the account's transactions; the transaction log is the source of
// truth and Recalculate corrects any drift.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	NumberAccount int64           `json:"number_account"`
	OwnerAccount  string          `json:"owner_account"`
	Balance       decimal.Decimal `json:"balance"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}
