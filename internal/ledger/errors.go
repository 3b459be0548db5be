package ledger

import "errors"

var (
	// ErrInvalidAmount means the amount is not strictly positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAccountNotFound means a referenced account does not exist.
	ErrAccountNotFound = errors.New("account does not exist")

	// ErrInsufficientFunds means the requested debit exceeds the balance.
	ErrInsufficientFunds = errors.New("not enough balance")

	// ErrLimitExceeded means the per-transfer cap or the rolling daily cap
	// would be violated.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrDuplicateReference means the transaction ref was already used for a
	// different account or operation than its original use.
	ErrDuplicateReference = errors.New("transaction ref already used")

	// ErrTransferFailed means lock contention exhausted the retry budget.
	ErrTransferFailed = errors.New("transfer failed after retries")

	// ErrInvalidRequest means the input shape is malformed, e.g. a transfer
	// from an account to itself.
	ErrInvalidRequest = errors.New("invalid request")
)
