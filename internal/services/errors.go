package services

import "errors"

var (
	ErrNotRegistered     = errors.New("user not registered")
	ErrBlocked           = errors.New("user is blocked")
	ErrNotLinked         = errors.New("user has no site link")
	ErrAlreadyLinked     = errors.New("user already linked")
	ErrConfigNotReady    = errors.New("oauth configuration incomplete")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAmountTooLarge    = errors.New("amount exceeds exchange limit")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrTokenInvalid      = errors.New("bind token invalid or expired")
	ErrLinkConflict      = errors.New("site account bound to another user")

	// ErrReconciliation means the site credited points but the local debit
	// failed afterwards. The user gained value, nothing was destroyed, and
	// an operator has to settle the difference by hand. Deliberately never
	// retried or compensated automatically: a best-effort rollback could
	// double-credit.
	ErrReconciliation = errors.New("ledgers diverged, manual reconciliation required")
)
