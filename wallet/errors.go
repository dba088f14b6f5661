/*
errors.go - Centralized error types for the wallet engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; structured errors carry the
  amounts involved.

ERROR CATEGORIES:
  1. Input errors - Invalid amounts, rejected before any mutation
  2. Balance errors - Insufficient funds, rejected before any mutation
  3. Transfer errors - Receiver problems, compensated by rollback

USAGE:
  var insufficient *wallet.InsufficientBalanceError
  if errors.As(err, &insufficient) {
      // insufficient.Shortfall tells the caller how much is missing
  }
*/
package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for negative (or unparsable) amounts.
	// No mutation is performed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a debit would drive the valid
	// balance below zero and negative balance is disallowed. Fully
	// recoverable: retry with a smaller amount or after crediting.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferFailed is returned when the receiving side of a transfer
	// cannot be credited (receiver missing, suspended, or deleted). The
	// sender has been made whole by a compensating rollback credit.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrReconciliationRequired is returned when a compensating rollback
	// credit itself failed. The ledger is inconsistent and needs manual
	// reconciliation. Must never be swallowed.
	ErrReconciliationRequired = errors.New("compensation failed: manual reconciliation required")

	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError reports the rejected amount.
type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount: %s (must be non-negative)", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID    UserID
	Category  CategoryID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s, shortfall %s",
		e.UserID, e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// TransferError reports why a transfer could not complete. Compensated is
// true when the sender debit was rolled back.
type TransferError struct {
	SenderID      UserID
	ReceiverEmail string
	Reason        string
	Compensated   bool
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer from %s to %s failed: %s", e.SenderID, e.ReceiverEmail, e.Reason)
}

func (e *TransferError) Unwrap() error { return ErrTransferFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrUserNotFound)
}

// IsFatal returns true if the error indicates ledger inconsistency that a
// retry cannot fix.
func IsFatal(err error) bool {
	return errors.Is(err, ErrReconciliationRequired)
}
