/*
transform.go - Deferred refundable -> non-refundable transformation

PURPOSE:
  A refundable credit only stays refundable for the configured grace
  period. When the engine commits such a credit it enqueues a
  PendingTransform; a background runner (see api/scheduler.go) picks tasks
  up at-or-after their run time and applies them here.

RE-VALIDATION AT FIRE TIME:
  The refundable amount may have been spent between scheduling and firing.
  The task therefore caps at the refundable balance CURRENTLY available in
  the credited scope - min(requested, available) - and performs no
  mutation at all when that balance is already exhausted.
*/
package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ApplyTransform converts up to pt.Amount of the user's refundable balance
// in the credited scope to non-refundable. Fire-once: the caller marks the
// task done afterwards regardless of how much was transformed.
func (e *Engine) ApplyTransform(ctx context.Context, pt PendingTransform) error {
	if pt.Amount.IsNegative() {
		return &InvalidAmountError{Amount: pt.Amount}
	}

	unlock := e.locks.acquire(pt.UserID)
	defer unlock()

	rec, err := e.rm.Record(ctx, pt.UserID)
	if err != nil {
		return err
	}

	scope := CategorySite
	if e.cfg.CategoryBalances {
		scope = pt.Category
	}
	cb := e.scopeOf(rec, scope)

	available := cb.Refundable
	if !available.IsPositive() {
		return nil
	}

	amount := decimal.Min(pt.Amount, available)
	if !amount.IsPositive() {
		return nil
	}

	cb.Refundable = cb.Refundable.Sub(amount)
	cb.Nonrefundable = cb.Nonrefundable.Add(amount)
	e.setScope(rec, scope, *cb)

	rec.TotalStored = rec.GrandTotal()
	rec.UpdatedAt = e.now()

	if err := e.balances.SaveBalance(ctx, rec); err != nil {
		return fmt.Errorf("save transformed balance: %w", err)
	}
	e.rm.refresh(rec)

	return nil
}
