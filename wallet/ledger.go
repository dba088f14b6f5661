/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable record of every wallet mutation. Corrections
  happen via compensating rollback credits; rows are never edited.

  Besides the audit trail, the ledger is the fallback source of truth for a
  cold balance: the latest transaction carries BalanceAfter and
  NonRefundableAfter, enough to seed a BalanceRecord when none was
  persisted (free portion and category split are unknowable from a single
  row and seed to zero/site scope).

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. For a debit: BalanceAfter = BalanceBefore - Amount
  3. For a credit: BalanceAfter > BalanceBefore (amount zero excepted)
*/
package wallet

import "context"

// Ledger wraps a TransactionStore with the wallet's append semantics.
type Ledger struct {
	Store TransactionStore
}

func NewLedger(store TransactionStore) *Ledger {
	return &Ledger{Store: store}
}

// Append records a committed mutation. Only the engine calls this.
func (l *Ledger) Append(ctx context.Context, tx TransactionRecord) error {
	return l.Store.Append(ctx, tx)
}

// History returns the full audit trail for a user, oldest first.
func (l *Ledger) History(ctx context.Context, userID UserID) ([]TransactionRecord, error) {
	return l.Store.History(ctx, userID)
}

// Seed reconstructs a BalanceRecord from the latest transaction, treating an
// absent history as a zero balance. The reconstructed record is site-scoped:
// a single transaction row cannot recover the category split or the free
// portion.
func (l *Ledger) Seed(ctx context.Context, userID UserID) (*BalanceRecord, error) {
	rec := NewBalanceRecord(userID)

	latest, err := l.Store.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return rec, nil
	}

	rec.Site.Nonrefundable = latest.NonRefundableAfter
	rec.Site.Refundable = latest.BalanceAfter.Sub(latest.NonRefundableAfter)
	rec.TotalStored = latest.BalanceAfter
	rec.UpdatedAt = latest.CreatedAt
	return rec, nil
}
