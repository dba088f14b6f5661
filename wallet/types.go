/*
Package wallet provides the core balance ledger and mutation engine.

PURPOSE:
  This package contains the domain types and algorithms for a per-user,
  per-course-category monetary wallet: users hold a balance split into
  refundable, non-refundable and free-gift sub-amounts, both site-wide and
  per category. The wallet pays for enrolments; every change to it is an
  auditable ledger entry.

KEY CONCEPTS IN THIS FILE (types.go):
  - BalanceRecord: One record per user, site amounts + category sub-balances
  - TransactionRecord: An immutable ledger entry recording every mutation
  - Reason: Enumerated reason codes driving refundable/free classification
  - DiscountRule: Tiered conditional-discount rule evaluated on credit

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only compensated
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for user and category identifiers
  4. Derived totals: Aggregates are recomputed from parts, never trusted

SEE ALSO:
  - balance.go: Read model (cached balance + valid balance for a category)
  - engine.go: Credit/debit/transfer mutation engine
  - ledger.go: Append-only transaction log
*/
package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string

// CategoryID identifies a course category. CategorySite (0) is the site-wide
// scope, which has no parent and is never part of a category tree.
type CategoryID int64

const CategorySite CategoryID = 0

// User is the minimal directory view the engine needs for transfers.
type User struct {
	ID        UserID
	Email     string
	Suspended bool
	Deleted   bool
}

// =============================================================================
// TRANSACTION - Atomic change to the wallet balance
// =============================================================================

type TxType string

const (
	TxCredit TxType = "credit"
	TxDebit  TxType = "debit"
)

// Reason enumerates why a mutation happened. The reason code decides how a
// credit is classified (refundable, plain non-refundable, or free).
type Reason string

const (
	// Credits subject to the global refunds-enabled setting.
	ReasonUser     Reason = "user"     // user-initiated top-up
	ReasonPayment  Reason = "payment"  // payment-gateway top-up
	ReasonCoupon   Reason = "coupon"   // fixed/category coupon redemption
	ReasonTransfer Reason = "transfer" // receiving leg of a transfer

	// Credits that are always non-refundable and marked free.
	ReasonCashback        Reason = "cashback"
	ReasonReferral        Reason = "referral"
	ReasonAward           Reason = "award"
	ReasonUnenrolRefund   Reason = "unenrol-refund"
	ReasonRollback        Reason = "rollback"
	ReasonDiscountTopOff  Reason = "conditional-discount-topoff"

	// Debits.
	ReasonEnrol        Reason = "enrol"         // paying for an enrolment
	ReasonUserTransfer Reason = "user-transfer" // sending leg of a transfer
)

// Free reports whether credits with this reason are promotional: always
// non-refundable and tracked in the free sub-balance.
func (r Reason) Free() bool {
	switch r {
	case ReasonCashback, ReasonReferral, ReasonAward,
		ReasonUnenrolRefund, ReasonRollback, ReasonDiscountTopOff:
		return true
	}
	return false
}

// TransactionRecord is one row of the append-only audit trail. It is also the
// authoritative fallback for reconstructing a balance when no BalanceRecord
// exists: BalanceAfter and NonRefundableAfter carry the full post-mutation
// state.
type TransactionRecord struct {
	ID                 string
	UserID             UserID
	Type               TxType
	Amount             decimal.Decimal
	BalanceBefore      decimal.Decimal
	BalanceAfter       decimal.Decimal
	NonRefundableAfter decimal.Decimal
	Category           CategoryID // CategorySite for site-scoped mutations
	Reason             Reason
	RelatedID          string
	Description        string
	CreatedAt          time.Time
}

// =============================================================================
// BALANCE RECORD - One record per user
// =============================================================================

// CategoryBalance is the per-category slice of a user's wallet.
// Invariants: all amounts non-negative (unless a debit with allowNegative
// exhausted them), Free <= Nonrefundable.
type CategoryBalance struct {
	Refundable    decimal.Decimal
	Nonrefundable decimal.Decimal
	Free          decimal.Decimal
}

func (cb CategoryBalance) Total() decimal.Decimal {
	return cb.Refundable.Add(cb.Nonrefundable)
}

func (cb CategoryBalance) IsZero() bool {
	return cb.Refundable.IsZero() && cb.Nonrefundable.IsZero() && cb.Free.IsZero()
}

// BalanceRecord is the persisted wallet state for one user. Site is the
// site-wide slice; Categories holds the per-category slices. TotalStored is a
// denormalized convenience written on save; readers recompute the total from
// parts and never trust it (see ReadModel).
type BalanceRecord struct {
	UserID      UserID
	Site        CategoryBalance
	Categories  map[CategoryID]CategoryBalance
	TotalStored decimal.Decimal
	UpdatedAt   time.Time
}

func NewBalanceRecord(userID UserID) *BalanceRecord {
	return &BalanceRecord{
		UserID:     userID,
		Categories: make(map[CategoryID]CategoryBalance),
	}
}

// GrandTotal is the user's total balance across every scope, recomputed
// from parts.
func (r *BalanceRecord) GrandTotal() decimal.Decimal {
	total := r.Site.Total()
	for _, cb := range r.Categories {
		total = total.Add(cb.Total())
	}
	return total
}

// GrandNonrefundable sums the non-refundable amounts across every scope.
func (r *BalanceRecord) GrandNonrefundable() decimal.Decimal {
	total := r.Site.Nonrefundable
	for _, cb := range r.Categories {
		total = total.Add(cb.Nonrefundable)
	}
	return total
}

// Category returns the sub-balance for a category (zero value if absent).
func (r *BalanceRecord) Category(id CategoryID) CategoryBalance {
	return r.Categories[id]
}

// SetCategory stores a category sub-balance, dropping fully-zeroed entries so
// the serialized map does not accumulate dead keys.
func (r *BalanceRecord) SetCategory(id CategoryID, cb CategoryBalance) {
	if cb.IsZero() {
		delete(r.Categories, id)
		return
	}
	r.Categories[id] = cb
}

// Clone returns a deep copy. The cache hands out clones so callers can never
// mutate shared state.
func (r *BalanceRecord) Clone() *BalanceRecord {
	cp := *r
	cp.Categories = make(map[CategoryID]CategoryBalance, len(r.Categories))
	for k, v := range r.Categories {
		cp.Categories[k] = v
	}
	return &cp
}

// =============================================================================
// BALANCE DETAILS - What a balance inquiry returns
// =============================================================================

// Details is the answer to "how much does this user have for this category?".
// Refundable/Nonrefundable/Free/Total describe the requested scope on its
// own; ValidTotal is what is actually spendable there (own category +
// ancestor categories + site).
type Details struct {
	Refundable    decimal.Decimal
	Nonrefundable decimal.Decimal
	Free          decimal.Decimal
	Total         decimal.Decimal
	ValidTotal    decimal.Decimal
}

// =============================================================================
// DISCOUNT RULE - Tiered conditional discount, evaluated on credit
// =============================================================================

// DiscountRule grants money back at top-up time: if the credited amount,
// grossed up by Percent, meets or exceeds ConditionAmount, the difference is
// credited back as a free non-refundable top-off.
//
// Example: ConditionAmount=100, Percent=20. A credit of 80 grosses up to
// 80/(1-0.20)=100, which meets the threshold, so 20 is credited back.
type DiscountRule struct {
	ID              string
	Category        CategoryID // CategorySite applies everywhere
	ConditionAmount decimal.Decimal
	Percent         decimal.Decimal // 0-100
	ValidFrom       time.Time       // zero = unbounded
	ValidTo         time.Time       // zero = unbounded
}

// ActiveAt reports whether the rule's validity window contains t.
func (dr DiscountRule) ActiveAt(t time.Time) bool {
	if !dr.ValidFrom.IsZero() && t.Before(dr.ValidFrom) {
		return false
	}
	if !dr.ValidTo.IsZero() && t.After(dr.ValidTo) {
		return false
	}
	return true
}

// TopOff computes the amount the rule would credit back for a given credited
// amount, or zero when the grossed-up amount misses the threshold.
func (dr DiscountRule) TopOff(credited decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	if dr.Percent.LessThanOrEqual(decimal.Zero) || dr.Percent.GreaterThanOrEqual(hundred) {
		return decimal.Zero
	}
	keep := hundred.Sub(dr.Percent).Div(hundred) // 1 - p
	grossed := credited.Div(keep)
	if grossed.LessThan(dr.ConditionAmount) {
		return decimal.Zero
	}
	return grossed.Sub(credited)
}

// =============================================================================
// DEFERRED TRANSFORMATION - refundable -> non-refundable after grace period
// =============================================================================

// PendingTransform is a fire-once scheduled task converting a refundable
// credit to non-refundable once the grace period elapses. At fire time the
// amount is capped at the refundable balance still available in the credited
// scope; an exhausted balance means no mutation.
type PendingTransform struct {
	ID            string
	TransactionID string
	UserID        UserID
	Amount        decimal.Decimal
	Category      CategoryID
	RunAt         time.Time
	CreatedAt     time.Time
}
