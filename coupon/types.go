/*
Package coupon implements coupon validation, redemption and usage tracking.

PURPOSE:
  A coupon code grants fixed credit, a percentage discount, direct course
  enrolment, or category-scoped credit. Codes carry usage caps (total and
  per user), a validity window, and optionally a category scope. Usage
  counters are derived from append-only usage records - there is no
  mutable counter to keep consistent.

SEE ALSO:
  - validator.go: The validation state machine and usage counting
  - apply.go:     Redemption against the wallet engine
*/
package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// COUPON TYPES AND AREAS
// =============================================================================

type Type string

const (
	TypeFixed    Type = "fixed"    // fixed wallet credit
	TypePercent  Type = "percent"  // percentage discount on the target cost
	TypeEnrol    Type = "enrol"    // direct enrolment into the coupon's courses
	TypeCategory Type = "category" // fixed credit restricted to a category
)

// Area is the target context a coupon is redeemed against.
type Area string

const (
	AreaEnrol   Area = "enrol"
	AreaModule  Area = "module"
	AreaSection Area = "section"
	AreaTopup   Area = "topup"
)

// =============================================================================
// RECORDS
// =============================================================================

// Coupon is the stored definition of a code.
type Coupon struct {
	Code     string
	Type     Type
	Value    decimal.Decimal // credit amount, or percent for TypePercent
	Category wallet.CategoryID
	Courses  []int64 // course set for TypeEnrol

	MaxUsage        int // 0 = unbounded
	MaxUsagePerUser int // 0 = unbounded

	ValidFrom time.Time // zero = unbounded
	ValidTo   time.Time // zero = unbounded
}

// Usage is one redemption. One row per use; caps are enforced by counting
// these rows.
type Usage struct {
	ID     string
	Code   string
	UserID wallet.UserID
	Area   Area
	AreaID int64
	UsedAt time.Time
}

// Target is the resolved redemption context: what the coupon is being used
// on. CourseID and CategoryID are zero when the area has none (topup).
type Target struct {
	Area       Area
	AreaID     int64
	CourseID   int64
	CategoryID wallet.CategoryID
}

// =============================================================================
// STORES
// =============================================================================

// Store persists coupon definitions. FindByCode returns (nil, nil) when the
// code is unknown.
type Store interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	SaveCoupon(ctx context.Context, c *Coupon) error
}

// UsageStore persists redemptions (append-only) and derives the counters.
type UsageStore interface {
	AppendUsage(ctx context.Context, u Usage) error
	TotalUse(ctx context.Context, code string) (int, error)
	UserUse(ctx context.Context, code string, userID wallet.UserID) (int, error)
}
