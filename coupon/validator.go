/*
validator.go - Coupon validation and usage counting

PURPOSE:
  A code passes through unvalidated -> {valid, invalid} for a given
  target. Checks run in a fixed order and short-circuit on the first
  failure:

    1. coupon type enabled in site configuration
    2. current time within [validFrom, validTo] (zero = unbounded)
    3. total usage below the total cap (0 = unbounded)
    4. this user's usage below the per-user cap (0 = unbounded)
    5. area compatibility:
       - category coupons require the target's category to equal the
         coupon's category or sit below it (broader-scope coupons cascade
         down to descendants, never up)
       - enrol coupons are valid only for the enrol area and only when the
         target course is in the coupon's course set
       - fixed and percent coupons are valid for any area

  Invalid coupons yield an InvalidError carrying a human-readable reason,
  not a bare boolean.
*/
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrCouponInvalid is the sentinel every validation failure unwraps to.
var ErrCouponInvalid = errors.New("coupon invalid")

// InvalidError carries the human-readable reason a code was rejected.
type InvalidError struct {
	Code   string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("coupon %q invalid: %s", e.Code, e.Reason)
}

func (e *InvalidError) Unwrap() error { return ErrCouponInvalid }

// IsInvalid reports whether err is a validation failure (as opposed to a
// store error). Cost computation treats these as "no discount".
func IsInvalid(err error) bool {
	return errors.Is(err, ErrCouponInvalid)
}

// =============================================================================
// CONFIG
// =============================================================================

// Config lists which coupon types the site accepts.
type Config struct {
	EnabledTypes map[Type]bool
}

func DefaultConfig() Config {
	return Config{EnabledTypes: map[Type]bool{
		TypeFixed:    true,
		TypePercent:  true,
		TypeEnrol:    true,
		TypeCategory: true,
	}}
}

// =============================================================================
// VALIDATOR
// =============================================================================

type Validator struct {
	Coupons    Store
	Usage      UsageStore
	Categories wallet.CategoryResolver
	Config     Config
	Now        func() time.Time
}

func NewValidator(coupons Store, usage UsageStore, categories wallet.CategoryResolver, cfg Config) *Validator {
	return &Validator{
		Coupons:    coupons,
		Usage:      usage,
		Categories: categories,
		Config:     cfg,
		Now:        time.Now,
	}
}

// Validate runs the full check sequence for a code against a target and
// returns the coupon when valid. Any *InvalidError return means "not
// valid, and here is why".
func (v *Validator) Validate(ctx context.Context, code string, userID wallet.UserID, target Target) (*Coupon, error) {
	c, err := v.Coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &InvalidError{Code: code, Reason: "no such coupon"}
	}

	if !v.Config.EnabledTypes[c.Type] {
		return nil, &InvalidError{Code: code, Reason: fmt.Sprintf("coupon type %q is disabled", c.Type)}
	}

	now := v.Now()
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return nil, &InvalidError{Code: code, Reason: "coupon is not valid yet"}
	}
	if !c.ValidTo.IsZero() && now.After(c.ValidTo) {
		return nil, &InvalidError{Code: code, Reason: "coupon has expired"}
	}

	if c.MaxUsage > 0 {
		total, err := v.Usage.TotalUse(ctx, code)
		if err != nil {
			return nil, err
		}
		if total >= c.MaxUsage {
			return nil, &InvalidError{Code: code, Reason: "coupon usage limit exceeded"}
		}
	}

	if c.MaxUsagePerUser > 0 {
		used, err := v.Usage.UserUse(ctx, code, userID)
		if err != nil {
			return nil, err
		}
		if used >= c.MaxUsagePerUser {
			return nil, &InvalidError{Code: code, Reason: "you have already used this coupon"}
		}
	}

	if err := v.checkArea(ctx, c, target); err != nil {
		return nil, err
	}

	return c, nil
}

// checkArea enforces area/category compatibility.
func (v *Validator) checkArea(ctx context.Context, c *Coupon, target Target) error {
	switch c.Type {
	case TypeEnrol:
		if target.Area != AreaEnrol {
			return &InvalidError{Code: c.Code, Reason: "enrolment coupons can only be used at enrolment"}
		}
		for _, courseID := range c.Courses {
			if courseID == target.CourseID {
				return nil
			}
		}
		return &InvalidError{Code: c.Code, Reason: "coupon does not cover this course"}

	case TypeCategory:
		// An ancestor-scoped coupon is usable on a descendant category,
		// never the reverse.
		if c.Category == wallet.CategorySite {
			return nil
		}
		ok, err := wallet.IsOrDescendantOf(ctx, v.Categories, target.CategoryID, c.Category)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidError{Code: c.Code, Reason: "coupon is restricted to another category"}
		}
		return nil

	default: // fixed and percent are valid for any area
		return nil
	}
}

// =============================================================================
// USAGE
// =============================================================================

// MarkUsed appends a usage record. This is the only way usage counters
// change; the counts themselves are always derived from the records.
func (v *Validator) MarkUsed(ctx context.Context, code string, userID wallet.UserID, area Area, areaID int64) error {
	return v.Usage.AppendUsage(ctx, Usage{
		ID:     uuid.NewString(),
		Code:   code,
		UserID: userID,
		Area:   area,
		AreaID: areaID,
		UsedAt: v.Now(),
	})
}

// TotalUse returns how many times a code has been redeemed.
func (v *Validator) TotalUse(ctx context.Context, code string) (int, error) {
	return v.Usage.TotalUse(ctx, code)
}
