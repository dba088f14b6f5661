/*
apply.go - Coupon redemption

PURPOSE:
  Turns a validated coupon into its effect: fixed and category coupons
  credit the wallet, percent coupons hand the discount back to the caller,
  enrol coupons hand back the granted course set (the enrolment itself is
  the caller's job - the engine never touches enrolment state).
*/
package coupon

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/wallet"
)

// ResultKind says what a redemption produced.
type ResultKind string

const (
	ResultCredited ResultKind = "credited"
	ResultDiscount ResultKind = "discount"
	ResultCourses  ResultKind = "courses"
)

// Result is the outcome of Apply.
type Result struct {
	Kind     ResultKind
	Credit   wallet.TransactionRecord // set for ResultCredited
	Discount decimal.Decimal          // fraction in [0,1], set for ResultDiscount
	Courses  []int64                  // set for ResultCourses
}

// Redeemer applies coupons against the wallet engine.
type Redeemer struct {
	Validator *Validator
	Engine    *wallet.Engine
}

func NewRedeemer(v *Validator, e *wallet.Engine) *Redeemer {
	return &Redeemer{Validator: v, Engine: e}
}

// Apply validates and redeems a code for a user against a target. Each
// successful redemption is recorded as one usage row.
func (r *Redeemer) Apply(ctx context.Context, code string, userID wallet.UserID, target Target) (Result, error) {
	c, err := r.Validator.Validate(ctx, code, userID, target)
	if err != nil {
		return Result{}, err
	}

	var result Result
	switch c.Type {
	case TypeFixed, TypeCategory:
		category := wallet.CategorySite
		if c.Type == TypeCategory {
			category = c.Category
		}
		tx, err := r.Engine.Credit(ctx, wallet.CreditRequest{
			UserID:      userID,
			Amount:      c.Value,
			Reason:      wallet.ReasonCoupon,
			RelatedID:   c.Code,
			Description: fmt.Sprintf("coupon %s", c.Code),
			Refundable:  true,
			Category:    category,
		})
		if err != nil {
			return Result{}, err
		}
		result = Result{Kind: ResultCredited, Credit: tx}

	case TypePercent:
		frac := c.Value.Div(decimal.NewFromInt(100))
		if frac.GreaterThan(decimal.NewFromInt(1)) {
			frac = decimal.NewFromInt(1)
		}
		result = Result{Kind: ResultDiscount, Discount: frac}

	case TypeEnrol:
		result = Result{Kind: ResultCourses, Courses: c.Courses}

	default:
		return Result{}, &InvalidError{Code: code, Reason: fmt.Sprintf("unknown coupon type %q", c.Type)}
	}

	if err := r.Validator.MarkUsed(ctx, code, userID, target.Area, target.AreaID); err != nil {
		return Result{}, err
	}
	return result, nil
}
