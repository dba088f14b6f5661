/*
Package discount computes the cost of an enrolment after stacking every
configured discount source.

PURPOSE:
  Four independent sources each yield a fraction in [0,1]: an applied
  percent coupon, a user profile field, repurchase history, and the
  instance's configured offers. One of three site-wide strategies merges
  them - and the same strategy also merges the valid offers among
  themselves.

KEY FILES:
  - strategy.go:   The three combination strategies
  - offers.go:     Offer rules attached to an enrolment instance
  - instance.go:   Typed instance configuration + provider interfaces
  - aggregator.go: getCostAfterDiscount with per-request memoization
*/
package discount

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/wallet"
)

// Combine merges discount fractions per the strategy. The result is always
// clamped to [0,1]; fractions outside that range are clamped first.
//
// Sequential sorts descending and compounds each discount on what the
// previous ones left: combined = 1 - product(1 - d_i). 20% and 50% give
// 60%. Sum gives 70%, Max gives 50%.
func Combine(strategy wallet.DiscountStrategy, fractions []decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)

	clamped := make([]decimal.Decimal, 0, len(fractions))
	for _, f := range fractions {
		if f.IsNegative() {
			f = decimal.Zero
		}
		if f.GreaterThan(one) {
			f = one
		}
		clamped = append(clamped, f)
	}
	if len(clamped) == 0 {
		return decimal.Zero
	}

	switch strategy {
	case wallet.StrategySum:
		sum := decimal.Zero
		for _, f := range clamped {
			sum = sum.Add(f)
		}
		return decimal.Min(sum, one)

	case wallet.StrategyMax:
		max := decimal.Zero
		for _, f := range clamped {
			max = decimal.Max(max, f)
		}
		return max

	default: // StrategySequential
		sort.Slice(clamped, func(i, j int) bool {
			return clamped[i].GreaterThan(clamped[j])
		})
		remainder := one
		for _, f := range clamped {
			remainder = remainder.Mul(one.Sub(f))
		}
		return one.Sub(remainder)
	}
}
