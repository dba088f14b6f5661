package discount_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/wallet-engine/discount"
	"github.com/warp/wallet-engine/wallet"
)

func fracs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(ss))
	for _, s := range ss {
		out = append(out, decimal.RequireFromString(s))
	}
	return out
}

func TestCombine_Strategies(t *testing.T) {
	// GIVEN: 20% and 50% discounts
	// WHEN: Combined under each strategy
	// THEN: Sequential compounds to 60%, sum adds to 70%, max picks 50%

	in := fracs("0.2", "0.5")

	assert.True(t, discount.Combine(wallet.StrategySequential, in).Equal(decimal.RequireFromString("0.6")))
	assert.True(t, discount.Combine(wallet.StrategySum, in).Equal(decimal.RequireFromString("0.7")))
	assert.True(t, discount.Combine(wallet.StrategyMax, in).Equal(decimal.RequireFromString("0.5")))
}

func TestCombine_SumCappedAtOne(t *testing.T) {
	got := discount.Combine(wallet.StrategySum, fracs("0.8", "0.7"))
	assert.True(t, got.Equal(decimal.NewFromInt(1)))
}

func TestCombine_ClampsOutOfRangeInputs(t *testing.T) {
	// Negative fractions count as zero, fractions above one as one.
	got := discount.Combine(wallet.StrategyMax, fracs("-0.3", "1.5"))
	assert.True(t, got.Equal(decimal.NewFromInt(1)))

	got = discount.Combine(wallet.StrategySequential, fracs("-0.3"))
	assert.True(t, got.IsZero())
}

func TestCombine_Empty(t *testing.T) {
	assert.True(t, discount.Combine(wallet.StrategySequential, nil).IsZero())
	assert.True(t, discount.Combine(wallet.StrategySum, nil).IsZero())
	assert.True(t, discount.Combine(wallet.StrategyMax, nil).IsZero())
}

func TestCombine_SequentialOrderIndependent(t *testing.T) {
	a := discount.Combine(wallet.StrategySequential, fracs("0.5", "0.2", "0.1"))
	b := discount.Combine(wallet.StrategySequential, fracs("0.1", "0.5", "0.2"))
	assert.True(t, a.Equal(b))
}
