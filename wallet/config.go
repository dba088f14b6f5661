/*
config.go - Site-wide wallet configuration

PURPOSE:
  One explicit, immutable configuration struct injected into every
  constructor. No global state: components receive the Config they need
  at construction time.
*/
package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DISCOUNT STRATEGY - How independent discounts combine
// =============================================================================

type DiscountStrategy string

const (
	// StrategySequential compounds discounts multiplicatively, largest
	// first: combined = 1 - product(1 - d_i). "Stack each discount on
	// what's left." 20% and 50% combine to 60%.
	StrategySequential DiscountStrategy = "sequential"

	// StrategySum adds discounts, capped at 100%. 20% and 50% give 70%.
	StrategySum DiscountStrategy = "sum"

	// StrategyMax keeps only the largest discount. 20% and 50% give 50%.
	StrategyMax DiscountStrategy = "max"
)

// =============================================================================
// TRANSFER FEE
// =============================================================================

type FeePayer string

const (
	// FeeOnSender: sender is debited amount+fee, receiver credited amount.
	FeeOnSender FeePayer = "sender"

	// FeeOnReceiver: sender is debited amount, receiver credited amount-fee.
	FeeOnReceiver FeePayer = "receiver"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config carries the site-wide flags the engine and aggregator consume.
type Config struct {
	// CategoryBalances enables per-category sub-balances. When disabled
	// every mutation targets the site scope regardless of category.
	CategoryBalances bool

	// RefundsEnabled makes eligible credits refundable. When disabled all
	// credits are non-refundable (free reasons are unaffected: always
	// non-refundable + free).
	RefundsEnabled bool

	// GracePeriod is how long a refundable credit stays refundable before
	// the deferred transformation converts it. Zero disables scheduling.
	GracePeriod time.Duration

	// ConditionalDiscount enables tiered discount-rule evaluation on credit.
	ConditionalDiscount bool

	// Strategy selects how multiple discounts merge, applied uniformly
	// across discount sources and within the offers list.
	Strategy DiscountStrategy

	// TransferFeePercent is the transfer fee as a percentage of the amount.
	TransferFeePercent decimal.Decimal

	// TransferFeePayer selects which side the fee is charged to.
	TransferFeePayer FeePayer
}

// DefaultConfig mirrors a fresh site: refunds on with a 14-day grace
// period, category balances on, sequential stacking, no transfer fee.
func DefaultConfig() Config {
	return Config{
		CategoryBalances:    true,
		RefundsEnabled:      true,
		GracePeriod:         14 * 24 * time.Hour,
		ConditionalDiscount: true,
		Strategy:            StrategySequential,
		TransferFeePercent:  decimal.Zero,
		TransferFeePayer:    FeeOnReceiver,
	}
}
