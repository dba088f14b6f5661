/*
aggregator.go - Cost-after-discount computation

PURPOSE:
  getCostAfterDiscount for an enrolment instance and user: evaluate the
  four discount sources, merge them with the configured strategy, apply
  the combined fraction to the listed cost.

MEMOIZATION:
  Coupon validation and history lookups hit the store, and enrolment
  workflows ask for the same cost repeatedly within one request. Results
  are memoized per (instance, user) in an explicit cache object with an
  explicit Invalidate ("recalculate") call for when balance or coupon
  state changed mid-request.
*/
package discount

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/coupon"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config carries the aggregator's site-wide settings.
type Config struct {
	// Strategy merges the four discount sources and the offers among
	// themselves.
	Strategy wallet.DiscountStrategy

	// ProfileField is the name of the user profile field carrying a
	// discount grant ("free", "no", or an embedded percent). Empty
	// disables the profile-field discount.
	ProfileField string
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	Coupons    *coupon.Validator
	Profiles   ProfileProvider
	History    EnrolmentHistory
	Categories wallet.CategoryResolver
	Config     Config
	Now        func() time.Time

	memo costMemo
}

func NewAggregator(coupons *coupon.Validator, profiles ProfileProvider, history EnrolmentHistory, categories wallet.CategoryResolver, cfg Config) *Aggregator {
	return &Aggregator{
		Coupons:    coupons,
		Profiles:   profiles,
		History:    history,
		Categories: categories,
		Config:     cfg,
		Now:        time.Now,
	}
}

// CostAfterDiscount computes the final price of an enrolment for a user.
// couponCode may be empty. A zero or negative listed cost short-circuits to
// zero without evaluating any discount. An invalid coupon means "no coupon
// discount", never an error.
func (a *Aggregator) CostAfterDiscount(ctx context.Context, inst *EnrolmentInstance, userID wallet.UserID, couponCode string) (decimal.Decimal, error) {
	if !inst.Cost.IsPositive() {
		return decimal.Zero, nil
	}

	key := memoKey{InstanceID: inst.ID, UserID: userID, Coupon: couponCode}
	if cost, ok := a.memo.get(key); ok {
		return cost, nil
	}

	combined, err := a.combinedDiscount(ctx, inst, userID, couponCode)
	if err != nil {
		return decimal.Zero, err
	}

	one := decimal.NewFromInt(1)
	cost := inst.Cost.Mul(one.Sub(combined))
	if cost.IsNegative() {
		cost = decimal.Zero
	}

	a.memo.put(key, cost)
	return cost, nil
}

// Invalidate drops the memoized cost for an instance+user so the next call
// recomputes it (after balance or coupon state changed mid-request).
func (a *Aggregator) Invalidate(instanceID int64, userID wallet.UserID) {
	a.memo.invalidate(instanceID, userID)
}

// InvalidateInstance drops memoized costs for every user of an instance
// (after the instance definition itself changed).
func (a *Aggregator) InvalidateInstance(instanceID int64) {
	a.memo.invalidateInstance(instanceID)
}

// combinedDiscount merges the four sources.
func (a *Aggregator) combinedDiscount(ctx context.Context, inst *EnrolmentInstance, userID wallet.UserID, couponCode string) (decimal.Decimal, error) {
	fractions := make([]decimal.Decimal, 0, 4)

	couponFrac, err := a.couponDiscount(ctx, inst, userID, couponCode)
	if err != nil {
		return decimal.Zero, err
	}
	fractions = append(fractions, couponFrac)

	profileFrac, err := a.profileDiscount(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	fractions = append(fractions, profileFrac)

	repurchaseFrac, err := a.repurchaseDiscount(ctx, inst, userID)
	if err != nil {
		return decimal.Zero, err
	}
	fractions = append(fractions, repurchaseFrac)

	offersFrac, err := a.offersDiscount(ctx, inst, userID)
	if err != nil {
		return decimal.Zero, err
	}
	fractions = append(fractions, offersFrac)

	return Combine(a.Config.Strategy, fractions), nil
}

// couponDiscount is non-zero only for a valid percent coupon on this
// enrolment target. Validation failures are "no discount".
func (a *Aggregator) couponDiscount(ctx context.Context, inst *EnrolmentInstance, userID wallet.UserID, code string) (decimal.Decimal, error) {
	if code == "" || a.Coupons == nil {
		return decimal.Zero, nil
	}

	c, err := a.Coupons.Validate(ctx, code, userID, coupon.Target{
		Area:       coupon.AreaEnrol,
		AreaID:     inst.ID,
		CourseID:   inst.CourseID,
		CategoryID: inst.Category,
	})
	if err != nil {
		if coupon.IsInvalid(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	if c.Type != coupon.TypePercent {
		return decimal.Zero, nil
	}

	frac := c.Value.Div(decimal.NewFromInt(100))
	return decimal.Min(frac, decimal.NewFromInt(1)), nil
}

// profileDiscount reads the configured profile field and parses it.
func (a *Aggregator) profileDiscount(ctx context.Context, userID wallet.UserID) (decimal.Decimal, error) {
	if a.Config.ProfileField == "" || a.Profiles == nil {
		return decimal.Zero, nil
	}
	value, err := a.Profiles.Field(ctx, userID, a.Config.ProfileField)
	if err != nil {
		return decimal.Zero, err
	}
	return ParseProfileDiscount(value), nil
}

// ParseProfileDiscount interprets a profile field's text: the word "free"
// grants 100%, "no" grants nothing, otherwise the first embedded integer is
// a percent capped at 100. Anything else grants nothing.
func ParseProfileDiscount(value string) decimal.Decimal {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" {
		return decimal.Zero
	}
	if strings.Contains(lower, "free") {
		return decimal.NewFromInt(1)
	}
	if strings.Contains(lower, "no") {
		return decimal.Zero
	}

	n, ok := firstInt(lower)
	if !ok {
		return decimal.Zero
	}
	frac := decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(100))
	return decimal.Min(frac, decimal.NewFromInt(1))
}

// firstInt extracts the first run of digits from s.
func firstInt(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return atoi(s[start:i]), true
		}
	}
	if start >= 0 {
		return atoi(s[start:]), true
	}
	return 0, false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// repurchaseDiscount applies when the user previously held and let expire an
// enrolment in this instance; it escalates to the second-purchase discount
// when that expired enrolment was itself a repurchase.
func (a *Aggregator) repurchaseDiscount(ctx context.Context, inst *EnrolmentInstance, userID wallet.UserID) (decimal.Decimal, error) {
	if a.History == nil || !inst.RepurchaseFirst.IsPositive() {
		return decimal.Zero, nil
	}

	expired, err := a.History.ExpiredEnrolment(ctx, userID, inst.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if !expired {
		return decimal.Zero, nil
	}

	percent := inst.RepurchaseFirst
	if inst.RepurchaseSecond.IsPositive() {
		again, err := a.History.WasRepurchase(ctx, userID, inst.ID)
		if err != nil {
			return decimal.Zero, err
		}
		if again {
			percent = inst.RepurchaseSecond
		}
	}

	frac := percent.Div(decimal.NewFromInt(100))
	return decimal.Min(frac, decimal.NewFromInt(1)), nil
}

// offersDiscount evaluates every offer on the instance and combines the
// valid ones' discounts with the same strategy used across sources.
func (a *Aggregator) offersDiscount(ctx context.Context, inst *EnrolmentInstance, userID wallet.UserID) (decimal.Decimal, error) {
	if len(inst.Offers) == 0 {
		return decimal.Zero, nil
	}

	deps := offerDeps{
		profiles:   a.Profiles,
		history:    a.History,
		categories: a.Categories,
		now:        a.Now,
	}

	var fractions []decimal.Decimal
	for _, offer := range inst.Offers {
		ok, err := offer.valid(ctx, userID, deps)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			fractions = append(fractions, offer.Fraction())
		}
	}
	return Combine(a.Config.Strategy, fractions), nil
}

// =============================================================================
// MEMO - per (instance, user) cost cache
// =============================================================================

type memoKey struct {
	InstanceID int64
	UserID     wallet.UserID
	Coupon     string
}

type costMemo struct {
	mu    sync.Mutex
	costs map[memoKey]decimal.Decimal
}

func (m *costMemo) get(k memoKey) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cost, ok := m.costs[k]
	return cost, ok
}

func (m *costMemo) put(k memoKey, cost decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.costs == nil {
		m.costs = make(map[memoKey]decimal.Decimal)
	}
	m.costs[k] = cost
}

func (m *costMemo) invalidate(instanceID int64, userID wallet.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.costs {
		if k.InstanceID == instanceID && k.UserID == userID {
			delete(m.costs, k)
		}
	}
}

func (m *costMemo) invalidateInstance(instanceID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.costs {
		if k.InstanceID == instanceID {
			delete(m.costs, k)
		}
	}
}
