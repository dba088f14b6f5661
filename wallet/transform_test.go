package wallet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-engine/wallet"
	"github.com/warp/wallet-engine/wallet/store"
)

// =============================================================================
// DEFERRED TRANSFORMATION TESTS
// =============================================================================

func TestCredit_SchedulesTransform(t *testing.T) {
	// GIVEN: A 1-hour grace period
	// WHEN: A refundable credit commits
	// THEN: A pending transform is queued, due after the grace period

	ctx := context.Background()
	mem := store.NewMemory()
	cfg := wallet.DefaultConfig()
	cfg.GracePeriod = time.Hour
	engine := newTestEngine(mem, cfg)

	tx, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("200"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	nothingDue, err := mem.Due(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, nothingDue, "not due before the grace period elapses")

	due, err := mem.Due(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, tx.ID, due[0].TransactionID)
	assert.True(t, due[0].Amount.Equal(dec("200")))
}

func TestCredit_NonRefundable_NoTransformScheduled(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("50"), Reason: wallet.ReasonCashback,
	})
	require.NoError(t, err)

	due, err := mem.Due(ctx, time.Now().Add(1000*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestApplyTransform_MovesRefundableWithoutLedgerEntry(t *testing.T) {
	// GIVEN: A wallet with 200 refundable
	// WHEN: The full transform fires
	// THEN: 200 becomes non-refundable, the total is unchanged, and no
	//       ledger entry is written

	ctx := context.Background()
	mem := store.NewMemory()
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("200"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	err = engine.ApplyTransform(ctx, wallet.PendingTransform{
		ID: "pt-1", UserID: "u1", Amount: dec("200"), Category: wallet.CategorySite,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Refundable.IsZero())
	assert.True(t, details.Nonrefundable.Equal(dec("200")))
	assert.True(t, details.Free.IsZero(), "transformed money is not free money")
	assert.True(t, details.Total.Equal(dec("200")), "transformation never changes the total")

	history, err := engine.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "no ledger entry for a transformation")
}

func TestApplyTransform_CappedBySpentRefundable(t *testing.T) {
	// GIVEN: 200 credited refundable, 190 spent before the transform fires
	// WHEN: The transform for the full 200 fires
	// THEN: Only the remaining 10 is converted

	ctx := context.Background()
	mem := store.NewMemory()
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("200"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)
	_, err = engine.Debit(ctx, wallet.DebitRequest{
		UserID: "u1", Amount: dec("190"), Reason: wallet.ReasonEnrol,
	})
	require.NoError(t, err)

	err = engine.ApplyTransform(ctx, wallet.PendingTransform{
		ID: "pt-1", UserID: "u1", Amount: dec("200"), Category: wallet.CategorySite,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Refundable.IsZero())
	assert.True(t, details.Nonrefundable.Equal(dec("10")))
	assert.True(t, details.Total.Equal(dec("10")))
}

func TestApplyTransform_NothingRefundable_NoOp(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("50"), Reason: wallet.ReasonCashback,
	})
	require.NoError(t, err)

	err = engine.ApplyTransform(ctx, wallet.PendingTransform{
		ID: "pt-1", UserID: "u1", Amount: dec("50"), Category: wallet.CategorySite,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Nonrefundable.Equal(dec("50")))
	assert.True(t, details.Free.Equal(dec("50")), "a no-op transform changes nothing")
}

func TestApplyTransform_CategoryScoped(t *testing.T) {
	// GIVEN: Refundable money in two scopes
	// WHEN: A category-scoped transform fires
	// THEN: Only that category's refundable amount converts

	ctx := context.Background()
	mem := store.NewMemory()
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true, Category: 5,
	})
	require.NoError(t, err)
	_, err = engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("60"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	err = engine.ApplyTransform(ctx, wallet.PendingTransform{
		ID: "pt-1", UserID: "u1", Amount: dec("100"), Category: 5,
	})
	require.NoError(t, err)

	cat, err := engine.Balance(ctx, "u1", 5)
	require.NoError(t, err)
	assert.True(t, cat.Refundable.IsZero())
	assert.True(t, cat.Nonrefundable.Equal(dec("100")))

	site, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, site.Refundable.Equal(dec("60")), "site scope untouched")
}

func TestApplyTransform_NegativeAmount_Rejected(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	err := engine.ApplyTransform(ctx, wallet.PendingTransform{
		ID: "pt-1", UserID: "u1", Amount: dec("-1"),
	})

	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
}
