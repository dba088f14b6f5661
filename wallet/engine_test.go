package wallet_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-engine/wallet"
	"github.com/warp/wallet-engine/wallet/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(mem *store.Memory, cfg wallet.Config) *wallet.Engine {
	return wallet.NewEngine(wallet.Deps{
		Balances:   mem,
		Ledger:     wallet.NewLedger(mem),
		Categories: mem,
		Rules:      mem,
		Users:      mem,
		Transforms: mem,
		Config:     cfg,
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// failingBalances wraps a balance store and fails every save for one user.
type failingBalances struct {
	wallet.BalanceStore
	failFor wallet.UserID
}

func (f *failingBalances) SaveBalance(ctx context.Context, rec *wallet.BalanceRecord) error {
	if rec.UserID == f.failFor {
		return errors.New("disk full")
	}
	return f.BalanceStore.SaveBalance(ctx, rec)
}

// =============================================================================
// CREDIT CLASSIFICATION TESTS
// =============================================================================

func TestCredit_Refundable_LandsInRefundable(t *testing.T) {
	// GIVEN: Refunds enabled site-wide
	// WHEN: Crediting 100 with refundable intent
	// THEN: The full amount is refundable, none of it free

	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Refundable.Equal(dec("100")))
	assert.True(t, details.Nonrefundable.IsZero())
	assert.True(t, details.Free.IsZero())
	assert.True(t, details.Total.Equal(dec("100")))
}

func TestCredit_FreeReason_AlwaysNonrefundableAndFree(t *testing.T) {
	// GIVEN: A cashback credit asking to be refundable
	// WHEN: Crediting 50
	// THEN: The reason code wins: non-refundable and fully free

	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("50"), Reason: wallet.ReasonCashback, Refundable: true,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Refundable.IsZero())
	assert.True(t, details.Nonrefundable.Equal(dec("50")))
	assert.True(t, details.Free.Equal(dec("50")))
}

func TestCredit_RefundsDisabled_Nonrefundable(t *testing.T) {
	ctx := context.Background()
	cfg := wallet.DefaultConfig()
	cfg.RefundsEnabled = false
	engine := newTestEngine(store.NewMemory(), cfg)

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Refundable.IsZero())
	assert.True(t, details.Nonrefundable.Equal(dec("100")))
	assert.True(t, details.Free.IsZero(), "non-free reason must not mark the credit free")
}

func TestCredit_NegativeAmount_Rejected(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("-5"), Reason: wallet.ReasonUser,
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	var invErr *wallet.InvalidAmountError
	assert.ErrorAs(t, err, &invErr)
}

// =============================================================================
// DEBIT TESTS
// =============================================================================

func TestDebit_InsufficientBalance_RejectedAtomically(t *testing.T) {
	// GIVEN: A wallet holding 100
	// WHEN: Debiting 150 without allowNegative
	// THEN: The debit is rejected and the balance is untouched

	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	_, err = engine.Debit(ctx, wallet.DebitRequest{
		UserID: "u1", Amount: dec("150"), Reason: wallet.ReasonEnrol,
	})

	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	var insErr *wallet.InsufficientBalanceError
	require.ErrorAs(t, err, &insErr)
	assert.True(t, insErr.Available.Equal(dec("100")))
	assert.True(t, insErr.Requested.Equal(dec("150")))
	assert.True(t, insErr.Shortfall().Equal(dec("50")))

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Total.Equal(dec("100")), "rejected debit must not move money")

	history, err := engine.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "rejected debit must not be recorded")
}

func TestDebit_AllowNegative_SiteGoesNegative(t *testing.T) {
	// GIVEN: A wallet holding 100
	// WHEN: Debiting 150 with allowNegative
	// THEN: The balance ends at -50, carried by the site non-refundable bucket

	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	tx, err := engine.Debit(ctx, wallet.DebitRequest{
		UserID: "u1", Amount: dec("150"), Reason: wallet.ReasonEnrol, AllowNegative: true,
	})
	require.NoError(t, err)
	assert.True(t, tx.BalanceAfter.Equal(dec("-50")))

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Total.Equal(dec("-50")))
	assert.True(t, details.Nonrefundable.Equal(dec("-50")))
	assert.True(t, details.Refundable.IsZero())
}

func TestDebit_SiteScope_CategoryMoneyNotSpendable(t *testing.T) {
	// GIVEN: 50 at site level and 60 in a category
	// WHEN: Debiting 100 at site scope without allowNegative
	// THEN: The debit is rejected: category money never pays for a
	//       site-scoped purchase, and no sub-balance goes negative

	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("50"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)
	_, err = engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("60"), Reason: wallet.ReasonPayment, Refundable: true, Category: 2,
	})
	require.NoError(t, err)

	_, err = engine.Debit(ctx, wallet.DebitRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonEnrol,
	})

	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	var insErr *wallet.InsufficientBalanceError
	require.ErrorAs(t, err, &insErr)
	assert.True(t, insErr.Available.Equal(dec("50")), "only site money is available at site scope")

	site, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, site.Total.Equal(dec("50")), "rejected debit leaves site money alone")
	assert.True(t, site.Nonrefundable.IsZero(), "no sub-balance may go negative")

	cat, err := engine.Balance(ctx, "u1", 2)
	require.NoError(t, err)
	assert.True(t, cat.Total.Equal(dec("60")))
}

func TestDebit_CascadesCategoryAncestorsThenSite(t *testing.T) {
	// GIVEN: 30 in a leaf category, 20 in its parent, 50 at site level
	// WHEN: Debiting 90 against the leaf
	// THEN: Leaf drains first, then parent, then site; 10 stays at site

	ctx := context.Background()
	mem := store.NewMemory()
	mem.SetParent(2, 1)
	engine := newTestEngine(mem, wallet.DefaultConfig())

	for _, c := range []struct {
		cat    wallet.CategoryID
		amount string
	}{
		{2, "30"}, {1, "20"}, {wallet.CategorySite, "50"},
	} {
		_, err := engine.Credit(ctx, wallet.CreditRequest{
			UserID: "u1", Amount: dec(c.amount), Reason: wallet.ReasonPayment,
			Refundable: true, Category: c.cat,
		})
		require.NoError(t, err)
	}

	_, err := engine.Debit(ctx, wallet.DebitRequest{
		UserID: "u1", Amount: dec("90"), Reason: wallet.ReasonEnrol, Category: 2,
	})
	require.NoError(t, err)

	leaf, err := engine.Balance(ctx, "u1", 2)
	require.NoError(t, err)
	assert.True(t, leaf.Total.IsZero(), "leaf category drains first")

	parent, err := engine.Balance(ctx, "u1", 1)
	require.NoError(t, err)
	assert.True(t, parent.Total.IsZero(), "parent drains second")

	site, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, site.Total.Equal(dec("10")), "site keeps the remainder")
}

func TestDebit_SiblingCategoryNotTouched(t *testing.T) {
	// GIVEN: Money in two sibling categories
	// WHEN: Debiting against one of them beyond its own balance
	// THEN: The sibling is untouched; the shortfall is rejected

	ctx := context.Background()
	mem := store.NewMemory()
	mem.SetParent(2, 1)
	mem.SetParent(3, 1)
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("40"), Reason: wallet.ReasonPayment, Refundable: true, Category: 2,
	})
	require.NoError(t, err)
	_, err = engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("40"), Reason: wallet.ReasonPayment, Refundable: true, Category: 3,
	})
	require.NoError(t, err)

	_, err = engine.Debit(ctx, wallet.DebitRequest{
		UserID: "u1", Amount: dec("50"), Reason: wallet.ReasonEnrol, Category: 2,
	})

	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance,
		"sibling balances are not spendable from another category")

	sibling, err := engine.Balance(ctx, "u1", 3)
	require.NoError(t, err)
	assert.True(t, sibling.Total.Equal(dec("40")))
}

func TestDebit_ConcurrentDebits_OnlyOneSucceeds(t *testing.T) {
	// GIVEN: A wallet holding 100
	// WHEN: Two debits of 100 race on the same user
	// THEN: Exactly one wins; the other sees the drained balance and is
	//       rejected, never a double spend from a stale read

	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Debit(ctx, wallet.DebitRequest{
				UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonEnrol,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, rejected int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
		rejected++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, rejected)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Total.IsZero(), "exactly one debit moved money")

	history, err := engine.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 2, "credit plus the single winning debit")
}

func TestDebit_SpendsRefundableBeforeFree(t *testing.T) {
	// GIVEN: 20 refundable and 30 free money in the same scope
	// WHEN: Debiting 40
	// THEN: Refundable drains first; the remaining 20 comes out of free

	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("20"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)
	_, err = engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("30"), Reason: wallet.ReasonCashback,
	})
	require.NoError(t, err)

	_, err = engine.Debit(ctx, wallet.DebitRequest{
		UserID: "u1", Amount: dec("40"), Reason: wallet.ReasonEnrol,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Refundable.IsZero())
	assert.True(t, details.Nonrefundable.Equal(dec("10")))
	assert.True(t, details.Free.Equal(dec("10")), "free tracking follows the spend")
}

// =============================================================================
// CONDITIONAL DISCOUNT TESTS
// =============================================================================

func TestCredit_ConditionalTopOff(t *testing.T) {
	// GIVEN: A 20% rule with a 100 threshold
	// WHEN: Crediting 80 (grossed up: 80 / 0.8 = 100, meets the threshold)
	// THEN: A 20 free top-off lands on top of the original credit

	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRule(wallet.DiscountRule{
		ID: "tier-1", Category: wallet.CategorySite,
		ConditionAmount: dec("100"), Percent: dec("20"),
	})
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("80"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Total.Equal(dec("100")))
	assert.True(t, details.Refundable.Equal(dec("80")))
	assert.True(t, details.Free.Equal(dec("20")), "top-off is free money")

	history, err := engine.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2, "top-off is its own ledger entry")
	assert.Equal(t, wallet.ReasonDiscountTopOff, history[1].Reason)
	assert.Equal(t, history[0].ID, history[1].RelatedID)
}

func TestCredit_ConditionalTopOff_BelowThreshold_NoTopOff(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRule(wallet.DiscountRule{
		ID: "tier-1", Category: wallet.CategorySite,
		ConditionAmount: dec("100"), Percent: dec("20"),
	})
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("50"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	history, err := engine.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCredit_ConditionalTopOff_BestRuleWins(t *testing.T) {
	// GIVEN: Two matching rules, 10% and 25%
	// WHEN: Crediting 75 (meets both thresholds)
	// THEN: Only the larger top-off is granted

	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRule(wallet.DiscountRule{
		ID: "small", Category: wallet.CategorySite, ConditionAmount: dec("50"), Percent: dec("10"),
	})
	mem.AddRule(wallet.DiscountRule{
		ID: "large", Category: wallet.CategorySite, ConditionAmount: dec("100"), Percent: dec("25"),
	})
	engine := newTestEngine(mem, wallet.DefaultConfig())

	// 75 / 0.75 = 100: the 25% rule tops off by 25, the 10% rule by ~8.33.
	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("75"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	details, err := engine.Balance(ctx, "u1", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Total.Equal(dec("100")))
}

func TestCredit_FreeReason_NoConditionalTopOff(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddRule(wallet.DiscountRule{
		ID: "tier-1", Category: wallet.CategorySite, ConditionAmount: dec("50"), Percent: dec("50"),
	})
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonCashback,
	})
	require.NoError(t, err)

	history, err := engine.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "free credits never earn a top-off")
}

// =============================================================================
// TRANSFER TESTS
// =============================================================================

func TestTransfer_MovesMoney(t *testing.T) {
	// GIVEN: Alice holds 100, Bob exists
	// WHEN: Alice transfers 40 to Bob
	// THEN: Alice holds 60, Bob holds 40, both sides fully recorded

	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddUser(wallet.User{ID: "alice", Email: "alice@example.com"})
	mem.AddUser(wallet.User{ID: "bob", Email: "bob@example.com"})
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "alice", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	result, err := engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "bob@example.com", Amount: dec("40"),
	})
	require.NoError(t, err)
	assert.Equal(t, wallet.UserID("bob"), result.ReceiverID)
	assert.True(t, result.Debited.Equal(dec("40")))
	assert.True(t, result.Credited.Equal(dec("40")))
	assert.True(t, result.Fee.IsZero())
	assert.Equal(t, wallet.ReasonUserTransfer, result.DebitTx.Reason)
	assert.Equal(t, wallet.ReasonTransfer, result.CreditTx.Reason)

	aliceDetails, err := engine.Balance(ctx, "alice", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, aliceDetails.Total.Equal(dec("60")))

	bobDetails, err := engine.Balance(ctx, "bob", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, bobDetails.Total.Equal(dec("40")))
}

func TestTransfer_FeeOnSender(t *testing.T) {
	// GIVEN: 10% fee charged to the sender
	// WHEN: Transferring 40
	// THEN: Sender pays 44, receiver gets the full 40

	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddUser(wallet.User{ID: "alice", Email: "alice@example.com"})
	mem.AddUser(wallet.User{ID: "bob", Email: "bob@example.com"})
	cfg := wallet.DefaultConfig()
	cfg.TransferFeePercent = dec("10")
	cfg.TransferFeePayer = wallet.FeeOnSender
	engine := newTestEngine(mem, cfg)

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "alice", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	result, err := engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "bob@example.com", Amount: dec("40"),
	})
	require.NoError(t, err)
	assert.True(t, result.Fee.Equal(dec("4")))
	assert.True(t, result.Debited.Equal(dec("44")))
	assert.True(t, result.Credited.Equal(dec("40")))

	aliceDetails, err := engine.Balance(ctx, "alice", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, aliceDetails.Total.Equal(dec("56")))
}

func TestTransfer_FeeOnReceiver(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddUser(wallet.User{ID: "alice", Email: "alice@example.com"})
	mem.AddUser(wallet.User{ID: "bob", Email: "bob@example.com"})
	cfg := wallet.DefaultConfig()
	cfg.TransferFeePercent = dec("10")
	cfg.TransferFeePayer = wallet.FeeOnReceiver
	engine := newTestEngine(mem, cfg)

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "alice", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	result, err := engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "bob@example.com", Amount: dec("40"),
	})
	require.NoError(t, err)
	assert.True(t, result.Debited.Equal(dec("40")))
	assert.True(t, result.Credited.Equal(dec("36")))

	bobDetails, err := engine.Balance(ctx, "bob", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, bobDetails.Total.Equal(dec("36")))
}

func TestTransfer_ReceiverNotFound_NothingDebited(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "alice", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	_, err = engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "ghost@example.com", Amount: dec("40"),
	})

	assert.ErrorIs(t, err, wallet.ErrTransferFailed)

	details, err := engine.Balance(ctx, "alice", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Total.Equal(dec("100")), "failed validation must not debit")
}

func TestTransfer_SuspendedReceiver_Rejected(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddUser(wallet.User{ID: "bob", Email: "bob@example.com", Suspended: true})
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "bob@example.com", Amount: dec("10"),
	})

	assert.ErrorIs(t, err, wallet.ErrTransferFailed)
}

func TestTransfer_ToSelf_Rejected(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddUser(wallet.User{ID: "alice", Email: "alice@example.com"})
	engine := newTestEngine(mem, wallet.DefaultConfig())

	_, err := engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "alice@example.com", Amount: dec("10"),
	})

	assert.ErrorIs(t, err, wallet.ErrTransferFailed)
}

func TestTransfer_ZeroAmount_Rejected(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(store.NewMemory(), wallet.DefaultConfig())

	_, err := engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "bob@example.com", Amount: decimal.Zero,
	})

	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

func TestTransfer_ReceiverCreditFails_SenderCompensated(t *testing.T) {
	// GIVEN: A store that rejects every write to the receiver's balance
	// WHEN: Alice transfers 40 to Bob
	// THEN: The transfer fails compensated: Alice's debit is rolled back
	//       with a rollback credit and her balance is whole again

	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddUser(wallet.User{ID: "alice", Email: "alice@example.com"})
	mem.AddUser(wallet.User{ID: "bob", Email: "bob@example.com"})

	engine := wallet.NewEngine(wallet.Deps{
		Balances:   &failingBalances{BalanceStore: mem, failFor: "bob"},
		Ledger:     wallet.NewLedger(mem),
		Categories: mem,
		Rules:      mem,
		Users:      mem,
		Transforms: mem,
		Config:     wallet.DefaultConfig(),
	})

	_, err := engine.Credit(ctx, wallet.CreditRequest{
		UserID: "alice", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true,
	})
	require.NoError(t, err)

	_, err = engine.Transfer(ctx, wallet.TransferRequest{
		SenderID: "alice", ReceiverEmail: "bob@example.com", Amount: dec("40"),
	})

	assert.ErrorIs(t, err, wallet.ErrTransferFailed)
	var transferErr *wallet.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.True(t, transferErr.Compensated)

	details, err := engine.Balance(ctx, "alice", wallet.CategorySite)
	require.NoError(t, err)
	assert.True(t, details.Total.Equal(dec("100")), "compensation restores the total")

	history, err := engine.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 3, "credit, debit, rollback")
	assert.Equal(t, wallet.ReasonRollback, history[2].Reason)
	assert.Equal(t, history[1].ID, history[2].RelatedID, "rollback references the debit")
}

// =============================================================================
// CONSERVATION
// =============================================================================

func TestLedger_BalanceAfterMatchesRunningTotal(t *testing.T) {
	// GIVEN: A mixed series of credits and debits
	// THEN: Every ledger entry's before/after pair chains exactly

	ctx := context.Background()
	mem := store.NewMemory()
	mem.SetParent(2, 1)
	engine := newTestEngine(mem, wallet.DefaultConfig())

	ops := []func() error{
		func() error {
			_, err := engine.Credit(ctx, wallet.CreditRequest{
				UserID: "u1", Amount: dec("100"), Reason: wallet.ReasonPayment, Refundable: true, Category: 2,
			})
			return err
		},
		func() error {
			_, err := engine.Credit(ctx, wallet.CreditRequest{
				UserID: "u1", Amount: dec("25"), Reason: wallet.ReasonCashback,
			})
			return err
		},
		func() error {
			_, err := engine.Debit(ctx, wallet.DebitRequest{
				UserID: "u1", Amount: dec("60"), Reason: wallet.ReasonEnrol, Category: 2,
			})
			return err
		},
		func() error {
			_, err := engine.Debit(ctx, wallet.DebitRequest{
				UserID: "u1", Amount: dec("20"), Reason: wallet.ReasonEnrol,
			})
			return err
		},
	}
	for _, op := range ops {
		require.NoError(t, op())
	}

	history, err := engine.History(ctx, "u1")
	require.NoError(t, err)

	running := decimal.Zero
	for _, tx := range history {
		assert.True(t, tx.BalanceBefore.Equal(running),
			"entry %s balance_before mismatch", tx.ID)
		running = tx.BalanceAfter
	}

	rec, err := engine.ReadModel().Record(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.GrandTotal().Equal(running), "record agrees with the ledger")
	assert.True(t, running.Equal(dec("45")))
}
