/*
engine.go - Balance mutation engine

PURPOSE:
  The only component allowed to change a wallet. Credits and debits are
  validated, applied to the BalanceRecord, committed together with an
  append-only TransactionRecord, and announced on the event/notification
  side-channels. Transfers compose a debit and a credit with a
  compensating rollback.

DEBIT CASCADE (the central nontrivial logic):
  A category-scoped debit deducts, in order:
    1. the category's refundable amount
    2. the category's non-refundable amount (tracking the free portion)
    3. the same two steps for each ancestor category, closest first
    4. the same two steps for the site balance
  A remainder is only possible with allowNegative, in which case it is
  applied to the site non-refundable balance, which may go negative.

CREDIT CLASSIFICATION:
  Reason codes decide the sub-balance: free reasons (cashback, referral,
  award, unenrol-refund, rollback, conditional top-off) always land in
  non-refundable + free. Other reasons are refundable only when both the
  request and the global refunds setting say so.

CONCURRENCY:
  Mutations are serialized per user with an in-process lock around the
  read-modify-write of the BalanceRecord. Two concurrent debits can never
  both read the same stale balance and both conclude the debit is
  affordable.
*/
package wallet

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Deps wires the engine's collaborators. Balances, Transactions, Cache and
// Categories are required; the rest default to no-ops.
type Deps struct {
	Balances   BalanceStore
	Ledger     *Ledger
	Cache      BalanceCache
	Categories CategoryResolver
	Rules      RuleStore
	Users      UserDirectory
	Transforms TransformStore
	Events     EventSink
	Notifier   Notifier
	Config     Config
	Now        func() time.Time
}

type Engine struct {
	balances   BalanceStore
	ledger     *Ledger
	categories CategoryResolver
	rules      RuleStore
	users      UserDirectory
	transforms TransformStore
	events     EventSink
	notifier   Notifier
	cfg        Config
	now        func() time.Time

	rm    *ReadModel
	locks userLocks
}

func NewEngine(d Deps) *Engine {
	if d.Events == nil {
		d.Events = NopSink{}
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cache == nil {
		d.Cache = NewMemoryCache()
	}
	return &Engine{
		balances:   d.Balances,
		ledger:     d.Ledger,
		categories: d.Categories,
		rules:      d.Rules,
		users:      d.Users,
		transforms: d.Transforms,
		events:     d.Events,
		notifier:   d.Notifier,
		cfg:        d.Config,
		now:        d.Now,
		rm:         NewReadModel(d.Balances, d.Ledger, d.Cache, d.Categories, d.Config),
	}
}

// ReadModel exposes the balance read model sharing the engine's cache.
func (e *Engine) ReadModel() *ReadModel { return e.rm }

// Balance returns the balance breakdown for a user and category.
func (e *Engine) Balance(ctx context.Context, userID UserID, categoryID CategoryID) (Details, error) {
	return e.rm.Details(ctx, userID, categoryID)
}

// History returns the user's audit trail, oldest first.
func (e *Engine) History(ctx context.Context, userID UserID) ([]TransactionRecord, error) {
	return e.ledger.History(ctx, userID)
}

// =============================================================================
// PER-USER LOCKS - single writer per user
// =============================================================================

type userLocks struct {
	mu    sync.Mutex
	locks map[UserID]*sync.Mutex
}

func (l *userLocks) acquire(id UserID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[UserID]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// CREDIT
// =============================================================================

// CreditRequest describes a credit. Refundable is the caller's intent; the
// effective classification also depends on the reason code and the global
// refunds setting.
type CreditRequest struct {
	UserID      UserID
	Amount      decimal.Decimal
	Reason      Reason
	RelatedID   string
	Description string
	Refundable  bool
	Category    CategoryID
}

// Credit adds money to a wallet and returns the committed ledger entry.
func (e *Engine) Credit(ctx context.Context, req CreditRequest) (TransactionRecord, error) {
	if req.Amount.IsNegative() {
		return TransactionRecord{}, &InvalidAmountError{Amount: req.Amount}
	}

	unlock := e.locks.acquire(req.UserID)
	defer unlock()

	return e.creditLocked(ctx, req, false)
}

// creditLocked applies a credit under the caller-held user lock.
// skipConditional prevents a conditional-discount top-off from re-triggering
// rule evaluation: the termination guarantee is this explicit flag, not the
// reason code.
func (e *Engine) creditLocked(ctx context.Context, req CreditRequest, skipConditional bool) (TransactionRecord, error) {
	rec, err := e.rm.Record(ctx, req.UserID)
	if err != nil {
		return TransactionRecord{}, err
	}
	prev := rec.Clone()

	free := req.Reason.Free()
	refundable := req.Refundable && e.cfg.RefundsEnabled && !free

	scope := CategorySite
	if e.cfg.CategoryBalances {
		scope = req.Category
	}

	before := rec.GrandTotal()

	cb := e.scopeOf(rec, scope)
	if refundable {
		cb.Refundable = cb.Refundable.Add(req.Amount)
	} else {
		cb.Nonrefundable = cb.Nonrefundable.Add(req.Amount)
		if free {
			cb.Free = cb.Free.Add(req.Amount)
		}
	}
	e.setScope(rec, scope, *cb)

	now := e.now()
	tx := TransactionRecord{
		ID:                 uuid.NewString(),
		UserID:             req.UserID,
		Type:               TxCredit,
		Amount:             req.Amount,
		BalanceBefore:      before,
		BalanceAfter:       rec.GrandTotal(),
		NonRefundableAfter: rec.GrandNonrefundable(),
		Category:           req.Category,
		Reason:             req.Reason,
		RelatedID:          req.RelatedID,
		Description:        req.Description,
		CreatedAt:          now,
	}

	if err := e.commit(ctx, rec, prev, tx); err != nil {
		return TransactionRecord{}, err
	}

	e.events.Publish(ctx, Event{
		Type:        TxCredit,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Refundable:  refundable,
		Category:    req.Category,
		Description: req.Description,
	})
	e.notifier.Notify(ctx, tx)

	if refundable && e.cfg.GracePeriod > 0 && e.transforms != nil && req.Amount.IsPositive() {
		pt := PendingTransform{
			ID:            uuid.NewString(),
			TransactionID: tx.ID,
			UserID:        req.UserID,
			Amount:        req.Amount,
			Category:      scope,
			RunAt:         now.Add(e.cfg.GracePeriod),
			CreatedAt:     now,
		}
		if err := e.transforms.Enqueue(ctx, pt); err != nil {
			log.Printf("[Wallet] failed to schedule transformation for tx %s: %v", tx.ID, err)
		}
	}

	if e.cfg.ConditionalDiscount && !skipConditional && !free {
		e.applyConditionalDiscount(ctx, req, tx)
	}

	return tx, nil
}

// applyConditionalDiscount checks tiered discount rules after a credit: the
// best matching rule whose threshold the grossed-up credit crosses earns a
// further free non-refundable credit for the difference. Failures here never
// fail the original credit.
func (e *Engine) applyConditionalDiscount(ctx context.Context, req CreditRequest, origin TransactionRecord) {
	if e.rules == nil || !req.Amount.IsPositive() {
		return
	}

	rules, err := e.rules.ActiveRules(ctx, e.now())
	if err != nil {
		log.Printf("[Wallet] conditional discount lookup failed: %v", err)
		return
	}

	best := decimal.Zero
	for _, rule := range rules {
		ok, err := e.ruleMatches(ctx, rule, req.Category)
		if err != nil {
			log.Printf("[Wallet] conditional discount category check failed: %v", err)
			continue
		}
		if !ok {
			continue
		}
		if topOff := rule.TopOff(req.Amount); topOff.GreaterThan(best) {
			best = topOff
		}
	}
	if !best.IsPositive() {
		return
	}

	_, err = e.creditLocked(ctx, CreditRequest{
		UserID:      req.UserID,
		Amount:      best,
		Reason:      ReasonDiscountTopOff,
		RelatedID:   origin.ID,
		Description: "conditional discount top-off",
		Category:    req.Category,
	}, true)
	if err != nil {
		log.Printf("[Wallet] conditional discount top-off failed for tx %s: %v", origin.ID, err)
	}
}

// ruleMatches reports whether a rule applies to a credit's category: site
// rules apply everywhere, category rules cascade down to descendants.
func (e *Engine) ruleMatches(ctx context.Context, rule DiscountRule, category CategoryID) (bool, error) {
	if rule.Category == CategorySite {
		return true, nil
	}
	if category == CategorySite {
		return false, nil
	}
	return IsOrDescendantOf(ctx, e.categories, category, rule.Category)
}

// =============================================================================
// DEBIT
// =============================================================================

type DebitRequest struct {
	UserID        UserID
	Amount        decimal.Decimal
	Reason        Reason
	RelatedID     string
	Description   string
	AllowNegative bool
	Category      CategoryID
}

// Debit removes money from a wallet, cascading across category, ancestor and
// site balances, and returns the committed ledger entry.
func (e *Engine) Debit(ctx context.Context, req DebitRequest) (TransactionRecord, error) {
	if req.Amount.IsNegative() {
		return TransactionRecord{}, &InvalidAmountError{Amount: req.Amount}
	}

	unlock := e.locks.acquire(req.UserID)
	defer unlock()

	rec, err := e.rm.Record(ctx, req.UserID)
	if err != nil {
		return TransactionRecord{}, err
	}
	prev := rec.Clone()

	details, err := e.rm.details(ctx, rec, req.Category)
	if err != nil {
		return TransactionRecord{}, err
	}
	if !req.AllowNegative && req.Amount.GreaterThan(details.ValidTotal) {
		return TransactionRecord{}, &InsufficientBalanceError{
			UserID:    req.UserID,
			Category:  req.Category,
			Available: details.ValidTotal,
			Requested: req.Amount,
		}
	}

	before := rec.GrandTotal()
	remaining := req.Amount
	freeCut := decimal.Zero

	if e.cfg.CategoryBalances && req.Category != CategorySite {
		chain := []CategoryID{req.Category}
		ancestors, err := e.categories.Ancestors(ctx, req.Category)
		if err != nil {
			return TransactionRecord{}, err
		}
		chain = append(chain, ancestors...)

		for _, cat := range chain {
			if !remaining.IsPositive() {
				break
			}
			cb := rec.Category(cat)
			taken, freeTaken := drain(&cb, remaining)
			rec.SetCategory(cat, cb)
			remaining = remaining.Sub(taken)
			freeCut = freeCut.Add(freeTaken)
		}
	}

	if remaining.IsPositive() {
		taken, freeTaken := drain(&rec.Site, remaining)
		remaining = remaining.Sub(taken)
		freeCut = freeCut.Add(freeTaken)
	}

	// Shortfall only exists with allowNegative: push the site
	// non-refundable balance below zero.
	if remaining.IsPositive() {
		rec.Site.Nonrefundable = rec.Site.Nonrefundable.Sub(remaining)
	}

	now := e.now()
	tx := TransactionRecord{
		ID:                 uuid.NewString(),
		UserID:             req.UserID,
		Type:               TxDebit,
		Amount:             req.Amount,
		BalanceBefore:      before,
		BalanceAfter:       before.Sub(req.Amount),
		NonRefundableAfter: rec.GrandNonrefundable(),
		Category:           req.Category,
		Reason:             req.Reason,
		RelatedID:          req.RelatedID,
		Description:        req.Description,
		CreatedAt:          now,
	}

	if err := e.commit(ctx, rec, prev, tx); err != nil {
		return TransactionRecord{}, err
	}

	e.events.Publish(ctx, Event{
		Type:        TxDebit,
		UserID:      req.UserID,
		Amount:      req.Amount,
		FreeCut:     freeCut,
		Category:    req.Category,
		Description: req.Description,
	})
	e.notifier.Notify(ctx, tx)

	return tx, nil
}

// drain deducts up to want from a sub-balance, refundable first, then
// non-refundable (tracking how much of it was free). Returns the amount
// taken and the free portion of it. Negative sub-amounts are never drained
// further.
func drain(cb *CategoryBalance, want decimal.Decimal) (taken, freeTaken decimal.Decimal) {
	taken = decimal.Zero
	freeTaken = decimal.Zero

	if cb.Refundable.IsPositive() {
		r := decimal.Min(want, cb.Refundable)
		cb.Refundable = cb.Refundable.Sub(r)
		want = want.Sub(r)
		taken = taken.Add(r)
	}

	if want.IsPositive() && cb.Nonrefundable.IsPositive() {
		n := decimal.Min(want, cb.Nonrefundable)
		cb.Nonrefundable = cb.Nonrefundable.Sub(n)
		taken = taken.Add(n)

		freeTaken = decimal.Min(n, cb.Free)
		cb.Free = cb.Free.Sub(freeTaken)
	}

	return taken, freeTaken
}

// =============================================================================
// COMMIT - shared tail of every mutation
// =============================================================================

// commit persists the mutated record and appends the ledger entry; on a
// ledger failure the previous record is restored so no partial mutation
// stays visible. The cache is only touched once both writes succeeded.
func (e *Engine) commit(ctx context.Context, rec, prev *BalanceRecord, tx TransactionRecord) error {
	rec.TotalStored = rec.GrandTotal()
	rec.UpdatedAt = tx.CreatedAt

	if err := e.balances.SaveBalance(ctx, rec); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	if err := e.ledger.Append(ctx, tx); err != nil {
		if restoreErr := e.balances.SaveBalance(ctx, prev); restoreErr != nil {
			return fmt.Errorf("append transaction (%v), restore balance (%v): %w",
				err, restoreErr, ErrReconciliationRequired)
		}
		return fmt.Errorf("append transaction: %w", err)
	}

	e.rm.refresh(rec)
	return nil
}

// =============================================================================
// TRANSFER - the only compound operation
// =============================================================================

type TransferRequest struct {
	SenderID      UserID
	ReceiverEmail string
	Amount        decimal.Decimal
	Category      CategoryID
	Description   string
}

type TransferResult struct {
	ReceiverID UserID
	Debited    decimal.Decimal
	Credited   decimal.Decimal
	Fee        decimal.Decimal
	DebitTx    TransactionRecord
	CreditTx   TransactionRecord
}

// Transfer moves money between users: debit the sender, credit the
// receiver, fee charged per configuration. The receiver and the fee are
// validated before the sender debit; a receiver-side failure after the
// debit triggers a compensating rollback credit to the sender. A failing
// compensation is escalated as ErrReconciliationRequired.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return TransferResult{}, &InvalidAmountError{Amount: req.Amount}
	}
	if e.users == nil {
		return TransferResult{}, fmt.Errorf("transfer: no user directory configured")
	}

	// Fee computation is validated before any debit.
	if e.cfg.TransferFeePercent.IsNegative() {
		return TransferResult{}, fmt.Errorf("transfer: negative fee percent configured: %w", ErrInvalidAmount)
	}
	fee := req.Amount.Mul(e.cfg.TransferFeePercent).Div(decimal.NewFromInt(100))

	receiver, err := e.users.FindByEmail(ctx, req.ReceiverEmail)
	if err != nil {
		return TransferResult{}, &TransferError{
			SenderID:      req.SenderID,
			ReceiverEmail: req.ReceiverEmail,
			Reason:        "receiver not found",
		}
	}
	if receiver.Deleted || receiver.Suspended {
		return TransferResult{}, &TransferError{
			SenderID:      req.SenderID,
			ReceiverEmail: req.ReceiverEmail,
			Reason:        "receiver account is not active",
		}
	}
	if receiver.ID == req.SenderID {
		return TransferResult{}, &TransferError{
			SenderID:      req.SenderID,
			ReceiverEmail: req.ReceiverEmail,
			Reason:        "cannot transfer to self",
		}
	}

	debited := req.Amount
	credited := req.Amount
	switch e.cfg.TransferFeePayer {
	case FeeOnSender:
		debited = req.Amount.Add(fee)
	default: // FeeOnReceiver
		credited = req.Amount.Sub(fee)
	}

	desc := req.Description
	if desc == "" {
		desc = fmt.Sprintf("transfer to %s", req.ReceiverEmail)
	}

	debitTx, err := e.Debit(ctx, DebitRequest{
		UserID:      req.SenderID,
		Amount:      debited,
		Reason:      ReasonUserTransfer,
		RelatedID:   string(receiver.ID),
		Description: desc,
		Category:    req.Category,
	})
	if err != nil {
		return TransferResult{}, err
	}

	creditTx, err := e.Credit(ctx, CreditRequest{
		UserID:      receiver.ID,
		Amount:      credited,
		Reason:      ReasonTransfer,
		RelatedID:   string(req.SenderID),
		Description: fmt.Sprintf("transfer from %s", req.SenderID),
		Refundable:  true,
		Category:    req.Category,
	})
	if err != nil {
		// Compensate the sender for the full debited amount.
		_, rbErr := e.Credit(ctx, CreditRequest{
			UserID:      req.SenderID,
			Amount:      debited,
			Reason:      ReasonRollback,
			RelatedID:   debitTx.ID,
			Description: "transfer rollback",
			Category:    req.Category,
		})
		if rbErr != nil {
			return TransferResult{}, fmt.Errorf("transfer credit failed (%v), rollback failed (%v): %w",
				err, rbErr, ErrReconciliationRequired)
		}
		return TransferResult{}, &TransferError{
			SenderID:      req.SenderID,
			ReceiverEmail: req.ReceiverEmail,
			Reason:        fmt.Sprintf("receiver credit failed: %v", err),
			Compensated:   true,
		}
	}

	return TransferResult{
		ReceiverID: receiver.ID,
		Debited:    debited,
		Credited:   credited,
		Fee:        fee,
		DebitTx:    debitTx,
		CreditTx:   creditTx,
	}, nil
}

// =============================================================================
// SCOPE HELPERS
// =============================================================================

func (e *Engine) scopeOf(rec *BalanceRecord, scope CategoryID) *CategoryBalance {
	if scope == CategorySite {
		return &rec.Site
	}
	cb := rec.Category(scope)
	return &cb
}

func (e *Engine) setScope(rec *BalanceRecord, scope CategoryID, cb CategoryBalance) {
	if scope == CategorySite {
		rec.Site = cb
		return
	}
	rec.SetCategory(scope, cb)
}
