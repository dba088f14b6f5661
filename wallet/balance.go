/*
balance.go - Balance read model

PURPOSE:
  Answers "how much does this user have?" at site scope and for any course
  category. Reads are served from the per-user cache; on a miss the
  persisted BalanceRecord is loaded, and when none exists the record is
  reconstructed from the latest ledger transaction (or zero).

VALID BALANCE:
  The amount actually usable for a purchase scoped to a category is NOT
  just that category's balance: money held in ancestor categories and in
  the site-wide scope can also pay for it.

    validTotal(cat) = total(cat) + sum(total(ancestors)) + total(site)

  The site scope has no ancestors: its valid balance is the site balance
  itself, never the grand total across categories.

CONSISTENCY:
  The persisted record carries a denormalized total. The read model always
  recomputes the total from parts; the stored aggregate is a convenience
  field, never a source of truth.
*/
package wallet

import "context"

// ReadModel serves balance inquiries.
type ReadModel struct {
	Balances   BalanceStore
	Ledger     *Ledger
	Cache      BalanceCache
	Categories CategoryResolver
	Config     Config
}

func NewReadModel(balances BalanceStore, ledger *Ledger, cache BalanceCache, categories CategoryResolver, cfg Config) *ReadModel {
	return &ReadModel{
		Balances:   balances,
		Ledger:     ledger,
		Cache:      cache,
		Categories: categories,
		Config:     cfg,
	}
}

// Record returns the user's BalanceRecord, from cache when warm. A missing
// persisted record is seeded from the ledger (lazily created, not saved
// until the first mutation).
func (rm *ReadModel) Record(ctx context.Context, userID UserID) (*BalanceRecord, error) {
	if rec, ok := rm.Cache.Get(userID); ok {
		return rec, nil
	}

	rec, err := rm.Balances.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec, err = rm.Ledger.Seed(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	if rec.Categories == nil {
		rec.Categories = make(map[CategoryID]CategoryBalance)
	}

	rm.Cache.Put(rec)
	return rec, nil
}

// Details returns the balance breakdown for a category (or site scope when
// categoryID is CategorySite).
func (rm *ReadModel) Details(ctx context.Context, userID UserID, categoryID CategoryID) (Details, error) {
	rec, err := rm.Record(ctx, userID)
	if err != nil {
		return Details{}, err
	}
	return rm.details(ctx, rec, categoryID)
}

func (rm *ReadModel) details(ctx context.Context, rec *BalanceRecord, categoryID CategoryID) (Details, error) {
	if categoryID == CategorySite || !rm.Config.CategoryBalances {
		// Site inquiry: the site scope has no ancestors, so the spendable
		// amount is the site balance alone. Category money never pays for
		// a site-scoped purchase.
		return Details{
			Refundable:    rec.Site.Refundable,
			Nonrefundable: rec.Site.Nonrefundable,
			Free:          rec.Site.Free,
			Total:         rec.Site.Total(),
			ValidTotal:    rec.Site.Total(),
		}, nil
	}

	own := rec.Category(categoryID)
	valid := own.Total().Add(rec.Site.Total())

	ancestors, err := rm.Categories.Ancestors(ctx, categoryID)
	if err != nil {
		return Details{}, err
	}
	for _, anc := range ancestors {
		valid = valid.Add(rec.Category(anc).Total())
	}

	return Details{
		Refundable:    own.Refundable,
		Nonrefundable: own.Nonrefundable,
		Free:          own.Free,
		Total:         own.Total(),
		ValidTotal:    valid,
	}, nil
}

// refresh invalidates and repopulates the cache after a mutation so the next
// read never observes stale state.
func (rm *ReadModel) refresh(rec *BalanceRecord) {
	rm.Cache.Invalidate(rec.UserID)
	rm.Cache.Put(rec)
}
