/*
store.go - Persistence interfaces for the wallet engine

PURPOSE:
  Defines the boundary between the domain logic and the database. The
  engine only ever talks to these interfaces; implementations can use
  SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  BalanceStore:     The single mutable record per user
  TransactionStore: Append-only audit trail
  CategoryResolver: Course-category tree navigation
  RuleStore:        Tiered conditional-discount rules
  TransformStore:   Queue of deferred refundable->non-refundable tasks
  UserDirectory:    Receiver lookup for transfers

APPEND-ONLY CONTRACT:
  TransactionStore has no Update or Delete. Corrections are made via
  compensating rollback credits, never edits.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - wallet/store: In-memory for testing/dev
*/
package wallet

import (
	"context"
	"time"
)

// =============================================================================
// BALANCE STORE
// =============================================================================

// BalanceStore persists the single BalanceRecord per user.
// Get returns (nil, nil) when no record exists yet: records are created
// lazily on first inquiry, never ahead of time.
type BalanceStore interface {
	GetBalance(ctx context.Context, userID UserID) (*BalanceRecord, error)

	// SaveBalance upserts the record. Only the mutation engine calls this.
	SaveBalance(ctx context.Context, rec *BalanceRecord) error
}

// =============================================================================
// TRANSACTION STORE - Append-only
// =============================================================================

// TransactionStore is the audit trail. Append is the ONLY write operation.
type TransactionStore interface {
	Append(ctx context.Context, tx TransactionRecord) error

	// History returns all transactions for a user, oldest first.
	History(ctx context.Context, userID UserID) ([]TransactionRecord, error)

	// Latest returns the most recent transaction for a user, or (nil, nil)
	// when the user has none. Used to seed a cold balance.
	Latest(ctx context.Context, userID UserID) (*TransactionRecord, error)
}

// =============================================================================
// CATEGORY RESOLVER - Course-category tree
// =============================================================================

// CategoryResolver navigates the category tree. The site scope
// (CategorySite) is not a category and never appears in results.
type CategoryResolver interface {
	// Ancestors returns the chain of parent categories, closest first.
	Ancestors(ctx context.Context, id CategoryID) ([]CategoryID, error)

	// Descendants returns every category below id (any depth).
	Descendants(ctx context.Context, id CategoryID) ([]CategoryID, error)
}

// IsOrDescendantOf reports whether child equals ancestor or sits below it in
// the tree. Broader-scope coupons cascade down to descendants, never up.
func IsOrDescendantOf(ctx context.Context, r CategoryResolver, child, ancestor CategoryID) (bool, error) {
	if child == ancestor {
		return true, nil
	}
	chain, err := r.Ancestors(ctx, child)
	if err != nil {
		return false, err
	}
	for _, c := range chain {
		if c == ancestor {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// RULE STORE - Conditional discount rules
// =============================================================================

type RuleStore interface {
	// ActiveRules returns every rule whose validity window contains at.
	ActiveRules(ctx context.Context, at time.Time) ([]DiscountRule, error)
}

// =============================================================================
// TRANSFORM STORE - Deferred transformation queue
// =============================================================================

// TransformStore persists pending refundable->non-refundable tasks so they
// survive restarts. Each enqueued task fires exactly once.
type TransformStore interface {
	Enqueue(ctx context.Context, pt PendingTransform) error

	// Due returns tasks whose RunAt is at or before now and that have not
	// been marked done.
	Due(ctx context.Context, now time.Time) ([]PendingTransform, error)

	MarkDone(ctx context.Context, id string) error
}

// =============================================================================
// USER DIRECTORY
// =============================================================================

// UserDirectory resolves transfer receivers. FindByEmail returns
// ErrUserNotFound when no user matches.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}
