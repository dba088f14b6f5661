/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface the wallet engine consumes
  (wallet.BalanceStore, wallet.TransactionStore, wallet.CategoryResolver,
  wallet.RuleStore, wallet.TransformStore, wallet.UserDirectory,
  coupon.Store, coupon.UsageStore, discount.InstanceStore) using SQLite.
  The same patterns apply to PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch the transactions or coupon_usage
  tables. Corrections happen via compensating rollback credits.

KEY TABLES:
  balances:       One mutable record per user (site amounts + category JSON)
  transactions:   Immutable audit trail of every mutation
  coupons:        Coupon definitions
  coupon_usage:   One row per redemption (usage caps are derived counts)
  discount_rules: Tiered conditional-discount rules
  categories:     Category tree (id -> parent)
  transforms:     Pending refundable->non-refundable tasks
  users:          Directory for transfer receiver lookup
  instances:      Enrolment instances with their offers JSON

AMOUNT STORAGE:
  Decimal amounts are stored as TEXT and parsed back through
  decimal.NewFromString: REAL columns would reintroduce the float errors
  the engine exists to avoid.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  one writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/wallet.db")   // or ":memory:"
  engine := wallet.NewEngine(wallet.Deps{Balances: store, ...})

SEE ALSO:
  - wallet/store.go: Interface definitions
  - wallet/store/memory.go: In-memory implementation for testing
  - catalog.go: Coupon, usage and instance persistence
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/wallet"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Balances (one mutable record per user)
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		refundable TEXT NOT NULL,
		nonrefundable TEXT NOT NULL,
		freegift TEXT NOT NULL,
		categories_json TEXT NOT NULL,
		total TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (append-only audit trail)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		nonrefundable_after TEXT NOT NULL,
		category INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL,
		related_id TEXT,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, created_at);

	-- Coupons
	CREATE TABLE IF NOT EXISTS coupons (
		code TEXT PRIMARY KEY,
		coupon_type TEXT NOT NULL,
		value TEXT NOT NULL,
		category INTEGER NOT NULL DEFAULT 0,
		courses_json TEXT NOT NULL,
		max_usage INTEGER NOT NULL DEFAULT 0,
		max_per_user INTEGER NOT NULL DEFAULT 0,
		valid_from TEXT,
		valid_to TEXT
	);

	-- Coupon usage (append-only; usage caps are COUNT queries on this)
	CREATE TABLE IF NOT EXISTS coupon_usage (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		user_id TEXT NOT NULL,
		area TEXT NOT NULL,
		area_id INTEGER NOT NULL DEFAULT 0,
		used_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_coupon_usage_code
		ON coupon_usage(code);
	CREATE INDEX IF NOT EXISTS idx_coupon_usage_code_user
		ON coupon_usage(code, user_id);

	-- Conditional discount rules
	CREATE TABLE IF NOT EXISTS discount_rules (
		id TEXT PRIMARY KEY,
		category INTEGER NOT NULL DEFAULT 0,
		condition_amount TEXT NOT NULL,
		percent TEXT NOT NULL,
		valid_from TEXT,
		valid_to TEXT
	);

	-- Category tree
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		parent INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_categories_parent
		ON categories(parent);

	-- Pending refundable -> non-refundable transformations
	CREATE TABLE IF NOT EXISTS transforms (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		category INTEGER NOT NULL DEFAULT 0,
		run_at TEXT NOT NULL,
		done INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transforms_due
		ON transforms(done, run_at);

	-- User directory (transfer receiver lookup)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		suspended INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	-- Profile fields (discount grants and offer matching)
	CREATE TABLE IF NOT EXISTS profile_fields (
		user_id TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (user_id, field)
	);

	-- Active enrolments (course membership for offer matching)
	CREATE TABLE IF NOT EXISTS enrolments (
		user_id TEXT NOT NULL,
		course_id INTEGER NOT NULL,
		category INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, course_id)
	);

	-- Expired enrolments (repurchase discount eligibility)
	CREATE TABLE IF NOT EXISTS expired_enrolments (
		user_id TEXT NOT NULL,
		instance_id INTEGER NOT NULL,
		was_repurchase INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, instance_id)
	);

	-- Enrolment instances
	CREATE TABLE IF NOT EXISTS instances (
		id INTEGER PRIMARY KEY,
		course_id INTEGER NOT NULL,
		category INTEGER NOT NULL DEFAULT 0,
		cost TEXT NOT NULL,
		repurchase_first TEXT NOT NULL DEFAULT '0',
		repurchase_second TEXT NOT NULL DEFAULT '0',
		offers_json TEXT NOT NULL DEFAULT '[]'
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// =============================================================================
// wallet.BalanceStore
// =============================================================================

type categoryBalanceJSON struct {
	Refundable    string `json:"refundable"`
	Nonrefundable string `json:"nonrefundable"`
	Free          string `json:"free"`
}

func (s *Store) GetBalance(ctx context.Context, userID wallet.UserID) (*wallet.BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT refundable, nonrefundable, freegift, categories_json, total, updated_at
		FROM balances WHERE user_id = ?
	`, userID)

	var refundable, nonrefundable, free, catsJSON, total, updatedAt string
	err := row.Scan(&refundable, &nonrefundable, &free, &catsJSON, &total, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}

	rec := wallet.NewBalanceRecord(userID)
	if rec.Site.Refundable, err = parseDecimal(refundable); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if rec.Site.Nonrefundable, err = parseDecimal(nonrefundable); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if rec.Site.Free, err = parseDecimal(free); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if rec.TotalStored, err = parseDecimal(total); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	rec.UpdatedAt = parseTime(updatedAt)

	var cats map[string]categoryBalanceJSON
	if err := json.Unmarshal([]byte(catsJSON), &cats); err != nil {
		return nil, fmt.Errorf("parse category balances: %w", err)
	}
	for key, cb := range cats {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse category id %q: %w", key, err)
		}
		var parsed wallet.CategoryBalance
		if parsed.Refundable, err = parseDecimal(cb.Refundable); err != nil {
			return nil, fmt.Errorf("parse category balance: %w", err)
		}
		if parsed.Nonrefundable, err = parseDecimal(cb.Nonrefundable); err != nil {
			return nil, fmt.Errorf("parse category balance: %w", err)
		}
		if parsed.Free, err = parseDecimal(cb.Free); err != nil {
			return nil, fmt.Errorf("parse category balance: %w", err)
		}
		rec.Categories[wallet.CategoryID(id)] = parsed
	}

	return rec, nil
}

func (s *Store) SaveBalance(ctx context.Context, rec *wallet.BalanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats := make(map[string]categoryBalanceJSON, len(rec.Categories))
	for id, cb := range rec.Categories {
		cats[strconv.FormatInt(int64(id), 10)] = categoryBalanceJSON{
			Refundable:    cb.Refundable.String(),
			Nonrefundable: cb.Nonrefundable.String(),
			Free:          cb.Free.String(),
		}
	}
	catsJSON, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("encode category balances: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO balances (user_id, refundable, nonrefundable, freegift, categories_json, total, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			refundable = excluded.refundable,
			nonrefundable = excluded.nonrefundable,
			freegift = excluded.freegift,
			categories_json = excluded.categories_json,
			total = excluded.total,
			updated_at = excluded.updated_at
	`,
		rec.UserID,
		rec.Site.Refundable.String(),
		rec.Site.Nonrefundable.String(),
		rec.Site.Free.String(),
		string(catsJSON),
		rec.TotalStored.String(),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

// =============================================================================
// wallet.TransactionStore
// =============================================================================

func (s *Store) Append(ctx context.Context, tx wallet.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, tx_type, amount, balance_before, balance_after,
		 nonrefundable_after, category, reason, related_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.Amount.String(),
		tx.BalanceBefore.String(),
		tx.BalanceAfter.String(),
		tx.NonRefundableAfter.String(),
		int64(tx.Category),
		tx.Reason,
		tx.RelatedID,
		tx.Description,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, userID wallet.UserID) ([]wallet.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tx_type, amount, balance_before, balance_after,
		       nonrefundable_after, category, reason, related_id, description, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var result []wallet.TransactionRecord
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (s *Store) Latest(ctx context.Context, userID wallet.UserID) (*wallet.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tx_type, amount, balance_before, balance_after,
		       nonrefundable_after, category, reason, related_id, description, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query latest transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	tx, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func scanTransaction(rows *sql.Rows) (wallet.TransactionRecord, error) {
	var (
		tx       wallet.TransactionRecord
		amount   string
		before   string
		after    string
		nonref   string
		category int64
		related  sql.NullString
		desc     sql.NullString
		created  string
	)
	err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &amount, &before, &after,
		&nonref, &category, &tx.Reason, &related, &desc, &created)
	if err != nil {
		return tx, fmt.Errorf("scan transaction: %w", err)
	}

	if tx.Amount, err = parseDecimal(amount); err != nil {
		return tx, fmt.Errorf("parse transaction amount: %w", err)
	}
	if tx.BalanceBefore, err = parseDecimal(before); err != nil {
		return tx, fmt.Errorf("parse transaction balance: %w", err)
	}
	if tx.BalanceAfter, err = parseDecimal(after); err != nil {
		return tx, fmt.Errorf("parse transaction balance: %w", err)
	}
	if tx.NonRefundableAfter, err = parseDecimal(nonref); err != nil {
		return tx, fmt.Errorf("parse transaction balance: %w", err)
	}
	tx.Category = wallet.CategoryID(category)
	tx.RelatedID = related.String
	tx.Description = desc.String
	tx.CreatedAt = parseTime(created)
	return tx, nil
}

// =============================================================================
// wallet.CategoryResolver
// =============================================================================

// SaveCategory registers a category under a parent (0 = top level).
func (s *Store) SaveCategory(ctx context.Context, id, parent wallet.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, parent) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET parent = excluded.parent
	`, int64(id), int64(parent))
	if err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}

func (s *Store) Ancestors(ctx context.Context, id wallet.CategoryID) ([]wallet.CategoryID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []wallet.CategoryID
	current := id
	// Walk up one row at a time; category trees are shallow.
	for {
		var parent int64
		err := s.db.QueryRowContext(ctx,
			"SELECT parent FROM categories WHERE id = ?", int64(current),
		).Scan(&parent)
		if err == sql.ErrNoRows {
			return chain, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load category parent: %w", err)
		}
		if parent == 0 {
			return chain, nil
		}
		chain = append(chain, wallet.CategoryID(parent))
		current = wallet.CategoryID(parent)
	}
}

func (s *Store) Descendants(ctx context.Context, id wallet.CategoryID) ([]wallet.CategoryID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []wallet.CategoryID
	frontier := []wallet.CategoryID{id}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		children, err := s.childrenOf(ctx, next)
		if err != nil {
			return nil, err
		}
		result = append(result, children...)
		frontier = append(frontier, children...)
	}
	return result, nil
}

func (s *Store) childrenOf(ctx context.Context, id wallet.CategoryID) ([]wallet.CategoryID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM categories WHERE parent = ?", int64(id))
	if err != nil {
		return nil, fmt.Errorf("load category children: %w", err)
	}
	defer rows.Close()

	var children []wallet.CategoryID
	for rows.Next() {
		var child int64
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		children = append(children, wallet.CategoryID(child))
	}
	return children, rows.Err()
}

// =============================================================================
// wallet.RuleStore
// =============================================================================

func (s *Store) SaveRule(ctx context.Context, rule wallet.DiscountRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_rules (id, category, condition_amount, percent, valid_from, valid_to)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			condition_amount = excluded.condition_amount,
			percent = excluded.percent,
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to
	`,
		rule.ID,
		int64(rule.Category),
		rule.ConditionAmount.String(),
		rule.Percent.String(),
		formatTime(rule.ValidFrom),
		formatTime(rule.ValidTo),
	)
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

func (s *Store) ActiveRules(ctx context.Context, at time.Time) ([]wallet.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, condition_amount, percent, valid_from, valid_to
		FROM discount_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var active []wallet.DiscountRule
	for rows.Next() {
		var (
			rule      wallet.DiscountRule
			category  int64
			condition string
			percent   string
			from, to  sql.NullString
		)
		if err := rows.Scan(&rule.ID, &category, &condition, &percent, &from, &to); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Category = wallet.CategoryID(category)
		if rule.ConditionAmount, err = parseDecimal(condition); err != nil {
			return nil, fmt.Errorf("parse rule amount: %w", err)
		}
		if rule.Percent, err = parseDecimal(percent); err != nil {
			return nil, fmt.Errorf("parse rule percent: %w", err)
		}
		rule.ValidFrom = parseTime(from.String)
		rule.ValidTo = parseTime(to.String)

		if rule.ActiveAt(at) {
			active = append(active, rule)
		}
	}
	return active, rows.Err()
}

// =============================================================================
// wallet.TransformStore
// =============================================================================

func (s *Store) Enqueue(ctx context.Context, pt wallet.PendingTransform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transforms (id, transaction_id, user_id, amount, category, run_at, done, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`,
		pt.ID,
		pt.TransactionID,
		pt.UserID,
		pt.Amount.String(),
		int64(pt.Category),
		formatTime(pt.RunAt),
		formatTime(pt.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue transform: %w", err)
	}
	return nil
}

func (s *Store) Due(ctx context.Context, now time.Time) ([]wallet.PendingTransform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, user_id, amount, category, run_at, created_at
		FROM transforms
		WHERE done = 0 AND run_at <= ?
		ORDER BY run_at ASC
	`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("query due transforms: %w", err)
	}
	defer rows.Close()

	var due []wallet.PendingTransform
	for rows.Next() {
		var (
			pt       wallet.PendingTransform
			amount   string
			category int64
			runAt    string
			created  string
		)
		if err := rows.Scan(&pt.ID, &pt.TransactionID, &pt.UserID, &amount, &category, &runAt, &created); err != nil {
			return nil, fmt.Errorf("scan transform: %w", err)
		}
		if pt.Amount, err = parseDecimal(amount); err != nil {
			return nil, fmt.Errorf("parse transform amount: %w", err)
		}
		pt.Category = wallet.CategoryID(category)
		pt.RunAt = parseTime(runAt)
		pt.CreatedAt = parseTime(created)
		due = append(due, pt)
	}
	return due, rows.Err()
}

func (s *Store) MarkDone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "UPDATE transforms SET done = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark transform done: %w", err)
	}
	return nil
}

// =============================================================================
// wallet.UserDirectory
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u wallet.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, suspended, deleted)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			suspended = excluded.suspended,
			deleted = excluded.deleted
	`, u.ID, strings.ToLower(u.Email), boolInt(u.Suspended), boolInt(u.Deleted))
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*wallet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u         wallet.User
		suspended int
		deleted   int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, suspended, deleted FROM users WHERE email = ?",
		strings.ToLower(email),
	).Scan(&u.ID, &u.Email, &suspended, &deleted)
	if err == sql.ErrNoRows {
		return nil, wallet.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	u.Suspended = suspended != 0
	u.Deleted = deleted != 0
	return &u, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
