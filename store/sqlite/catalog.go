/*
Catalog persistence: coupons, coupon usage and enrolment instances.

PURPOSE:
  Implements coupon.Store, coupon.UsageStore and discount.InstanceStore
  on the same SQLite handle as the balance tables. Usage caps are never
  stored as counters: they are COUNT queries over the append-only
  coupon_usage table, so a cap can never drift from the redemption rows
  that back it.

SEE ALSO:
  - sqlite.go: Schema and balance/transaction persistence
  - coupon/validator.go: The consumer of the usage counts
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/warp/wallet-engine/coupon"
	"github.com/warp/wallet-engine/discount"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// coupon.Store
// =============================================================================

func (s *Store) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c           coupon.Coupon
		value       string
		category    int64
		coursesJSON string
		from, to    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, coupon_type, value, category, courses_json,
		       max_usage, max_per_user, valid_from, valid_to
		FROM coupons WHERE code = ?
	`, code).Scan(&c.Code, &c.Type, &value, &category, &coursesJSON,
		&c.MaxUsage, &c.MaxUsagePerUser, &from, &to)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load coupon: %w", err)
	}

	if c.Value, err = parseDecimal(value); err != nil {
		return nil, fmt.Errorf("parse coupon value: %w", err)
	}
	c.Category = wallet.CategoryID(category)
	if err := json.Unmarshal([]byte(coursesJSON), &c.Courses); err != nil {
		return nil, fmt.Errorf("parse coupon courses: %w", err)
	}
	c.ValidFrom = parseTime(from.String)
	c.ValidTo = parseTime(to.String)
	return &c, nil
}

func (s *Store) SaveCoupon(ctx context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	courses := c.Courses
	if courses == nil {
		courses = []int64{}
	}
	coursesJSON, err := json.Marshal(courses)
	if err != nil {
		return fmt.Errorf("encode coupon courses: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO coupons
		(code, coupon_type, value, category, courses_json, max_usage, max_per_user, valid_from, valid_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			coupon_type = excluded.coupon_type,
			value = excluded.value,
			category = excluded.category,
			courses_json = excluded.courses_json,
			max_usage = excluded.max_usage,
			max_per_user = excluded.max_per_user,
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to
	`,
		c.Code,
		c.Type,
		c.Value.String(),
		int64(c.Category),
		string(coursesJSON),
		c.MaxUsage,
		c.MaxUsagePerUser,
		formatTime(c.ValidFrom),
		formatTime(c.ValidTo),
	)
	if err != nil {
		return fmt.Errorf("save coupon: %w", err)
	}
	return nil
}

// =============================================================================
// coupon.UsageStore
// =============================================================================

func (s *Store) AppendUsage(ctx context.Context, u coupon.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupon_usage (id, code, user_id, area, area_id, used_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Code, u.UserID, u.Area, u.AreaID, formatTime(u.UsedAt))
	if err != nil {
		return fmt.Errorf("append coupon usage: %w", err)
	}
	return nil
}

func (s *Store) TotalUse(ctx context.Context, code string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM coupon_usage WHERE code = ?", code,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count coupon usage: %w", err)
	}
	return count, nil
}

func (s *Store) UserUse(ctx context.Context, code string, userID wallet.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM coupon_usage WHERE code = ? AND user_id = ?", code, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user coupon usage: %w", err)
	}
	return count, nil
}

// =============================================================================
// discount.InstanceStore
// =============================================================================

func (s *Store) Instance(ctx context.Context, id int64) (*discount.EnrolmentInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		inst       discount.EnrolmentInstance
		category   int64
		cost       string
		first      string
		second     string
		offersJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, course_id, category, cost, repurchase_first, repurchase_second, offers_json
		FROM instances WHERE id = ?
	`, id).Scan(&inst.ID, &inst.CourseID, &category, &cost, &first, &second, &offersJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}

	inst.Category = wallet.CategoryID(category)
	if inst.Cost, err = parseDecimal(cost); err != nil {
		return nil, fmt.Errorf("parse instance cost: %w", err)
	}
	if inst.RepurchaseFirst, err = parseDecimal(first); err != nil {
		return nil, fmt.Errorf("parse instance repurchase: %w", err)
	}
	if inst.RepurchaseSecond, err = parseDecimal(second); err != nil {
		return nil, fmt.Errorf("parse instance repurchase: %w", err)
	}
	if inst.Offers, err = discount.ParseOffers([]byte(offersJSON)); err != nil {
		return nil, fmt.Errorf("parse instance offers: %w", err)
	}
	return &inst, nil
}

func (s *Store) SaveInstance(ctx context.Context, inst *discount.EnrolmentInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offers := inst.Offers
	if offers == nil {
		offers = []discount.Offer{}
	}
	offersJSON, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("encode instance offers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instances
		(id, course_id, category, cost, repurchase_first, repurchase_second, offers_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			course_id = excluded.course_id,
			category = excluded.category,
			cost = excluded.cost,
			repurchase_first = excluded.repurchase_first,
			repurchase_second = excluded.repurchase_second,
			offers_json = excluded.offers_json
	`,
		inst.ID,
		inst.CourseID,
		int64(inst.Category),
		inst.Cost.String(),
		inst.RepurchaseFirst.String(),
		inst.RepurchaseSecond.String(),
		string(offersJSON),
	)
	if err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	return nil
}
