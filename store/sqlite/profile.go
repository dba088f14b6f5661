/*
Profile and enrolment history persistence.

PURPOSE:
  Implements discount.ProfileProvider and discount.EnrolmentHistory on the
  shared SQLite handle. Profile fields back the profile-field discount and
  profile-match offers; the enrolment tables answer the repurchase and
  course/category-count questions offers ask.

SEE ALSO:
  - discount/aggregator.go: The consumer
  - discount/offers.go: Offer validity evaluation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// discount.ProfileProvider
// =============================================================================

// SetProfileField writes one profile field for a user.
func (s *Store) SetProfileField(ctx context.Context, userID wallet.UserID, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_fields (user_id, field, value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, field) DO UPDATE SET value = excluded.value
	`, userID, field, value)
	if err != nil {
		return fmt.Errorf("save profile field: %w", err)
	}
	return nil
}

func (s *Store) Field(ctx context.Context, userID wallet.UserID, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM profile_fields WHERE user_id = ? AND field = ?",
		userID, field,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load profile field: %w", err)
	}
	return value, nil
}

// =============================================================================
// discount.EnrolmentHistory
// =============================================================================

// SaveEnrolment records an active enrolment in a course under a category.
func (s *Store) SaveEnrolment(ctx context.Context, userID wallet.UserID, courseID int64, category wallet.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrolments (user_id, course_id, category)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, course_id) DO UPDATE SET category = excluded.category
	`, userID, courseID, int64(category))
	if err != nil {
		return fmt.Errorf("save enrolment: %w", err)
	}
	return nil
}

// SaveExpiredEnrolment records that the user's enrolment in an instance
// lapsed. wasRepurchase marks the lapsed enrolment as itself a repurchase.
func (s *Store) SaveExpiredEnrolment(ctx context.Context, userID wallet.UserID, instanceID int64, wasRepurchase bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expired_enrolments (user_id, instance_id, was_repurchase)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, instance_id) DO UPDATE SET was_repurchase = excluded.was_repurchase
	`, userID, instanceID, boolInt(wasRepurchase))
	if err != nil {
		return fmt.Errorf("save expired enrolment: %w", err)
	}
	return nil
}

func (s *Store) ExpiredEnrolment(ctx context.Context, userID wallet.UserID, instanceID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expired_enrolments WHERE user_id = ? AND instance_id = ?",
		userID, instanceID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query expired enrolment: %w", err)
	}
	return count > 0, nil
}

func (s *Store) WasRepurchase(ctx context.Context, userID wallet.UserID, instanceID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var was int
	err := s.db.QueryRowContext(ctx,
		"SELECT was_repurchase FROM expired_enrolments WHERE user_id = ? AND instance_id = ?",
		userID, instanceID,
	).Scan(&was)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query repurchase flag: %w", err)
	}
	return was != 0, nil
}

func (s *Store) EnrolledIn(ctx context.Context, userID wallet.UserID, courseID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM enrolments WHERE user_id = ? AND course_id = ?",
		userID, courseID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query enrolment: %w", err)
	}
	return count > 0, nil
}

func (s *Store) EnrolmentCount(ctx context.Context, userID wallet.UserID, categories []wallet.CategoryID) (int, error) {
	if len(categories) == 0 {
		return 0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
	args := make([]any, 0, len(categories)+1)
	args = append(args, userID)
	for _, c := range categories {
		args = append(args, int64(c))
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM enrolments WHERE user_id = ? AND category IN ("+placeholders+")",
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrolments: %w", err)
	}
	return count, nil
}
