/*
instance.go - Typed enrolment-instance configuration and provider interfaces

PURPOSE:
  EnrolmentInstance is the typed configuration struct an enrolment carries:
  populated once at load time, no runtime field-name resolution. The
  provider interfaces are what the aggregator consumes from its
  environment (user profiles, enrolment history); callers inject whatever
  backs them.
*/
package discount

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/wallet"
)

// EnrolmentInstance is one paid enrolment listing.
type EnrolmentInstance struct {
	ID       int64
	CourseID int64
	Category wallet.CategoryID

	// Cost is the listed price before discounts. Zero or negative means a
	// free listing: cost computation short-circuits to zero.
	Cost decimal.Decimal

	// Repurchase discounts in percent (0-100). First applies when the user
	// previously held and let expire an enrolment here; Second replaces it
	// when the expired enrolment was itself already a repurchase.
	RepurchaseFirst  decimal.Decimal
	RepurchaseSecond decimal.Decimal

	// Offers evaluated per user at cost-computation time. Stored as a JSON
	// list on the instance; parsed once at load.
	Offers []Offer
}

// InstanceStore loads instances. Instance returns (nil, nil) when unknown.
type InstanceStore interface {
	Instance(ctx context.Context, id int64) (*EnrolmentInstance, error)
	SaveInstance(ctx context.Context, inst *EnrolmentInstance) error
}

// =============================================================================
// PROVIDER INTERFACES - what the aggregator needs from its environment
// =============================================================================

// ProfileProvider reads user profile fields (for the profile-field discount
// and profile-match offers). Missing fields return "".
type ProfileProvider interface {
	Field(ctx context.Context, userID wallet.UserID, field string) (string, error)
}

// EnrolmentHistory answers the questions repurchase and offer evaluation
// ask about a user's past enrolments.
type EnrolmentHistory interface {
	// ExpiredEnrolment reports whether the user previously held an
	// enrolment in this instance that has since expired.
	ExpiredEnrolment(ctx context.Context, userID wallet.UserID, instanceID int64) (bool, error)

	// WasRepurchase reports whether the user's expired enrolment in this
	// instance was itself recorded as a repurchase.
	WasRepurchase(ctx context.Context, userID wallet.UserID, instanceID int64) (bool, error)

	// EnrolledIn reports whether the user holds an enrolment in a course.
	EnrolledIn(ctx context.Context, userID wallet.UserID, courseID int64) (bool, error)

	// EnrolmentCount counts the user's enrolments in courses belonging to
	// any of the given categories.
	EnrolmentCount(ctx context.Context, userID wallet.UserID, categories []wallet.CategoryID) (int, error)
}
