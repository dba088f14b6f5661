/*
offers.go - Instance-attached discount offers

PURPOSE:
  An Offer is a free-form rule attached to an enrolment instance: when its
  condition holds for a user, its discount percent joins the offers
  discount. Offers have no lifecycle of their own - they live and die with
  the instance, stored as a JSON list.

OFFER TYPES:
  time:           now within [from, to]
  profile-field:  operator match on a user profile field
  courses:        membership in a fixed course list (all or any)
  category-count: at least N enrolments within a category subtree
  geo:            reserved, never valid
*/
package discount

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// OFFER DEFINITION
// =============================================================================

type OfferType string

const (
	OfferTime          OfferType = "time"
	OfferProfileField  OfferType = "profile-field"
	OfferCourses       OfferType = "courses"
	OfferCategoryCount OfferType = "category-count"
	OfferGeo           OfferType = "geo"
)

type Operator string

const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not-contains"
	OpEquals      Operator = "equals"
	OpStartsWith  Operator = "starts-with"
	OpEndsWith    Operator = "ends-with"
	OpEmpty       Operator = "empty"
	OpNotEmpty    Operator = "not-empty"
)

type CourseMatch string

const (
	MatchAll CourseMatch = "all"
	MatchAny CourseMatch = "any"
)

// Offer is one rule. Only the fields for its Type are meaningful.
type Offer struct {
	Type     OfferType       `json:"type"`
	Discount decimal.Decimal `json:"discount"` // percent, 0-100

	// OfferTime
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	// OfferProfileField
	Field string   `json:"field,omitempty"`
	Op    Operator `json:"op,omitempty"`
	Value string   `json:"value,omitempty"`

	// OfferCourses
	Courses []int64     `json:"courses,omitempty"`
	Match   CourseMatch `json:"match,omitempty"`

	// OfferCategoryCount
	Category wallet.CategoryID `json:"category,omitempty"`
	MinCount int               `json:"min_count,omitempty"`
}

// Fraction returns the offer's discount as a fraction in [0,1].
func (o Offer) Fraction() decimal.Decimal {
	f := o.Discount.Div(decimal.NewFromInt(100))
	one := decimal.NewFromInt(1)
	if f.IsNegative() {
		return decimal.Zero
	}
	if f.GreaterThan(one) {
		return one
	}
	return f
}

// ParseOffers decodes the JSON list stored on an instance. An empty input
// means no offers.
func ParseOffers(data []byte) ([]Offer, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var offers []Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		return nil, fmt.Errorf("parse offers: %w", err)
	}
	return offers, nil
}

// =============================================================================
// EVALUATION
// =============================================================================

// offerDeps is what evaluation needs from the environment.
type offerDeps struct {
	profiles   ProfileProvider
	history    EnrolmentHistory
	categories wallet.CategoryResolver
	now        func() time.Time
}

// valid reports whether the offer's condition holds for the user.
func (o Offer) valid(ctx context.Context, userID wallet.UserID, d offerDeps) (bool, error) {
	switch o.Type {
	case OfferTime:
		now := d.now()
		if !o.From.IsZero() && now.Before(o.From) {
			return false, nil
		}
		if !o.To.IsZero() && now.After(o.To) {
			return false, nil
		}
		return true, nil

	case OfferProfileField:
		value, err := d.profiles.Field(ctx, userID, o.Field)
		if err != nil {
			return false, err
		}
		return matchField(o.Op, value, o.Value), nil

	case OfferCourses:
		if len(o.Courses) == 0 {
			return false, nil
		}
		for _, courseID := range o.Courses {
			enrolled, err := d.history.EnrolledIn(ctx, userID, courseID)
			if err != nil {
				return false, err
			}
			if o.Match == MatchAny && enrolled {
				return true, nil
			}
			if o.Match != MatchAny && !enrolled {
				return false, nil
			}
		}
		return o.Match != MatchAny, nil

	case OfferCategoryCount:
		cats := []wallet.CategoryID{o.Category}
		desc, err := d.categories.Descendants(ctx, o.Category)
		if err != nil {
			return false, err
		}
		cats = append(cats, desc...)

		count, err := d.history.EnrolmentCount(ctx, userID, cats)
		if err != nil {
			return false, err
		}
		return count >= o.MinCount, nil

	case OfferGeo:
		// Reserved: no geolocation source is wired, so the offer never
		// grants its discount.
		return false, nil

	default:
		return false, fmt.Errorf("unknown offer type %q", o.Type)
	}
}

func matchField(op Operator, value, want string) bool {
	switch op {
	case OpContains:
		return strings.Contains(value, want)
	case OpNotContains:
		return !strings.Contains(value, want)
	case OpEquals:
		return value == want
	case OpStartsWith:
		return strings.HasPrefix(value, want)
	case OpEndsWith:
		return strings.HasSuffix(value, want)
	case OpEmpty:
		return strings.TrimSpace(value) == ""
	case OpNotEmpty:
		return strings.TrimSpace(value) != ""
	default:
		return false
	}
}
