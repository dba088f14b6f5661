/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

AMOUNT ENCODING:
  All monetary amounts cross the wire as decimal strings ("12.50"), never
  JSON numbers. Clients that decode into binary floats do so at their own
  risk; the server never does.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// BalanceDTO is the balance summary for one user in one category scope.
type BalanceDTO struct {
	UserID        string `json:"user_id"`
	Category      int64  `json:"category"`
	Refundable    string `json:"refundable"`
	Nonrefundable string `json:"nonrefundable"`
	Free          string `json:"free"`
	Total         string `json:"total"`
	ValidTotal    string `json:"valid_total"`
}

// TransactionDTO represents one ledger entry.
type TransactionDTO struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	Type               string `json:"type"`
	Amount             string `json:"amount"`
	BalanceBefore      string `json:"balance_before"`
	BalanceAfter       string `json:"balance_after"`
	NonRefundableAfter string `json:"nonrefundable_after"`
	Category           int64  `json:"category,omitempty"`
	Reason             string `json:"reason"`
	RelatedID          string `json:"related_id,omitempty"`
	Description        string `json:"description,omitempty"`
	CreatedAt          string `json:"created_at"`
}

// CreditRequestDTO is the request to add money to a wallet.
type CreditRequestDTO struct {
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Reason      string `json:"reason,omitempty"` // defaults to "user"
	RelatedID   string `json:"related_id,omitempty"`
	Description string `json:"description,omitempty"`
	Refundable  bool   `json:"refundable"`
	Category    int64  `json:"category,omitempty"`
}

// DebitRequestDTO is the request to remove money from a wallet.
type DebitRequestDTO struct {
	UserID        string `json:"user_id"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason,omitempty"` // defaults to "enrol"
	RelatedID     string `json:"related_id,omitempty"`
	Description   string `json:"description,omitempty"`
	AllowNegative bool   `json:"allow_negative"`
	Category      int64  `json:"category,omitempty"`
}

// TransferRequestDTO is the request to move money between users.
type TransferRequestDTO struct {
	SenderID      string `json:"sender_id"`
	ReceiverEmail string `json:"receiver_email"`
	Amount        string `json:"amount"`
	Category      int64  `json:"category,omitempty"`
	Description   string `json:"description,omitempty"`
}

// TransferResultDTO is the response after a completed transfer.
type TransferResultDTO struct {
	ReceiverID string         `json:"receiver_id"`
	Debited    string         `json:"debited"`
	Credited   string         `json:"credited"`
	Fee        string         `json:"fee"`
	DebitTx    TransactionDTO `json:"debit_tx"`
	CreditTx   TransactionDTO `json:"credit_tx"`
}

// CouponCheckRequestDTO asks whether a code is redeemable against a target.
type CouponCheckRequestDTO struct {
	Code     string `json:"code"`
	UserID   string `json:"user_id"`
	Area     string `json:"area"`
	AreaID   int64  `json:"area_id,omitempty"`
	CourseID int64  `json:"course_id,omitempty"`
	Category int64  `json:"category,omitempty"`
}

// CouponCheckDTO is the validation outcome.
type CouponCheckDTO struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code"`
	Type   string `json:"type,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"` // set when invalid
}

// CouponApplyDTO is the redemption outcome.
type CouponApplyDTO struct {
	Kind     string          `json:"kind"`
	Credit   *TransactionDTO `json:"credit,omitempty"`
	Discount string          `json:"discount,omitempty"`
	Courses  []int64         `json:"courses,omitempty"`
}

// CostRequestDTO asks for the discounted cost of an enrolment instance.
type CostRequestDTO struct {
	InstanceID int64  `json:"instance_id"`
	UserID     string `json:"user_id"`
	Coupon     string `json:"coupon,omitempty"`
}

// CostDTO is the discounted cost.
type CostDTO struct {
	InstanceID int64  `json:"instance_id"`
	UserID     string `json:"user_id"`
	Cost       string `json:"cost"`
}

// CreateCouponRequest is the admin request to define a coupon.
type CreateCouponRequest struct {
	Code            string  `json:"code"`
	Type            string  `json:"type"`
	Value           string  `json:"value"`
	Category        int64   `json:"category,omitempty"`
	Courses         []int64 `json:"courses,omitempty"`
	MaxUsage        int     `json:"max_usage,omitempty"`
	MaxUsagePerUser int     `json:"max_usage_per_user,omitempty"`
	ValidFrom       string  `json:"valid_from,omitempty"` // RFC3339
	ValidTo         string  `json:"valid_to,omitempty"`   // RFC3339
}

// CreateCategoryRequest is the admin request to register a category.
type CreateCategoryRequest struct {
	ID     int64 `json:"id"`
	Parent int64 `json:"parent,omitempty"` // 0 = top level
}

// CreateRuleRequest is the admin request to define a conditional discount.
type CreateRuleRequest struct {
	ID              string `json:"id"`
	Category        int64  `json:"category,omitempty"`
	ConditionAmount string `json:"condition_amount"`
	Percent         string `json:"percent"`
	ValidFrom       string `json:"valid_from,omitempty"`
	ValidTo         string `json:"valid_to,omitempty"`
}

// CreateUserRequest is the admin request to register a user in the directory.
type CreateUserRequest struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Suspended bool   `json:"suspended,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// CreateInstanceRequest is the admin request to register an enrolment
// instance. Offers is raw JSON in the offer list format.
type CreateInstanceRequest struct {
	ID               int64  `json:"id"`
	CourseID         int64  `json:"course_id"`
	Category         int64  `json:"category,omitempty"`
	Cost             string `json:"cost"`
	RepurchaseFirst  string `json:"repurchase_first,omitempty"`
	RepurchaseSecond string `json:"repurchase_second,omitempty"`
	Offers           string `json:"offers,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTransactionDTO(tx wallet.TransactionRecord) TransactionDTO {
	return TransactionDTO{
		ID:                 tx.ID,
		UserID:             string(tx.UserID),
		Type:               string(tx.Type),
		Amount:             tx.Amount.String(),
		BalanceBefore:      tx.BalanceBefore.String(),
		BalanceAfter:       tx.BalanceAfter.String(),
		NonRefundableAfter: tx.NonRefundableAfter.String(),
		Category:           int64(tx.Category),
		Reason:             string(tx.Reason),
		RelatedID:          tx.RelatedID,
		Description:        tx.Description,
		CreatedAt:          tx.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []wallet.TransactionRecord) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toBalanceDTO(userID wallet.UserID, category wallet.CategoryID, d wallet.Details) BalanceDTO {
	return BalanceDTO{
		UserID:        string(userID),
		Category:      int64(category),
		Refundable:    d.Refundable.String(),
		Nonrefundable: d.Nonrefundable.String(),
		Free:          d.Free.String(),
		Total:         d.Total.String(),
		ValidTotal:    d.ValidTotal.String(),
	}
}
