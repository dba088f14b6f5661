/*
handlers.go - HTTP API handlers for the wallet engine

PURPOSE:
  Exposes the wallet engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Wallet:
    GET    /api/wallet/{userID}/balance       Balance summary (site or category)
    GET    /api/wallet/{userID}/transactions  Transaction history
    POST   /api/wallet/credit                 Add money
    POST   /api/wallet/debit                  Remove money
    POST   /api/wallet/transfer               Transfer between users

  Coupons:
    POST   /api/coupons/check                 Validate a code
    POST   /api/coupons/apply                 Redeem a code

  Cost:
    POST   /api/cost                          Discounted cost of an instance

  Admin:
    POST   /api/admin/coupons                 Define a coupon
    POST   /api/admin/categories              Register a category
    POST   /api/admin/rules                   Define a conditional discount
    POST   /api/admin/users                   Register a user
    POST   /api/admin/instances               Register an enrolment instance

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, validator, aggregator)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: User or resource not found
  - 409: Insufficient balance, failed transfer
  - 422: Invalid coupon
  - 500: Internal errors (including reconciliation escalations)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/coupon"
	"github.com/warp/wallet-engine/discount"
	"github.com/warp/wallet-engine/store/sqlite"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Engine     *wallet.Engine
	Validator  *coupon.Validator
	Redeemer   *coupon.Redeemer
	Aggregator *discount.Aggregator
}

// NewHandler creates a new handler over the given store and engine stack.
func NewHandler(store *sqlite.Store, engine *wallet.Engine, validator *coupon.Validator, aggregator *discount.Aggregator) *Handler {
	return &Handler{
		Store:      store,
		Engine:     engine,
		Validator:  validator,
		Redeemer:   coupon.NewRedeemer(validator, engine),
		Aggregator: aggregator,
	}
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// GetBalance returns the balance summary for a user. The optional ?category=
// query parameter scopes the summary to one category; absent means site.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := wallet.UserID(chi.URLParam(r, "userID"))

	category := wallet.CategorySite
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid category", err)
			return
		}
		category = wallet.CategoryID(id)
	}

	details, err := h.Engine.Balance(r.Context(), userID, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(userID, category, details))
}

// GetTransactions returns the full transaction history for a user, oldest
// first.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := wallet.UserID(chi.URLParam(r, "userID"))

	txs, err := h.Engine.History(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// Credit adds money to a wallet.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	reason := wallet.Reason(req.Reason)
	if reason == "" {
		reason = wallet.ReasonUser
	}

	tx, err := h.Engine.Credit(r.Context(), wallet.CreditRequest{
		UserID:      wallet.UserID(req.UserID),
		Amount:      amount,
		Reason:      reason,
		RelatedID:   req.RelatedID,
		Description: req.Description,
		Refundable:  req.Refundable,
		Category:    wallet.CategoryID(req.Category),
	})
	if err != nil {
		writeWalletError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// Debit removes money from a wallet.
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	var req DebitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	reason := wallet.Reason(req.Reason)
	if reason == "" {
		reason = wallet.ReasonEnrol
	}

	tx, err := h.Engine.Debit(r.Context(), wallet.DebitRequest{
		UserID:        wallet.UserID(req.UserID),
		Amount:        amount,
		Reason:        reason,
		RelatedID:     req.RelatedID,
		Description:   req.Description,
		AllowNegative: req.AllowNegative,
		Category:      wallet.CategoryID(req.Category),
	})
	if err != nil {
		writeWalletError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// Transfer moves money from one user to another, addressed by email.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	result, err := h.Engine.Transfer(r.Context(), wallet.TransferRequest{
		SenderID:      wallet.UserID(req.SenderID),
		ReceiverEmail: req.ReceiverEmail,
		Amount:        amount,
		Category:      wallet.CategoryID(req.Category),
		Description:   req.Description,
	})
	if err != nil {
		writeWalletError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TransferResultDTO{
		ReceiverID: string(result.ReceiverID),
		Debited:    result.Debited.String(),
		Credited:   result.Credited.String(),
		Fee:        result.Fee.String(),
		DebitTx:    toTransactionDTO(result.DebitTx),
		CreditTx:   toTransactionDTO(result.CreditTx),
	})
}

// =============================================================================
// COUPON HANDLERS
// =============================================================================

// CheckCoupon validates a code against a target without redeeming it.
func (h *Handler) CheckCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponCheckRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Validator.Validate(r.Context(), req.Code, wallet.UserID(req.UserID), coupon.Target{
		Area:       coupon.Area(req.Area),
		AreaID:     req.AreaID,
		CourseID:   req.CourseID,
		CategoryID: wallet.CategoryID(req.Category),
	})
	if err != nil {
		var invalid *coupon.InvalidError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusOK, CouponCheckDTO{
				Valid:  false,
				Code:   req.Code,
				Reason: invalid.Reason,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate coupon", err)
		return
	}

	writeJSON(w, http.StatusOK, CouponCheckDTO{
		Valid: true,
		Code:  c.Code,
		Type:  string(c.Type),
		Value: c.Value.String(),
	})
}

// ApplyCoupon redeems a code for a user against a target.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponCheckRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Redeemer.Apply(r.Context(), req.Code, wallet.UserID(req.UserID), coupon.Target{
		Area:       coupon.Area(req.Area),
		AreaID:     req.AreaID,
		CourseID:   req.CourseID,
		CategoryID: wallet.CategoryID(req.Category),
	})
	if err != nil {
		if coupon.IsInvalid(err) {
			writeError(w, http.StatusUnprocessableEntity, "Coupon not valid", err)
			return
		}
		writeWalletError(w, err)
		return
	}

	dto := CouponApplyDTO{Kind: string(result.Kind)}
	switch result.Kind {
	case coupon.ResultCredited:
		tx := toTransactionDTO(result.Credit)
		dto.Credit = &tx
	case coupon.ResultDiscount:
		dto.Discount = result.Discount.String()
	case coupon.ResultCourses:
		dto.Courses = result.Courses
	}

	writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// COST HANDLERS
// =============================================================================

// Cost returns the discounted cost of an enrolment instance for a user.
func (h *Handler) Cost(w http.ResponseWriter, r *http.Request) {
	var req CostRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inst, err := h.Store.Instance(r.Context(), req.InstanceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load instance", err)
		return
	}
	if inst == nil {
		writeError(w, http.StatusNotFound, "Instance not found", nil)
		return
	}

	cost, err := h.Aggregator.CostAfterDiscount(r.Context(), inst, wallet.UserID(req.UserID), req.Coupon)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute cost", err)
		return
	}

	writeJSON(w, http.StatusOK, CostDTO{
		InstanceID: req.InstanceID,
		UserID:     req.UserID,
		Cost:       cost.String(),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreateCoupon defines or replaces a coupon.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Coupon code is required", nil)
		return
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value", err)
		return
	}
	from, err := parseOptionalTime(req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_from (use RFC3339)", err)
		return
	}
	to, err := parseOptionalTime(req.ValidTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_to (use RFC3339)", err)
		return
	}

	c := &coupon.Coupon{
		Code:            req.Code,
		Type:            coupon.Type(req.Type),
		Value:           value,
		Category:        wallet.CategoryID(req.Category),
		Courses:         req.Courses,
		MaxUsage:        req.MaxUsage,
		MaxUsagePerUser: req.MaxUsagePerUser,
		ValidFrom:       from,
		ValidTo:         to,
	}
	if err := h.Store.SaveCoupon(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save coupon", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"code": c.Code})
}

// CreateCategory registers a category under a parent (0 = top level).
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == 0 {
		writeError(w, http.StatusBadRequest, "Category id is required", nil)
		return
	}

	if err := h.Store.SaveCategory(r.Context(), wallet.CategoryID(req.ID), wallet.CategoryID(req.Parent)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save category", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": req.ID})
}

// CreateRule defines a conditional discount rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	condition, err := decimal.NewFromString(req.ConditionAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid condition_amount", err)
		return
	}
	percent, err := decimal.NewFromString(req.Percent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid percent", err)
		return
	}
	from, err := parseOptionalTime(req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_from (use RFC3339)", err)
		return
	}
	to, err := parseOptionalTime(req.ValidTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_to (use RFC3339)", err)
		return
	}

	rule := wallet.DiscountRule{
		ID:              req.ID,
		Category:        wallet.CategoryID(req.Category),
		ConditionAmount: condition,
		Percent:         percent,
		ValidFrom:       from,
		ValidTo:         to,
	}
	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": rule.ID})
}

// CreateUser registers a user in the directory.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "User id and email are required", nil)
		return
	}

	u := wallet.User{
		ID:        wallet.UserID(req.ID),
		Email:     req.Email,
		Suspended: req.Suspended,
		Deleted:   req.Deleted,
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save user", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// CreateInstance registers an enrolment instance.
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost", err)
		return
	}
	first, err := parseOptionalDecimal(req.RepurchaseFirst)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid repurchase_first", err)
		return
	}
	second, err := parseOptionalDecimal(req.RepurchaseSecond)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid repurchase_second", err)
		return
	}

	var offers []discount.Offer
	if req.Offers != "" {
		offers, err = discount.ParseOffers([]byte(req.Offers))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid offers", err)
			return
		}
	}

	inst := &discount.EnrolmentInstance{
		ID:               req.ID,
		CourseID:         req.CourseID,
		Category:         wallet.CategoryID(req.Category),
		Cost:             cost,
		RepurchaseFirst:  first,
		RepurchaseSecond: second,
		Offers:           offers,
	}
	if err := h.Store.SaveInstance(r.Context(), inst); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save instance", err)
		return
	}

	// Instance changes invalidate any memoized cost for it.
	h.Aggregator.InvalidateInstance(inst.ID)

	writeJSON(w, http.StatusCreated, map[string]int64{"id": inst.ID})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeWalletError maps engine errors onto HTTP statuses.
func writeWalletError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
	case errors.Is(err, wallet.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found", err)
	case errors.Is(err, wallet.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "Insufficient balance", err)
	case errors.Is(err, wallet.ErrTransferFailed):
		writeError(w, http.StatusConflict, "Transfer failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
