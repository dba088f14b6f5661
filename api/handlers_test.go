package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-engine/api"
	"github.com/warp/wallet-engine/coupon"
	"github.com/warp/wallet-engine/discount"
	"github.com/warp/wallet-engine/store/sqlite"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := wallet.DefaultConfig()
	engine := wallet.NewEngine(wallet.Deps{
		Balances:   store,
		Ledger:     wallet.NewLedger(store),
		Categories: store,
		Rules:      store,
		Users:      store,
		Transforms: store,
		Config:     cfg,
	})
	validator := coupon.NewValidator(store, store, store, coupon.DefaultConfig())
	aggregator := discount.NewAggregator(validator, store, store, store, discount.Config{
		Strategy: cfg.Strategy,
	})

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(store, engine, validator, aggregator)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type balanceResp struct {
	UserID     string `json:"user_id"`
	Total      string `json:"total"`
	ValidTotal string `json:"valid_total"`
	Refundable string `json:"refundable"`
}

// =============================================================================
// WALLET ENDPOINT TESTS
// =============================================================================

func TestAPI_CreditThenBalance(t *testing.T) {
	// GIVEN: A running server
	// WHEN: A wallet is credited and the balance read back
	// THEN: The credit shows up in the balance and the history

	srv := newTestServer(t)

	status := postJSON(t, srv, "/api/wallet/credit", map[string]any{
		"user_id": "u1", "amount": "100.50", "refundable": true,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var bal balanceResp
	status = getJSON(t, srv, "/api/wallet/u1/balance", &bal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100.5", bal.Total)
	assert.Equal(t, "100.5", bal.Refundable)

	var history []map[string]any
	status = getJSON(t, srv, "/api/wallet/u1/transactions", &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history, 1)
	assert.Equal(t, "credit", history[0]["type"])
}

func TestAPI_DebitInsufficient_Conflict(t *testing.T) {
	srv := newTestServer(t)

	status := postJSON(t, srv, "/api/wallet/credit", map[string]any{
		"user_id": "u1", "amount": "50", "refundable": true,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	status = postJSON(t, srv, "/api/wallet/debit", map[string]any{
		"user_id": "u1", "amount": "80",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)

	var bal balanceResp
	getJSON(t, srv, "/api/wallet/u1/balance", &bal)
	assert.Equal(t, "50", bal.Total, "failed debit leaves the balance alone")
}

func TestAPI_BadAmount_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	status := postJSON(t, srv, "/api/wallet/credit", map[string]any{
		"user_id": "u1", "amount": "not-a-number",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_Transfer(t *testing.T) {
	// GIVEN: A funded sender and a registered receiver
	// WHEN: Money is transferred by receiver email
	// THEN: Both balances move and the result carries both ledger entries

	srv := newTestServer(t)

	status := postJSON(t, srv, "/api/admin/users", map[string]any{
		"id": "bob", "email": "bob@example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	status = postJSON(t, srv, "/api/wallet/credit", map[string]any{
		"user_id": "alice", "amount": "100", "refundable": true,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var result struct {
		ReceiverID string `json:"receiver_id"`
		Debited    string `json:"debited"`
		Credited   string `json:"credited"`
	}
	status = postJSON(t, srv, "/api/wallet/transfer", map[string]any{
		"sender_id": "alice", "receiver_email": "bob@example.com", "amount": "40",
	}, &result)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "bob", result.ReceiverID)
	assert.Equal(t, "40", result.Debited)

	var bal balanceResp
	getJSON(t, srv, "/api/wallet/alice/balance", &bal)
	assert.Equal(t, "60", bal.Total)
	getJSON(t, srv, "/api/wallet/bob/balance", &bal)
	assert.Equal(t, "40", bal.Total)
}

func TestAPI_TransferUnknownReceiver_Conflict(t *testing.T) {
	srv := newTestServer(t)

	postJSON(t, srv, "/api/wallet/credit", map[string]any{
		"user_id": "alice", "amount": "100", "refundable": true,
	}, nil)

	status := postJSON(t, srv, "/api/wallet/transfer", map[string]any{
		"sender_id": "alice", "receiver_email": "ghost@example.com", "amount": "40",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

// =============================================================================
// COUPON ENDPOINT TESTS
// =============================================================================

func TestAPI_CouponCheckAndApply(t *testing.T) {
	srv := newTestServer(t)

	status := postJSON(t, srv, "/api/admin/coupons", map[string]any{
		"code": "FIX25", "type": "fixed", "value": "25",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var check struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}
	status = postJSON(t, srv, "/api/coupons/check", map[string]any{
		"code": "FIX25", "user_id": "u1", "area": "topup",
	}, &check)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, check.Valid)

	status = postJSON(t, srv, "/api/coupons/check", map[string]any{
		"code": "NOPE", "user_id": "u1", "area": "topup",
	}, &check)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, check.Valid)
	assert.NotEmpty(t, check.Reason)

	var apply struct {
		Kind string `json:"kind"`
	}
	status = postJSON(t, srv, "/api/coupons/apply", map[string]any{
		"code": "FIX25", "user_id": "u1", "area": "topup",
	}, &apply)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "credited", apply.Kind)

	var bal balanceResp
	getJSON(t, srv, "/api/wallet/u1/balance", &bal)
	assert.Equal(t, "25", bal.Total)

	status = postJSON(t, srv, "/api/coupons/apply", map[string]any{
		"code": "NOPE", "user_id": "u1", "area": "topup",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

// =============================================================================
// COST ENDPOINT TESTS
// =============================================================================

func TestAPI_Cost(t *testing.T) {
	srv := newTestServer(t)

	status := postJSON(t, srv, "/api/admin/instances", map[string]any{
		"id": 1, "course_id": 100, "cost": "200",
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	status = postJSON(t, srv, "/api/admin/coupons", map[string]any{
		"code": "PCT25", "type": "percent", "value": "25",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var cost struct {
		Cost string `json:"cost"`
	}
	status = postJSON(t, srv, "/api/cost", map[string]any{
		"instance_id": 1, "user_id": "u1", "coupon": "PCT25",
	}, &cost)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "150", cost.Cost)

	status = postJSON(t, srv, "/api/cost", map[string]any{
		"instance_id": 999, "user_id": "u1",
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_InstanceUpdateInvalidatesCost(t *testing.T) {
	// GIVEN: A priced instance whose definition then changes
	// WHEN: The cost is re-read after the admin update
	// THEN: The new listed cost is served, not the memoized one

	srv := newTestServer(t)

	require.Equal(t, http.StatusCreated, postJSON(t, srv, "/api/admin/instances", map[string]any{
		"id": 1, "course_id": 100, "cost": "200",
	}, nil))

	var cost struct {
		Cost string `json:"cost"`
	}
	status := postJSON(t, srv, "/api/cost", map[string]any{
		"instance_id": 1, "user_id": "u1",
	}, &cost)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "200", cost.Cost)

	require.Equal(t, http.StatusCreated, postJSON(t, srv, "/api/admin/instances", map[string]any{
		"id": 1, "course_id": 100, "cost": "120",
	}, nil))

	status = postJSON(t, srv, "/api/cost", map[string]any{
		"instance_id": 1, "user_id": "u1",
	}, &cost)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "120", cost.Cost)
}

// =============================================================================
// CATEGORY SCOPE TESTS
// =============================================================================

func TestAPI_CategoryBalanceQuery(t *testing.T) {
	srv := newTestServer(t)

	require.Equal(t, http.StatusCreated, postJSON(t, srv, "/api/admin/categories", map[string]any{
		"id": 2, "parent": 1,
	}, nil))
	require.Equal(t, http.StatusCreated, postJSON(t, srv, "/api/wallet/credit", map[string]any{
		"user_id": "u1", "amount": "30", "refundable": true, "category": 2,
	}, nil))
	require.Equal(t, http.StatusCreated, postJSON(t, srv, "/api/wallet/credit", map[string]any{
		"user_id": "u1", "amount": "50", "refundable": true,
	}, nil))

	var bal balanceResp
	status := getJSON(t, srv, "/api/wallet/u1/balance?category=2", &bal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "30", bal.Total, "category scope shows its own money")
	assert.Equal(t, "80", bal.ValidTotal, "site money is spendable in any category")

	status = getJSON(t, srv, "/api/wallet/u1/balance?category=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
