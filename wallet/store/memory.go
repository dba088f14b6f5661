// Package store provides in-memory implementations of every storage
// interface, for testing and development.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/wallet-engine/coupon"
	"github.com/warp/wallet-engine/discount"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// MEMORY STORE - implements every storage interface in-process
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	balances     map[wallet.UserID]*wallet.BalanceRecord
	transactions map[wallet.UserID][]wallet.TransactionRecord
	parents      map[wallet.CategoryID]wallet.CategoryID
	rules        []wallet.DiscountRule
	transforms   map[string]wallet.PendingTransform
	done         map[string]bool
	users        map[string]wallet.User // keyed by email
	coupons      map[string]coupon.Coupon
	usages       []coupon.Usage
	instances    map[int64]*discount.EnrolmentInstance

	profiles   map[wallet.UserID]map[string]string
	enrolments map[wallet.UserID]map[int64]bool // active course enrolments
	courseCats map[int64]wallet.CategoryID
	expired    map[wallet.UserID]map[int64]bool // expired instance enrolments
	repurchase map[wallet.UserID]map[int64]bool // expired enrolment was a repurchase
}

func NewMemory() *Memory {
	return &Memory{
		balances:     make(map[wallet.UserID]*wallet.BalanceRecord),
		transactions: make(map[wallet.UserID][]wallet.TransactionRecord),
		parents:      make(map[wallet.CategoryID]wallet.CategoryID),
		transforms:   make(map[string]wallet.PendingTransform),
		done:         make(map[string]bool),
		users:        make(map[string]wallet.User),
		coupons:      make(map[string]coupon.Coupon),
		instances:    make(map[int64]*discount.EnrolmentInstance),
		profiles:     make(map[wallet.UserID]map[string]string),
		enrolments:   make(map[wallet.UserID]map[int64]bool),
		courseCats:   make(map[int64]wallet.CategoryID),
		expired:      make(map[wallet.UserID]map[int64]bool),
		repurchase:   make(map[wallet.UserID]map[int64]bool),
	}
}

// =============================================================================
// wallet.BalanceStore
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, userID wallet.UserID) (*wallet.BalanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.balances[userID]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (m *Memory) SaveBalance(_ context.Context, rec *wallet.BalanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[rec.UserID] = rec.Clone()
	return nil
}

// =============================================================================
// wallet.TransactionStore - append-only
// =============================================================================

func (m *Memory) Append(_ context.Context, tx wallet.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.UserID] = append(m.transactions[tx.UserID], tx)
	return nil
}

func (m *Memory) History(_ context.Context, userID wallet.UserID) ([]wallet.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]wallet.TransactionRecord, len(m.transactions[userID]))
	copy(result, m.transactions[userID])
	return result, nil
}

func (m *Memory) Latest(_ context.Context, userID wallet.UserID) (*wallet.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txs := m.transactions[userID]
	if len(txs) == 0 {
		return nil, nil
	}
	tx := txs[len(txs)-1]
	return &tx, nil
}

// =============================================================================
// wallet.CategoryResolver
// =============================================================================

// SetParent registers a category under a parent (CategorySite = top level).
func (m *Memory) SetParent(id, parent wallet.CategoryID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parents[id] = parent
}

func (m *Memory) Ancestors(_ context.Context, id wallet.CategoryID) ([]wallet.CategoryID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var chain []wallet.CategoryID
	for {
		parent, ok := m.parents[id]
		if !ok || parent == wallet.CategorySite {
			return chain, nil
		}
		chain = append(chain, parent)
		id = parent
	}
}

func (m *Memory) Descendants(_ context.Context, id wallet.CategoryID) ([]wallet.CategoryID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []wallet.CategoryID
	frontier := []wallet.CategoryID{id}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for child, parent := range m.parents {
			if parent == next {
				result = append(result, child)
				frontier = append(frontier, child)
			}
		}
	}
	return result, nil
}

// =============================================================================
// wallet.RuleStore
// =============================================================================

func (m *Memory) AddRule(rule wallet.DiscountRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

func (m *Memory) ActiveRules(_ context.Context, at time.Time) ([]wallet.DiscountRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active []wallet.DiscountRule
	for _, rule := range m.rules {
		if rule.ActiveAt(at) {
			active = append(active, rule)
		}
	}
	return active, nil
}

// =============================================================================
// wallet.TransformStore
// =============================================================================

func (m *Memory) Enqueue(_ context.Context, pt wallet.PendingTransform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transforms[pt.ID] = pt
	return nil
}

func (m *Memory) Due(_ context.Context, now time.Time) ([]wallet.PendingTransform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []wallet.PendingTransform
	for id, pt := range m.transforms {
		if !m.done[id] && !pt.RunAt.After(now) {
			due = append(due, pt)
		}
	}
	return due, nil
}

func (m *Memory) MarkDone(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[id] = true
	return nil
}

// =============================================================================
// wallet.UserDirectory
// =============================================================================

func (m *Memory) AddUser(u wallet.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Email] = u
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*wallet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, wallet.ErrUserNotFound
	}
	return &u, nil
}

// =============================================================================
// coupon.Store / coupon.UsageStore
// =============================================================================

func (m *Memory) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) SaveCoupon(_ context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[c.Code] = *c
	return nil
}

func (m *Memory) AppendUsage(_ context.Context, u coupon.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usages = append(m.usages, u)
	return nil
}

func (m *Memory) TotalUse(_ context.Context, code string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.usages {
		if u.Code == code {
			count++
		}
	}
	return count, nil
}

func (m *Memory) UserUse(_ context.Context, code string, userID wallet.UserID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.usages {
		if u.Code == code && u.UserID == userID {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// discount.InstanceStore
// =============================================================================

func (m *Memory) Instance(_ context.Context, id int64) (*discount.EnrolmentInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, nil
	}
	cp := *inst
	return &cp, nil
}

func (m *Memory) SaveInstance(_ context.Context, inst *discount.EnrolmentInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inst
	m.instances[inst.ID] = &cp
	return nil
}

// =============================================================================
// discount.ProfileProvider / discount.EnrolmentHistory
// =============================================================================

func (m *Memory) SetProfileField(userID wallet.UserID, field, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profiles[userID] == nil {
		m.profiles[userID] = make(map[string]string)
	}
	m.profiles[userID][field] = value
}

func (m *Memory) Field(_ context.Context, userID wallet.UserID, field string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[userID][field], nil
}

// Enrol records an active enrolment in a course belonging to a category.
func (m *Memory) Enrol(userID wallet.UserID, courseID int64, category wallet.CategoryID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enrolments[userID] == nil {
		m.enrolments[userID] = make(map[int64]bool)
	}
	m.enrolments[userID][courseID] = true
	m.courseCats[courseID] = category
}

// Expire records that the user's enrolment in an instance lapsed.
// wasRepurchase marks the lapsed enrolment as itself a repurchase.
func (m *Memory) Expire(userID wallet.UserID, instanceID int64, wasRepurchase bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired[userID] == nil {
		m.expired[userID] = make(map[int64]bool)
	}
	m.expired[userID][instanceID] = true
	if wasRepurchase {
		if m.repurchase[userID] == nil {
			m.repurchase[userID] = make(map[int64]bool)
		}
		m.repurchase[userID][instanceID] = true
	}
}

func (m *Memory) ExpiredEnrolment(_ context.Context, userID wallet.UserID, instanceID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expired[userID][instanceID], nil
}

func (m *Memory) WasRepurchase(_ context.Context, userID wallet.UserID, instanceID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repurchase[userID][instanceID], nil
}

func (m *Memory) EnrolledIn(_ context.Context, userID wallet.UserID, courseID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enrolments[userID][courseID], nil
}

func (m *Memory) EnrolmentCount(_ context.Context, userID wallet.UserID, categories []wallet.CategoryID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[wallet.CategoryID]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	count := 0
	for courseID, active := range m.enrolments[userID] {
		if active && wanted[m.courseCats[courseID]] {
			count++
		}
	}
	return count, nil
}
