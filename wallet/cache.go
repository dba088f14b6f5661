/*
cache.go - Per-user balance cache

PURPOSE:
  Balance reads are served from a process-wide cache keyed by user id.
  Every mutation invalidates (and repopulates) the affected user's entry
  before the next read can observe stale state.

  The cache is an explicit object passed to constructors, with an explicit
  Invalidate call. Correctness does not depend on it: it only avoids
  re-reading the persisted record. The per-user write serialization lives
  in the engine, not here.
*/
package wallet

import "sync"

// BalanceCache caches BalanceRecords by user. Implementations must be safe
// for concurrent use and must hand out copies, never shared pointers.
type BalanceCache interface {
	Get(userID UserID) (*BalanceRecord, bool)
	Put(rec *BalanceRecord)
	Invalidate(userID UserID)
}

// =============================================================================
// MEMORY CACHE
// =============================================================================

// MemoryCache is the default in-process BalanceCache.
type MemoryCache struct {
	mu      sync.RWMutex
	records map[UserID]*BalanceRecord
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[UserID]*BalanceRecord)}
}

func (c *MemoryCache) Get(userID UserID) (*BalanceRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[userID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (c *MemoryCache) Put(rec *BalanceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.UserID] = rec.Clone()
}

func (c *MemoryCache) Invalidate(userID UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, userID)
}

// NopCache disables caching (every read hits the store).
type NopCache struct{}

func (NopCache) Get(UserID) (*BalanceRecord, bool) { return nil, false }
func (NopCache) Put(*BalanceRecord)                {}
func (NopCache) Invalidate(UserID)                 {}
