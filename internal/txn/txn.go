// Package txn provides the "Transaction context" external collaborator
// of §6 — enough of a stub to drive the cache controller's visibility
// rules and the stuck-transaction monitor's sweep, without pulling in
// the full entity-attribute transaction model (explicitly out of
// scope).
package txn

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rpcpool/patricia-cache/cacheadapter"
	"github.com/rpcpool/patricia-cache/cachepolicy"
)

// Context is the transaction-context collaborator the cache
// controller consumes.
type Context interface {
	IsMutable() bool
	IsCurrent() bool
	IsCachingRelevant() bool
	GetLocalCache() *cacheadapter.Generation
	// EvictLocalCacheEntry drops fp from this transaction's own local
	// view only — it never touches the shared generation the adapter
	// holds (§4.H step 4: "evict locally and fall through").
	EvictLocalCacheEntry(fp cacheadapter.Fingerprint)
	LocalCacheAttempt()
	LocalCacheHit()
	SetQueryCancellingPolicy(policy cachepolicy.Policy)
}

// Stub is a minimal Context sufficient to exercise the controller and
// the stuck-transaction monitor in tests and the reference CLI.
type Stub struct {
	ID uuid.UUID

	mutable         bool
	current         bool
	cachingRelevant bool

	cacheMu    sync.Mutex
	localCache *cacheadapter.Generation

	attempts atomic.Uint64
	hits     atomic.Uint64

	policyMu sync.Mutex
	policy   *cachepolicy.Policy

	CreatedAt     time.Time
	CreationStack string // optional diagnostics; Begin leaves it empty, callers set it
}

// IsMutable reports whether this transaction may write.
func (s *Stub) IsMutable() bool { return s.mutable }

// IsCurrent reports whether this transaction is the environment's
// current (most recent) transaction.
func (s *Stub) IsCurrent() bool { return s.current }

// IsCachingRelevant reports whether results computed in this
// transaction are eligible for the shared cache at all.
func (s *Stub) IsCachingRelevant() bool { return s.cachingRelevant }

// GetLocalCache returns the generation this transaction currently
// sees — either the one it opened against, or a locally-evicted
// derivative of it.
func (s *Stub) GetLocalCache() *cacheadapter.Generation {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.localCache
}

// EvictLocalCacheEntry drops fp from this transaction's own view of
// the cache without publishing anything to the shared adapter. Used
// when a lookup finds a hit that turns out to be expired: the stale
// entry is hidden locally and the caller falls through to
// materializing it fresh.
func (s *Stub) EvictLocalCacheEntry(fp cacheadapter.Fingerprint) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.localCache == nil {
		return
	}
	s.localCache = s.localCache.WithEvict(fp)
}

// LocalCacheAttempt records a cache probe for telemetry.
func (s *Stub) LocalCacheAttempt() { s.attempts.Add(1) }

// LocalCacheHit records a cache hit for telemetry.
func (s *Stub) LocalCacheHit() { s.hits.Add(1) }

// SetQueryCancellingPolicy installs the cancellation policy a caching
// job running on behalf of this transaction must honor.
func (s *Stub) SetQueryCancellingPolicy(policy cachepolicy.Policy) {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	p := policy
	s.policy = &p
}

// Policy returns the currently installed cancellation policy, if any.
func (s *Stub) Policy() (cachepolicy.Policy, bool) {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	if s.policy == nil {
		return cachepolicy.Policy{}, false
	}
	return *s.policy, true
}

// Age returns how long this transaction has been open.
func (s *Stub) Age(now time.Time) time.Duration { return now.Sub(s.CreatedAt) }

// Registry tracks active transactions for forEachActiveTransaction.
type Registry struct {
	mu     sync.Mutex
	active map[uuid.UUID]*Stub
}

// NewRegistry builds an empty transaction registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[uuid.UUID]*Stub)}
}

// Begin opens and registers a new transaction.
func (r *Registry) Begin(mutable, current, cachingRelevant bool, localCache *cacheadapter.Generation) *Stub {
	s := &Stub{
		ID:              uuid.New(),
		mutable:         mutable,
		current:         current,
		cachingRelevant: cachingRelevant,
		localCache:      localCache,
		CreatedAt:       time.Now(),
	}
	r.mu.Lock()
	r.active[s.ID] = s
	r.mu.Unlock()
	return s
}

// Finish unregisters a transaction, e.g. on commit, revert, or forced
// abort by the stuck-transaction monitor.
func (r *Registry) Finish(s *Stub) {
	r.mu.Lock()
	delete(r.active, s.ID)
	r.mu.Unlock()
}

// ForEachActive invokes fn for a snapshot of the currently active
// transactions, per the forEachActiveTransaction collaborator.
func (r *Registry) ForEachActive(fn func(*Stub)) {
	r.mu.Lock()
	snapshot := make([]*Stub, 0, len(r.active))
	for _, s := range r.active {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()
	for _, s := range snapshot {
		fn(s)
	}
}

// Len reports the number of currently active transactions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
