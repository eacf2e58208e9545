package guard

import (
	"context"
	"sync"
	"time"

	"github.com/staffhub/platform/internal/domain"
)

// DefaultIdempotencyTTL bounds how long a key stays reserved. Clients retrying
// an outcome they never saw do so within minutes, not days.
const DefaultIdempotencyTTL = time.Hour

// IdempotencyGuard deduplicates requests by idempotency key. Keys expire after
// the TTL so the map cannot grow without bound.
type IdempotencyGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// NewIdempotencyGuard creates a new in-memory idempotency guard. ttl <= 0
// selects DefaultIdempotencyTTL.
func NewIdempotencyGuard(ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Check reserves the key and reports whether it was fresh. A reserved key must
// be released with Remove when the guarded operation fails, so the client can
// retry with the same key.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) domain.GuardResult {
	if key == "" {
		return domain.GuardResult{Allowed: true}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	now := ig.now()
	ig.sweep(now)

	if expiry, ok := ig.seen[key]; ok && now.Before(expiry) {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "duplicate request: idempotency key already processed",
			Guard:   "idempotency",
		}
	}

	ig.seen[key] = now.Add(ig.ttl)
	return domain.GuardResult{Allowed: true}
}

// Remove releases a reserved key so the request can be retried.
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.seen, key)
}

// sweep drops expired keys. Caller holds the lock.
func (ig *IdempotencyGuard) sweep(now time.Time) {
	for key, expiry := range ig.seen {
		if !now.Before(expiry) {
			delete(ig.seen, key)
		}
	}
}
