package model

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// QuotaChecker yields the yes/no verdict admission consumes. Quota
// policy computation itself is an external concern; the engine only
// cares whether this user may spend the requested tier right now.
type QuotaChecker interface {
	Allow(ctx context.Context, uid, tier string) bool
}

// RateQuota enforces a per-user, per-tier invocation rate. Each
// (uid, tier) pair gets its own token bucket; unknown tiers fall back
// to the default limit.
type RateQuota struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perTier  map[string]rate.Limit
	burst    int
	fallback rate.Limit
}

// NewRateQuota builds a quota checker from requests-per-minute limits
// keyed by tier. A limit of 0 means the tier is exhausted for everyone.
func NewRateQuota(perMinute map[string]int, burst int) *RateQuota {
	q := &RateQuota{
		limiters: make(map[string]*rate.Limiter),
		perTier:  make(map[string]rate.Limit, len(perMinute)),
		burst:    burst,
		fallback: rate.Limit(60.0 / 60.0),
	}
	if q.burst <= 0 {
		q.burst = 1
	}
	for tier, n := range perMinute {
		q.perTier[tier] = rate.Limit(float64(n) / 60.0)
	}
	return q
}

// Allow reports whether one more invocation fits in the user's budget
// for the tier.
func (q *RateQuota) Allow(_ context.Context, uid, tier string) bool {
	limit, ok := q.perTier[tier]
	if !ok {
		limit = q.fallback
	}
	if limit == 0 {
		return false
	}

	key := uid + "/" + tier
	q.mu.Lock()
	lim, ok := q.limiters[key]
	if !ok {
		lim = rate.NewLimiter(limit, q.burst)
		q.limiters[key] = lim
	}
	q.mu.Unlock()

	return lim.Allow()
}

// AllowAll is a QuotaChecker that never rejects. Useful in tests and
// single-user deployments.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, string, string) bool { return true }
