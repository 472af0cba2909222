package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// RateLimiter caps improvement runs per admin in a fixed window. Counters
// live in the cache when one is configured and fall back to process memory
// when it is missing or failing.
type RateLimiter struct {
	cache  providers.CacheProvider
	local  *localRateLimiter
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing limit runs per window.
// A non-positive limit disables limiting.
func NewRateLimiter(cache providers.CacheProvider, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:  cache,
		local:  newLocalRateLimiter(),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow consumes one run for key and returns RATE_LIMITED once the budget is spent
func (l *RateLimiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}

	now := l.now()
	allowed := false

	if l.cache != nil {
		windowStart := now.Truncate(l.window).Unix()
		cacheKey := fmt.Sprintf("improve_rate:%s:%d", key, windowStart)
		count, err := l.cache.Increment(ctx, cacheKey, int(l.window.Seconds()))
		if err == nil {
			allowed = count <= int64(l.limit)
		} else {
			log.Warn().Err(err).Str("key", key).Msg("rate limit cache unavailable, using local limiter")
			allowed = l.local.allow(key, l.limit, l.window, now)
		}
	} else {
		allowed = l.local.allow(key, l.limit, l.window, now)
	}

	if !allowed {
		observability.ImprovementRateLimitedTotal.Inc()
		return apperrors.NewRateLimitedError(fmt.Sprintf("Saatlik iyileştirme sınırına (%d) ulaşıldı, lütfen daha sonra tekrar deneyin", l.limit))
	}
	return nil
}

type localRateLimiter struct {
	mu     sync.Mutex
	states map[string]*localRateState
}

type localRateState struct {
	count   int
	resetAt time.Time
}

func newLocalRateLimiter() *localRateLimiter {
	return &localRateLimiter{
		states: make(map[string]*localRateState),
	}
}

func (l *localRateLimiter) allow(key string, limit int, window time.Duration, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[key]
	if !ok || !now.Before(state.resetAt) {
		state = &localRateState{resetAt: now.Add(window)}
		l.states[key] = state
	}

	if state.count >= limit {
		return false
	}
	state.count++
	return true
}
