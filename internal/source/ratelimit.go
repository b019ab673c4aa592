package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrDailyLimitReached is returned when the daily request budget has been
// exhausted.
var ErrDailyLimitReached = errors.New("daily request limit reached")

// RateLimiter paces upstream requests with a token bucket and an optional
// daily request budget that resets at midnight UTC.
type RateLimiter struct {
	limiter  *rate.Limiter
	maxDaily int64
	nowFunc  func() time.Time

	mu    sync.Mutex
	day   string
	daily int64
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a rate limiter with the given per-second rate and
// burst. maxDaily <= 0 disables the daily budget; perSecond <= 0 disables
// pacing.
func NewRateLimiter(perSecond float64, burst int, maxDaily int64, opts ...RateLimiterOption) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	r := &RateLimiter{
		limiter:  rate.NewLimiter(limit, max(burst, 1)),
		maxDaily: maxDaily,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.day = r.today()
	return r
}

// Wait blocks until a request is allowed or ctx is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.reserveDaily(); err != nil {
		return err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		r.release()
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// DailyCount returns the number of requests made today.
func (r *RateLimiter) DailyCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()
	return r.daily
}

func (r *RateLimiter) reserveDaily() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()
	if r.maxDaily > 0 && r.daily >= r.maxDaily {
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, r.daily, r.maxDaily)
	}
	r.daily++
	return nil
}

func (r *RateLimiter) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.daily > 0 {
		r.daily--
	}
}

func (r *RateLimiter) rollover() {
	if d := r.today(); d != r.day {
		r.day = d
		r.daily = 0
	}
}

func (r *RateLimiter) today() string {
	return r.nowFunc().UTC().Format("2006-01-02")
}
