// Package ratelimit implements fixed-window request limiting per partner
// across minute, hour and day windows. Counters reset lazily on the next
// check after a window expires; there is no timer.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Window is one fixed counting period.
type Window struct {
	Name     string
	Duration time.Duration
}

// windows are checked in ascending duration so a rejection carries the
// shortest possible retry hint.
var windows = []Window{
	{Name: "minute", Duration: time.Minute},
	{Name: "hour", Duration: time.Hour},
	{Name: "day", Duration: 24 * time.Hour},
}

// Limits holds a partner's per-window caps. Zero disables a window.
type Limits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

func (l Limits) forWindow(name string) int {
	switch name {
	case "minute":
		return l.PerMinute
	case "hour":
		return l.PerHour
	case "day":
		return l.PerDay
	}
	return 0
}

// Result reports the most constrained window after an allowed check.
type Result struct {
	Limit     int
	Remaining int
	Window    string
	ResetAt   time.Time
}

// LimitExceededError is returned when a window is exhausted.
type LimitExceededError struct {
	Limit             int
	Window            string
	RetryAfterSeconds int
	ResetAt           time.Time
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d per %s, retry after %ds", e.Limit, e.Window, e.RetryAfterSeconds)
}

// Slot is the counter state for one (partner, window) key.
type Slot struct {
	Count       int
	WindowStart time.Time
}

// Store executes one atomic fixed-window check-and-increment: lazy reset
// when the window has elapsed, reject at the limit, else increment.
// Implementations must never let two concurrent calls for the same key
// both observe count = limit-1 and both succeed.
type Store interface {
	Incr(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Slot, bool, error)
}

// Limiter checks partner requests against their configured limits.
type Limiter struct {
	store Store
}

// New creates a limiter on the given counter store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// NewMemory creates a limiter on a process-local store.
func NewMemory() *Limiter {
	return New(NewMemoryStore())
}

// Check applies every configured window for the partner, in ascending
// window size. On success it returns the most constrained window, or nil
// when no window is configured. On rejection it returns a
// *LimitExceededError carrying the seconds until the window resets.
func (l *Limiter) Check(ctx context.Context, partnerID string, limits Limits) (*Result, error) {
	now := time.Now()

	var tightest *Result
	for _, w := range windows {
		limit := limits.forWindow(w.Name)
		if limit <= 0 {
			continue
		}

		slot, allowed, err := l.store.Incr(ctx, counterKey(partnerID, w.Name), limit, w.Duration, now)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}

		resetAt := slot.WindowStart.Add(w.Duration)
		if !allowed {
			return nil, &LimitExceededError{
				Limit:             limit,
				Window:            w.Name,
				RetryAfterSeconds: retryAfterSeconds(resetAt, now),
				ResetAt:           resetAt,
			}
		}

		remaining := limit - slot.Count
		if remaining < 0 {
			remaining = 0
		}
		if tightest == nil || remaining < tightest.Remaining {
			tightest = &Result{Limit: limit, Remaining: remaining, Window: w.Name, ResetAt: resetAt}
		}
	}
	return tightest, nil
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func counterKey(partnerID, window string) string {
	return "ratelimit:" + partnerID + ":" + window
}
