// Package quota gates AI requests with a per-user, per-calendar-day
// counter kept in the local key-value store.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DefaultDailyLimit is the number of AI requests allowed per user per
// calendar day.
const DefaultDailyLimit = 14

// KV is the injected storage behind the counter.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// DayKey formats t as a locale-date style day string. The window is
// calendar-day keyed, not a rolling 24h: crossing midnight resets the
// allowance even if less than 24 hours have elapsed. A new day simply
// produces a new key; old keys are never read again.
func DayKey(t time.Time) string {
	return t.Format("Mon Jan 02 2006")
}

type Counter struct {
	kv    KV
	limit int
}

func NewCounter(kv KV, limit int) *Counter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Counter{kv: kv, limit: limit}
}

func (c *Counter) Limit() int { return c.limit }

func key(ownerID, day string) string { return "usage_" + ownerID + "_" + day }

// Count returns the number of requests ownerID has made on day.
func (c *Counter) Count(ctx context.Context, ownerID, day string) (int, error) {
	raw, ok, err := c.kv.Get(ctx, key(ownerID, day))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt usage counter %q: %w", raw, err)
	}
	return n, nil
}

// Increment bumps the counter and returns the new count. This is
// read-modify-write, not atomic: two concurrent processes for the same
// owner can read the same value and lose one increment. Accepted under
// the single-active-client assumption.
func (c *Counter) Increment(ctx context.Context, ownerID, day string) (int, error) {
	n, err := c.Count(ctx, ownerID, day)
	if err != nil {
		return 0, err
	}
	n++
	if err := c.kv.Set(ctx, key(ownerID, day), strconv.Itoa(n)); err != nil {
		return 0, err
	}
	return n, nil
}

// Allow reports whether ownerID may issue another request on day, and
// the current count.
func (c *Counter) Allow(ctx context.Context, ownerID, day string) (bool, int, error) {
	n, err := c.Count(ctx, ownerID, day)
	if err != nil {
		return false, 0, err
	}
	return n < c.limit, n, nil
}
