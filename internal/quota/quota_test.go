package quota

import (
	"context"
	"testing"
	"time"
)

type mapKV struct {
	m map[string]string
}

func newMapKV() *mapKV { return &mapKV{m: make(map[string]string)} }

func (kv *mapKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *mapKV) Set(_ context.Context, key, value string) error {
	kv.m[key] = value
	return nil
}

func TestCounter_LimitReached(t *testing.T) {
	c := NewCounter(newMapKV(), 3)
	ctx := context.Background()
	day := DayKey(time.Now())

	for i := 0; i < 3; i++ {
		ok, n, err := c.Allow(ctx, "u1", day)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("expected request %d to be allowed (count=%d)", i+1, n)
		}
		if _, err := c.Increment(ctx, "u1", day); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	ok, n, err := c.Allow(ctx, "u1", day)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("expected rejection after limit, count=%d", n)
	}
	if n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
}

func TestCounter_NewDayResets(t *testing.T) {
	c := NewCounter(newMapKV(), 5)
	ctx := context.Background()

	dayA := DayKey(time.Date(2026, 8, 27, 23, 50, 0, 0, time.UTC))
	dayB := DayKey(time.Date(2026, 8, 28, 0, 5, 0, 0, time.UTC))
	if dayA == dayB {
		t.Fatalf("day keys should differ across midnight")
	}

	for i := 0; i < 4; i++ {
		if _, err := c.Increment(ctx, "u1", dayA); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	n, err := c.Count(ctx, "u1", dayB)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected fresh day to read 0, got %d", n)
	}
}

func TestCounter_PerOwnerIsolation(t *testing.T) {
	c := NewCounter(newMapKV(), 5)
	ctx := context.Background()
	day := DayKey(time.Now())

	if _, err := c.Increment(ctx, "u1", day); err != nil {
		t.Fatalf("increment: %v", err)
	}
	n, err := c.Count(ctx, "u2", day)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected other owner at 0, got %d", n)
	}
}

func TestDayKey_Format(t *testing.T) {
	got := DayKey(time.Date(2024, 4, 5, 13, 0, 0, 0, time.UTC))
	if got != "Fri Apr 05 2024" {
		t.Fatalf("unexpected day key: %q", got)
	}
}

func TestNewCounter_DefaultLimit(t *testing.T) {
	c := NewCounter(newMapKV(), 0)
	if c.Limit() != DefaultDailyLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultDailyLimit, c.Limit())
	}
}
