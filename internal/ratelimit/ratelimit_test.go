package ratelimit

import (
	"testing"
	"time"
)

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	current := start
	return func() time.Time { return current },
		func(d time.Duration) { current = current.Add(d) }
}

func TestAllowsUpToLimit(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		if !l.CanProceed("bcra", 5, time.Minute) {
			t.Fatalf("request %d denied below limit", i+1)
		}
	}
	if l.CanProceed("bcra", 5, time.Minute) {
		t.Fatal("request above limit admitted")
	}
}

func TestWindowReset(t *testing.T) {
	l := New()
	now, advance := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	l.SetClock(now)

	for i := 0; i < 3; i++ {
		l.CanProceed("coingecko", 3, time.Minute)
	}
	if l.CanProceed("coingecko", 3, time.Minute) {
		t.Fatal("exhausted window admitted a request")
	}

	advance(61 * time.Second)
	if !l.CanProceed("coingecko", 3, time.Minute) {
		t.Fatal("request denied after window reset")
	}
	if got := l.RemainingRequests("coingecko", 3); got != 2 {
		t.Errorf("expected 2 remaining after reset, got %d", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 2; i++ {
		l.CanProceed("dolarapi", 2, time.Minute)
	}
	if l.CanProceed("dolarapi", 2, time.Minute) {
		t.Fatal("dolarapi window should be exhausted")
	}
	if !l.CanProceed("yahoo", 2, time.Minute) {
		t.Fatal("separate key must have its own window")
	}
}

func TestRemainingRequests(t *testing.T) {
	l := New()
	if got := l.RemainingRequests("fresh", 10); got != 10 {
		t.Errorf("expected full allowance for unseen key, got %d", got)
	}

	l.CanProceed("fresh", 10, time.Minute)
	l.CanProceed("fresh", 10, time.Minute)
	if got := l.RemainingRequests("fresh", 10); got != 8 {
		t.Errorf("expected 8 remaining, got %d", got)
	}
}

func TestResetTime(t *testing.T) {
	l := New()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now, _ := testClock(start)
	l.SetClock(now)

	if _, ok := l.ResetTime("unseen"); ok {
		t.Error("expected no reset time for unseen key")
	}

	l.CanProceed("bcra", 5, time.Minute)
	resetAt, ok := l.ResetTime("bcra")
	if !ok {
		t.Fatal("expected active window")
	}
	if want := start.Add(time.Minute); !resetAt.Equal(want) {
		t.Errorf("expected reset at %s, got %s", want, resetAt)
	}
}
