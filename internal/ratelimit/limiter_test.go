package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstThenDeny(t *testing.T) {
	l := NewLimiter(0.001, 2)

	if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("expected third request to be denied")
	}
	if !l.Allow("5.6.7.8") {
		t.Fatal("expected a different key to have its own bucket")
	}
}

func TestLimiterSweepDropsIdleVisitors(t *testing.T) {
	l := NewLimiter(1, 1)
	start := time.Now()
	l.now = func() time.Time { return start }

	l.Allow("old")
	l.now = func() time.Time { return start.Add(4 * time.Minute) }
	l.Allow("recent")

	l.now = func() time.Time { return start.Add(6 * time.Minute) }
	l.sweep()

	if got := l.size(); got != 1 {
		t.Fatalf("expected 1 visitor after sweep, got %d", got)
	}
}
