package telemetry

import (
	"testing"
	"time"
)

func TestSubscribeLimiterAllowsUpToLimit(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	limiter := newSubscribeLimiter(time.Second, 2, clock)

	if !limiter.allow() {
		t.Fatal("expected first attempt to be allowed")
	}
	if !limiter.allow() {
		t.Fatal("expected second attempt to be allowed")
	}
	if limiter.allow() {
		t.Fatal("expected third attempt within the window to be rejected")
	}

	now = now.Add(2 * time.Second)
	if !limiter.allow() {
		t.Fatal("expected attempt after the window elapsed to be allowed")
	}
}

func TestSubscribeLimiterDisabledWhenLimitIsZero(t *testing.T) {
	limiter := newSubscribeLimiter(0, 0, nil)
	for i := 0; i < 100; i++ {
		if !limiter.allow() {
			t.Fatal("disabled limiter should always allow")
		}
	}
}
