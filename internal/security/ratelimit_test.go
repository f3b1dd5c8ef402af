package security

import "testing"

func TestRateLimiter_PerMinute(t *testing.T) {
	rl := NewRateLimiter(2, 1000)

	if !rl.Allow("client-a", "browser.goto") {
		t.Fatal("expected first call allowed")
	}
	if !rl.Allow("client-a", "browser.goto") {
		t.Fatal("expected second call allowed")
	}
	if rl.Allow("client-a", "browser.goto") {
		t.Fatal("expected third call to be rate limited")
	}
}

func TestRateLimiter_IndependentPerOperation(t *testing.T) {
	rl := NewRateLimiter(1, 1000)

	if !rl.Allow("client-a", "browser.goto") {
		t.Fatal("expected first goto allowed")
	}
	if !rl.Allow("client-a", "browser.click") {
		t.Fatal("expected first click allowed independently of goto")
	}
}

func TestRateLimiter_IndependentPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1000)

	if !rl.Allow("client-a", "browser.goto") {
		t.Fatal("expected client-a call allowed")
	}
	if !rl.Allow("client-b", "browser.goto") {
		t.Fatal("expected client-b call allowed independently")
	}
}

func TestRateLimiter_HourBoundsMinute(t *testing.T) {
	rl := NewRateLimiter(1000, 1)

	if !rl.Allow("client-a", "browser.goto") {
		t.Fatal("expected first call allowed")
	}
	if rl.Allow("client-a", "browser.goto") {
		t.Fatal("expected second call rejected by hour window despite high minute limit")
	}
}
