package resilience

import (
	"testing"
	"time"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := NewBreaker(4, 0.5, time.Minute)

	for i := 0; i < 2; i++ {
		b.Report(true)
	}
	for i := 0; i < 2; i++ {
		b.Report(false)
	}

	if b.Allow() {
		t.Fatal("breaker should be open after hitting the failure ratio")
	}
}

func TestBreakerStaysClosedBelowMinimum(t *testing.T) {
	b := NewBreaker(10, 0.5, time.Minute)
	for i := 0; i < 5; i++ {
		b.Report(false)
	}
	if !b.Allow() {
		t.Fatal("breaker must not open before minRequests observations")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, 0.5, 10*time.Millisecond)
	b.Report(false)
	if b.Allow() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should probe after the cool-off period")
	}
	b.Report(true)
	if !b.Allow() {
		t.Fatal("breaker should close after a successful probe")
	}
}

func TestBreakerHalfOpenReopens(t *testing.T) {
	b := NewBreaker(1, 0.5, 10*time.Millisecond)
	b.Report(false)
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should probe after the cool-off period")
	}
	b.Report(false)
	if b.Allow() {
		t.Fatal("breaker should reopen after a failed probe")
	}
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	if got := Backoff(base, 1, 0); got != base {
		t.Fatalf("Backoff attempt 1 = %v, want %v", got, base)
	}
	if got := Backoff(base, 3, 0); got != 4*base {
		t.Fatalf("Backoff attempt 3 = %v, want %v", got, 4*base)
	}

	// jitter stays within the configured fraction
	for i := 0; i < 100; i++ {
		got := Backoff(base, 2, 0.2)
		lo, hi := 160*time.Millisecond, 240*time.Millisecond
		if got < lo || got > hi {
			t.Fatalf("Backoff with jitter = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}
