package policy

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGuardRetriesUntilSuccess(t *testing.T) {
	g := NewGuard(NewRetryPolicy(true, 3, "constant", 1), nil)
	calls := 0
	err := g.Do(context.Background(), "registry", "instances", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestGuardGivesUpAfterMaxRetries(t *testing.T) {
	g := NewGuard(NewRetryPolicy(true, 2, "constant", 1), nil)
	want := errors.New("down")
	calls := 0
	err := g.Do(context.Background(), "registry", "instances", func(context.Context) error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 1 call plus 2 retries, got %d", calls)
	}
}

func TestGuardWithoutPolicies(t *testing.T) {
	g := NewGuard(nil, nil)
	calls := 0
	err := g.Do(context.Background(), "store", "query", func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single failing call, got calls=%d err=%v", calls, err)
	}
}

func TestGuardCircuitOpen(t *testing.T) {
	breaker := NewCircuitBreakerPolicy(true, 2, 1, time.Hour)
	g := NewGuard(nil, breaker)
	fail := func(context.Context) error { return errors.New("down") }

	_ = g.Do(context.Background(), "store", "query", fail)
	_ = g.Do(context.Background(), "store", "query", fail)

	called := false
	err := g.Do(context.Background(), "store", "query", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatalf("expected open circuit to skip the call")
	}
}

func TestGuardStopsOnContextCancel(t *testing.T) {
	g := NewGuard(NewRetryPolicy(true, 5, "constant", 1000), nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := g.Do(ctx, "registry", "instances", func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancel, got %d calls", calls)
	}
}
