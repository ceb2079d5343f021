package utils

import (
	"sync"
	"testing"
	"time"
)

func TestRandSourceFloat64(t *testing.T) {
	rs := NewRandSource(42)
	for i := 0; i < 100; i++ {
		v := rs.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64 out of range: %f", v)
		}
	}
}

func TestDeterministicBehavior(t *testing.T) {
	a := NewRandSource(7)
	b := NewRandSource(7)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("Expected identical sequences for identical seeds")
		}
	}
}

func TestJitter(t *testing.T) {
	rs := NewRandSource(1)
	base := time.Second

	if got := rs.Jitter(base, 0); got != base {
		t.Errorf("Expected no jitter, got %v", got)
	}

	for i := 0; i < 100; i++ {
		got := rs.Jitter(base, 0.2)
		if got < 800*time.Millisecond || got >= 1200*time.Millisecond {
			t.Fatalf("Jitter out of range: %v", got)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	rs := NewRandSource(3)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = rs.Jitter(time.Millisecond, 0.5)
			}
		}()
	}
	wg.Wait()
}
