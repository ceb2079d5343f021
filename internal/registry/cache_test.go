package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

func countingRegistry(calls *int32, agents []models.AgentSnapshot, err error) Func {
	return func(context.Context, string, time.Time) ([]models.AgentSnapshot, error) {
		atomic.AddInt32(calls, 1)
		if err != nil {
			return nil, err
		}
		return cloneSnapshots(agents), nil
	}
}

func TestCacheHitsWithinTTL(t *testing.T) {
	var calls int32
	agents := []models.AgentSnapshot{agent("api-1", "api", "host-a", models.LifecycleRunning, base)}
	c := NewCache(countingRegistry(&calls, agents, nil), time.Minute)
	now := base
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got, err := c.InstancesFor(context.Background(), "api", base)
		if err != nil {
			t.Fatalf("InstancesFor error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 agent, got %d", len(got))
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}

	// A different asOf is a different key
	if _, err := c.InstancesFor(context.Background(), "api", base.Add(time.Minute)); err != nil {
		t.Fatalf("InstancesFor error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", calls)
	}

	now = base.Add(2 * time.Minute)
	if c.Len() != 0 {
		t.Fatalf("expected entries to expire, got %d", c.Len())
	}
	c.Purge()
	if _, err := c.InstancesFor(context.Background(), "api", base); err != nil {
		t.Fatalf("InstancesFor error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected reload after expiry, got %d calls", calls)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	var calls int32
	agents := []models.AgentSnapshot{agent("api-1", "api", "host-a", models.LifecycleRunning, base)}
	c := NewCache(countingRegistry(&calls, agents, nil), time.Minute)

	first, _ := c.InstancesFor(context.Background(), "api", base)
	first[0].Hostname = "mutated"
	second, _ := c.InstancesFor(context.Background(), "api", base)
	if second[0].Hostname != "host-a" {
		t.Fatalf("expected cached value to be unaffected, got %s", second[0].Hostname)
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	var calls int32
	want := errors.New("registry down")
	c := NewCache(countingRegistry(&calls, nil, want), time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.InstancesFor(context.Background(), "api", base); !errors.Is(err, want) {
			t.Fatalf("expected backend error, got %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected errors to bypass the cache, got %d calls", calls)
	}
}

func TestCacheDisabled(t *testing.T) {
	var calls int32
	c := NewCache(countingRegistry(&calls, nil, nil), 0)
	_, _ = c.InstancesFor(context.Background(), "api", base)
	_, _ = c.InstancesFor(context.Background(), "api", base)
	if calls != 2 {
		t.Fatalf("expected every call to reach the backend, got %d", calls)
	}
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	backend := Func(func(context.Context, string, time.Time) ([]models.AgentSnapshot, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []models.AgentSnapshot{agent("api-1", "api", "host-a", models.LifecycleRunning, base)}, nil
	})
	c := NewCache(backend, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.InstancesFor(context.Background(), "api", base); err != nil {
				t.Errorf("InstancesFor error: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls < 1 || calls > 8 {
		t.Fatalf("unexpected backend call count %d", calls)
	}
	// Once filled, the entry serves every later caller
	before := atomic.LoadInt32(&calls)
	_, _ = c.InstancesFor(context.Background(), "api", base)
	if atomic.LoadInt32(&calls) != before {
		t.Fatalf("expected cached result after concurrent fill")
	}
}

func TestCacheLoadSurvivesCancelledCaller(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backend := Func(func(ctx context.Context, _ string, _ time.Time) ([]models.AgentSnapshot, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		atomic.AddInt32(&calls, 1)
		return []models.AgentSnapshot{agent("api-1", "api", "host-a", models.LifecycleRunning, base)}, nil
	})
	c := NewCache(backend, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.InstancesFor(ctx, "api", base)
		firstErr <- err
	}()

	<-started
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to get context.Canceled, got %v", err)
	}

	type result struct {
		agents []models.AgentSnapshot
		err    error
	}
	second := make(chan result, 1)
	go func() {
		agents, err := c.InstancesFor(context.Background(), "api", base)
		second <- result{agents, err}
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	res := <-second
	if res.err != nil {
		t.Fatalf("expected the waiting caller to succeed, got %v", res.err)
	}
	if len(res.agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(res.agents))
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one completed backend load, got %d", got)
	}
}

func TestCacheLoadTimeout(t *testing.T) {
	backend := Func(func(ctx context.Context, _ string, _ time.Time) ([]models.AgentSnapshot, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := NewCache(backend, time.Minute, WithLoadTimeout(20*time.Millisecond))

	_, err := c.InstancesFor(context.Background(), "api", base)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the load to time out, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected no entry after a failed load, got %d", c.Len())
	}
}
