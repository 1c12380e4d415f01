// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c := New(time.Minute)

	c.Set("district:11680", "gangnam", time.Minute)

	got, ok := c.Get("district:11680")
	if !ok {
		t.Fatal("expected hit for district:11680")
	}
	if got != "gangnam" {
		t.Errorf("expected gangnam, got %v", got)
	}

	if _, ok := c.Get("district:99999"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute)

	c.Set("k", 1, 10*time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be removed, len=%d", c.Len())
	}
}

func TestCache_GetOrCompute_HitSkipsCompute(t *testing.T) {
	c := New(time.Minute)
	var calls atomic.Int32

	compute := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return 42, nil
	}

	v, cached, err := c.GetOrCompute(context.Background(), "invest:score:a", time.Minute, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached {
		t.Error("first call should not report cached")
	}
	if v != 42 {
		t.Errorf("expected 42, got %v", v)
	}

	v, cached, err = c.GetOrCompute(context.Background(), "invest:score:a", time.Minute, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cached {
		t.Error("second call should be served from cache")
	}
	if v != 42 {
		t.Errorf("expected 42, got %v", v)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 compute invocation, got %d", calls.Load())
	}
}

func TestCache_GetOrCompute_SingleFlight(t *testing.T) {
	c := New(time.Minute)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		close(started)
		<-release
		return "result", nil
	}

	const waiters = 8
	results := make([]interface{}, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, errs[0] = c.GetOrCompute(context.Background(), "leaderboard:top", time.Minute, compute)
	}()

	<-started
	for i := 1; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrCompute(context.Background(), "leaderboard:top", time.Minute, func(ctx context.Context) (interface{}, error) {
				calls.Add(1)
				return "result", nil
			})
		}(i)
	}

	// Give the late callers time to join the in-flight computation.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 compute invocation, got %d", calls.Load())
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d got error: %v", i, errs[i])
		}
		if results[i] != "result" {
			t.Errorf("waiter %d got %v, want result", i, results[i])
		}
	}
}

func TestCache_GetOrCompute_ExpiryRecomputesOnce(t *testing.T) {
	c := New(time.Minute)
	var calls atomic.Int32

	compute := func(ctx context.Context) (interface{}, error) {
		return int(calls.Add(1)), nil
	}

	v1, _, err := c.GetOrCompute(context.Background(), "k", 10*time.Millisecond, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	v2, cached, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached {
		t.Error("expected recomputation after expiry")
	}
	if v1 == v2 {
		t.Errorf("expected a fresh value after expiry, got %v twice", v1)
	}
	if calls.Load() != 2 {
		t.Errorf("expected exactly 2 compute invocations, got %d", calls.Load())
	}
}

func TestCache_GetOrCompute_ErrorNotCached(t *testing.T) {
	c := New(time.Minute)
	var calls atomic.Int32
	boom := errors.New("upstream down")

	_, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}

	v, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %v", v)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 compute invocations (error not cached), got %d", calls.Load())
	}
}

func TestCache_GetOrCompute_WaiterCancellation(t *testing.T) {
	c := New(time.Minute)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	var firstVal interface{}
	var firstErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		firstVal, _, firstErr = c.GetOrCompute(context.Background(), "k", time.Minute, func(ctx context.Context) (interface{}, error) {
			calls.Add(1)
			close(started)
			<-release
			return "shared", nil
		})
	}()

	<-started
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := c.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (interface{}, error) {
			calls.Add(1)
			return "shared", nil
		})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled waiter should get context.Canceled, got %v", err)
	}

	// The shared computation must complete for the remaining waiter.
	close(release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("surviving waiter got error: %v", firstErr)
	}
	if firstVal != "shared" {
		t.Errorf("surviving waiter got %v, want shared", firstVal)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 compute invocation, got %d", calls.Load())
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New(time.Minute)

	c.Set("district:a", 1, time.Minute)
	c.Invalidate("district:a")
	if _, ok := c.Get("district:a"); ok {
		t.Error("expected invalidated key to miss")
	}

	// No-op for unknown keys.
	c.Invalidate("district:unknown")
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New(time.Minute)

	c.Set("district:a", 1, time.Minute)
	c.Set("district:b", 2, time.Minute)
	c.Set("invest:score:a", 3, time.Minute)

	removed := c.InvalidatePrefix("district:")
	if removed != 2 {
		t.Errorf("expected 2 removals, got %d", removed)
	}
	if _, ok := c.Get("district:a"); ok {
		t.Error("district:a should be gone")
	}
	if _, ok := c.Get("invest:score:a"); !ok {
		t.Error("invest:score:a should survive")
	}
}

func TestCache_Stats(t *testing.T) {
	c := New(time.Minute)

	c.Set("k", 1, time.Minute)
	c.Get("k")
	c.Get("missing")

	stats := c.GetStats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if rate := c.HitRate(); rate != 50.0 {
		t.Errorf("expected 50%% hit rate, got %.1f", rate)
	}
}

func TestNamespace(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"district:11680", "district"},
		{"invest:score:a", "invest"},
		{"plain", "plain"},
		{":odd", ":odd"},
	}
	for _, tt := range tests {
		if got := Namespace(tt.key); got != tt.want {
			t.Errorf("Namespace(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestKey_StableAndNamespaced(t *testing.T) {
	k1 := Key("district", map[string]string{"code": "11680"})
	k2 := Key("district", map[string]string{"code": "11680"})
	k3 := Key("district", map[string]string{"code": "11740"})

	if k1 != k2 {
		t.Error("identical params must produce identical keys")
	}
	if k1 == k3 {
		t.Error("different params must produce different keys")
	}
	if Namespace(k1) != "district" {
		t.Errorf("expected district namespace, got %s", Namespace(k1))
	}
}
