package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Errorf("close redis: %v", err)
		}
	})
	return rdb
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := New(rdb, nil, "test:deny:", 1, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "client")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("expected burst token %d to be granted", i)
		}
	}

	allowed, wait, err := limiter.Allow(ctx, "client")
	if err != nil {
		t.Fatalf("allow after burst: %v", err)
	}
	if allowed {
		t.Fatalf("expected denial once the burst is exhausted")
	}
	if wait <= 0 {
		t.Fatalf("expected a positive retry hint, got %v", wait)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := New(rdb, nil, "test:keys:", 1, 1)

	ctx := context.Background()
	if allowed, _, _ := limiter.Allow(ctx, "a"); !allowed {
		t.Fatalf("first token for key a should be granted")
	}
	if allowed, _, _ := limiter.Allow(ctx, "a"); allowed {
		t.Fatalf("key a should be exhausted")
	}
	if allowed, _, _ := limiter.Allow(ctx, "b"); !allowed {
		t.Fatalf("key b has its own bucket")
	}
}

func TestLimiter_AcquireBlocksUntilRefill(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := New(rdb, nil, "test:block:", 10, 1)

	ctx := context.Background()
	if err := limiter.Acquire(ctx, "client"); err != nil {
		t.Fatalf("warm acquire: %v", err)
	}

	start := time.Now()
	if err := limiter.Acquire(ctx, "client"); err != nil {
		t.Fatalf("blocked acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("expected blocking, elapsed=%v", elapsed)
	}
}

func TestLimiter_AcquireContextTimeout(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := New(rdb, nil, "test:timeout:", 1, 1)

	ctx := context.Background()
	if err := limiter.Acquire(ctx, "client"); err != nil {
		t.Fatalf("warm acquire: %v", err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	if err := limiter.Acquire(shortCtx, "client"); !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestLimiter_DisabledAlwaysAllows(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := New(rdb, nil, "test:off:", 0, 0)

	for i := 0; i < 10; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "client")
		if err != nil || !allowed {
			t.Fatalf("disabled limiter must always allow (err=%v)", err)
		}
	}
}
