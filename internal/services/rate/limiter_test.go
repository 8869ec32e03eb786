package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/infopay/backend/internal/repo/redis"
)

func TestLimiterBlocksOn10SecondWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 100, 2)

	ctx := context.Background()
	key := "a@b.com"

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.AllowCheckout(ctx, key)
		if err != nil {
			t.Fatalf("allow checkout #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.AllowCheckout(ctx, key)
	if err != nil {
		t.Fatalf("allow checkout #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on third attempt in 10s window")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after, got %d", retryAfter)
	}

	mr.FastForward(11 * time.Second)

	retryAfter, allowed, err = limiter.AllowCheckout(ctx, key)
	if err != nil {
		t.Fatalf("allow checkout after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("expected limiter reset after window: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterBlocksOnMinuteWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 3, 100)

	ctx := context.Background()
	key := "b@c.com"

	for i := 0; i < 3; i++ {
		if _, allowed, err := limiter.AllowCheckout(ctx, key); err != nil || !allowed {
			t.Fatalf("attempt #%d should be allowed: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	retryAfter, allowed, err := limiter.AllowCheckout(ctx, key)
	if err != nil {
		t.Fatalf("allow checkout #4: %v", err)
	}
	if allowed {
		t.Fatalf("expected block on fourth attempt in a minute")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Fatalf("retry_after out of range: %d", retryAfter)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 1, 1)

	ctx := context.Background()

	if _, allowed, err := limiter.AllowCheckout(ctx, "x@y.com"); err != nil || !allowed {
		t.Fatalf("first key should be allowed: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowCheckout(ctx, "z@y.com"); err != nil || !allowed {
		t.Fatalf("second key should be allowed: allowed=%v err=%v", allowed, err)
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}
