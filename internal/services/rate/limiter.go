package rate

import (
	"context"
	"fmt"
	"time"
)

const (
	checkoutMinuteWindow = time.Minute
	checkout10SecWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter throttles checkout attempts per buyer key (normalized email) with
// two stacked sliding windows, so a stuck client retry loop cannot flood
// the gateway with frame-token requests.
type Limiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if per10Sec < 0 {
		per10Sec = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		per10Sec:  per10Sec,
	}
}

func (l *Limiter) AllowCheckout(ctx context.Context, key string) (int64, bool, error) {
	if key == "" {
		return 0, false, fmt.Errorf("rate key is required")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, minuteKey(key), checkoutMinuteWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.per10Sec > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, tenSecKey(key), checkout10SecWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.per10Sec) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

func minuteKey(key string) string {
	return "checkout:rate:m:" + key
}

func tenSecKey(key string) string {
	return "checkout:rate:10s:" + key
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
