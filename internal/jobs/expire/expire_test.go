package expire

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeExpirer struct {
	orders     []fakeOrder
	lastCutoff time.Time
	err        error
}

type fakeOrder struct {
	Status    string
	CreatedAt time.Time
}

func (f *fakeExpirer) ExpirePendingOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.lastCutoff = cutoff

	var affected int64
	for i := range f.orders {
		order := &f.orders[i]
		if order.Status == "pending" && order.CreatedAt.Before(cutoff) {
			order.Status = "expired"
			affected++
		}
	}
	return affected, nil
}

func TestRunExpiresOnlyStalePendingOrders(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	expirer := &fakeExpirer{orders: []fakeOrder{
		{Status: "pending", CreatedAt: now.Add(-25 * time.Hour)},
		{Status: "pending", CreatedAt: now.Add(-23 * time.Hour)},
		{Status: "approved", CreatedAt: now.Add(-48 * time.Hour)},
	}}

	job := New(expirer, 24*time.Hour, zap.NewNop())
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run expire job: %v", err)
	}

	if got := expirer.orders[0].Status; got != "expired" {
		t.Fatalf("stale pending order status = %q, want expired", got)
	}
	if got := expirer.orders[1].Status; got != "pending" {
		t.Fatalf("fresh pending order status = %q, want pending", got)
	}
	if got := expirer.orders[2].Status; got != "approved" {
		t.Fatalf("approved order status = %q, want approved untouched", got)
	}

	wantCutoff := now.Add(-24 * time.Hour)
	if !expirer.lastCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", expirer.lastCutoff, wantCutoff)
	}
}

func TestRunZeroTTLFallsBackToDefault(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	expirer := &fakeExpirer{}
	job := New(expirer, 0, zap.NewNop())
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run expire job: %v", err)
	}

	wantCutoff := now.Add(-defaultPendingTTL)
	if !expirer.lastCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", expirer.lastCutoff, wantCutoff)
	}
}

func TestRunPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	job := New(&fakeExpirer{err: storeErr}, time.Hour, zap.NewNop())

	if err := job.Run(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped %v", err, storeErr)
	}
}

func TestRunWithoutStoreIsNoop(t *testing.T) {
	job := New(nil, time.Hour, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run without store: %v", err)
	}
}
