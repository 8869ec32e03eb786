package expire

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultPendingTTL = 24 * time.Hour

type PendingExpirer interface {
	ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job reclaims orders stuck in pending because the buyer abandoned the
// payment frame or the gateway callback never arrived. Expired orders free
// up limited-stock products counted by approved sales only, so the sweep is
// bookkeeping rather than correctness; a late callback for an expired order
// is simply ignored by the conditional status update.
type Job struct {
	orders     PendingExpirer
	pendingTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func New(orders PendingExpirer, pendingTTL time.Duration, logger *zap.Logger) *Job {
	if pendingTTL <= 0 {
		pendingTTL = defaultPendingTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		orders:     orders,
		pendingTTL: pendingTTL,
		now:        time.Now,
		logger:     logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.orders == nil {
		return nil
	}

	cutoff := j.now().UTC().Add(-j.pendingTTL)
	expired, err := j.orders.ExpirePendingOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	if expired > 0 {
		j.logger.Info("expired stale pending orders", zap.Int64("expired", expired))
	}

	return nil
}
