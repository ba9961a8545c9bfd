package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	lifecyclesvc "github.com/ivankudzin/kinship/internal/services/lifecycle"
)

const lockName = "lifecycle_sweep"

type Sweeper interface {
	ExpireGracePeriod(ctx context.Context) (lifecyclesvc.SweepResult, error)
}

type Locker interface {
	Acquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, token string) error
}

// Job runs the grace-expiry sweep. With a locker configured only one worker
// sweeps at a time; the others skip their turn.
type Job struct {
	sweeper Sweeper
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
}

func New(sweeper Sweeper, locker Locker, lockTTL time.Duration, logger *zap.Logger) *Job {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		sweeper: sweeper,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// Run performs one sweep. ran is false when another worker holds the lease.
func (j *Job) Run(ctx context.Context) (result lifecyclesvc.SweepResult, ran bool, err error) {
	if j.sweeper == nil {
		return lifecyclesvc.SweepResult{}, false, fmt.Errorf("sweeper is nil")
	}

	if j.locker != nil {
		token := uuid.NewString()
		acquired, err := j.locker.Acquire(ctx, lockName, token, j.lockTTL)
		if err != nil {
			return lifecyclesvc.SweepResult{}, false, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			j.logger.Debug("sweep skipped, lock held elsewhere")
			return lifecyclesvc.SweepResult{}, false, nil
		}
		defer func() {
			if err := j.locker.Release(context.WithoutCancel(ctx), lockName, token); err != nil {
				j.logger.Warn("release sweep lock", zap.Error(err))
			}
		}()
	}

	started := time.Now()
	result, err = j.sweeper.ExpireGracePeriod(ctx)
	if err != nil {
		j.logger.Error("sweep failed",
			zap.Int("scanned", result.Scanned),
			zap.Int("removed", result.Removed),
			zap.Error(err),
		)
		return result, true, err
	}

	j.logger.Info("sweep completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("removed", result.Removed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", time.Since(started)),
	)
	return result, true, nil
}

// Loop sweeps immediately and then on every tick until ctx is done. A failed
// sweep is logged and retried on the next tick.
func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	_, _, _ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _, _ = j.Run(ctx)
		}
	}
}
