package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dukahub/dukahub/internal/observability"
	"github.com/dukahub/dukahub/internal/shared"
)

// TaskIdempotencyCleanup prunes expired idempotency claims.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// IdempotencyCleanupJob drops idempotency keys past their retention window.
// Replays only need protection for as long as a client would retry.
type IdempotencyCleanupJob struct {
	Store     *shared.IdempotencyStore
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger, metrics *observability.Metrics) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	defer func() { j.Metrics.JobRan(TaskIdempotencyCleanup, err) }()

	if err = j.Store.Cleanup(ctx, j.Retention); err != nil {
		j.logger().Error("cleanup idempotency keys", slog.Any("error", err))
		return err
	}
	return nil
}

func (j *IdempotencyCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIdempotencyCleanup))
	}
	return slog.Default().With(slog.String("job", TaskIdempotencyCleanup))
}
