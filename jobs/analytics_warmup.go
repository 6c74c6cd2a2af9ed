package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dukahub/dukahub/internal/analytics"
	"github.com/dukahub/dukahub/internal/observability"
)

// AnalyticsWarmupJob precomputes the dashboard snapshot and receivables
// report so the first morning request hits a warm cache.
type AnalyticsWarmupJob struct {
	Analytics *analytics.Service
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	clock     func() time.Time
}

func NewAnalyticsWarmupJob(svc *analytics.Service, logger *slog.Logger, metrics *observability.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: svc,
		Logger:    logger,
		Metrics:   metrics,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskAnalyticsWarmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	defer func() { j.Metrics.JobRan(TaskAnalyticsWarmup, err) }()

	var payload AnalyticsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TopDebtors <= 0 {
		payload.TopDebtors = 5
	}

	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	now := j.clock()
	if _, err = j.Analytics.Snapshot(warmCtx, now); err != nil {
		j.logger().Error("warm snapshot", slog.Any("error", err))
		return err
	}
	if _, err = j.Analytics.Receivables(warmCtx, payload.TopDebtors); err != nil {
		j.logger().Error("warm receivables", slog.Any("error", err))
		return err
	}
	j.logger().Info("analytics caches warmed", slog.Duration("took", time.Since(now)))
	return nil
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}
