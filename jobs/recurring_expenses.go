package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dukahub/dukahub/internal/expenses"
	"github.com/dukahub/dukahub/internal/observability"
)

// GenerateRecurringJob turns due recurring-expense schedules into expense
// rows. Runs are idempotent: the generator advances each schedule inside the
// same transaction that inserts the expense, and due rows are claimed with
// SKIP LOCKED, so overlapping runs cannot double-post.
type GenerateRecurringJob struct {
	Expenses *expenses.Service
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	clock    func() time.Time
}

func NewGenerateRecurringJob(svc *expenses.Service, logger *slog.Logger, metrics *observability.Metrics) *GenerateRecurringJob {
	return &GenerateRecurringJob{
		Expenses: svc,
		Logger:   logger,
		Metrics:  metrics,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskExpensesGenerateRecurring tasks.
func (j *GenerateRecurringJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Expenses == nil {
		return errors.New("generate recurring: handler not configured")
	}
	defer func() { j.Metrics.JobRan(TaskExpensesGenerateRecurring, err) }()

	var payload GenerateRecurringPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}

	generated, err := j.Expenses.GenerateDue(ctx, asOf)
	if err != nil {
		j.logger().Error("generate due recurring expenses", slog.Any("error", err))
		return err
	}
	if generated > 0 {
		j.logger().Info("generated recurring expenses",
			slog.Int("count", generated), slog.Time("as_of", asOf))
	}
	return nil
}

func (j *GenerateRecurringJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpensesGenerateRecurring))
	}
	return slog.Default().With(slog.String("job", TaskExpensesGenerateRecurring))
}
