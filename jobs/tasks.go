// Package jobs runs background work over Asynq: materialising due recurring
// expenses and keeping the analytics caches warm.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue all dukahub jobs run on.
	QueueDefault = "default"
	// TaskExpensesGenerateRecurring materialises due recurring-expense runs.
	TaskExpensesGenerateRecurring = "expenses:generate_recurring"
	// TaskAnalyticsWarmup precomputes the dashboard snapshot.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// GenerateRecurringPayload sets the cutoff for a generation run. A zero AsOf
// means "now".
type GenerateRecurringPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewGenerateRecurringTask builds the recurring-expense task.
func NewGenerateRecurringTask(payload GenerateRecurringPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpensesGenerateRecurring, data), nil
}

// AnalyticsWarmupPayload selects how many debtors the warmed receivables
// report carries.
type AnalyticsWarmupPayload struct {
	TopDebtors int `json:"top_debtors,omitempty"`
}

// NewAnalyticsWarmupTask builds the warmup task.
func NewAnalyticsWarmupTask(payload AnalyticsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}
