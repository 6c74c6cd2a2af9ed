package expenses

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/shared"
)

// MaxOccurrences caps how many expenses one schedule may generate.
const MaxOccurrences = 12

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	CreateCategory(ctx context.Context, name string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetExpense(ctx context.Context, id int64) (Expense, error)
	ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, error)
	ListRecurring(ctx context.Context, activeOnly bool) ([]RecurringExpense, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages expenses, categories, and recurring schedules.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateCategory adds an expense category.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	if name == "" {
		return Category{}, shared.NewValidation("category name required")
	}
	return s.repo.CreateCategory(ctx, name)
}

// Categories lists all categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// Create records an expense, optionally with a payment taken immediately.
func (s *Service) Create(ctx context.Context, input ExpenseInput) (Expense, error) {
	if err := validateExpenseInput(input); err != nil {
		return Expense{}, err
	}

	var expense Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		expense, err = createExpense(ctx, store, input, nil)
		return err
	})
	if err != nil {
		return Expense{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "expenses:create",
			Entity:   "expense",
			EntityID: fmt.Sprintf("%d", expense.ID),
			Meta:     map[string]any{"amount": expense.Amount},
		})
	}
	return expense, nil
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

// List returns expenses matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	return s.repo.ListExpenses(ctx, filter)
}

// CreateRecurring registers a schedule. The schedule is bounded twice: at
// most MaxOccurrences expenses, and the last occurrence must fall within one
// year of the start date.
func (s *Service) CreateRecurring(ctx context.Context, input RecurringInput) (RecurringExpense, error) {
	if input.CategoryID == 0 {
		return RecurringExpense{}, shared.NewValidation("category required")
	}
	if !input.Amount.IsPositive() {
		return RecurringExpense{}, shared.NewValidation("amount must be positive")
	}
	if input.Frequency != FrequencyWeekly && input.Frequency != FrequencyMonthly {
		return RecurringExpense{}, shared.NewValidation("frequency must be weekly or monthly")
	}
	if input.Occurrences < 1 || input.Occurrences > MaxOccurrences {
		return RecurringExpense{}, shared.NewValidation("occurrences must be between 1 and %d", MaxOccurrences)
	}
	if input.StartDate.IsZero() {
		return RecurringExpense{}, shared.NewValidation("start date required")
	}
	if last := lastRun(input.StartDate, input.Frequency, input.Occurrences); last.After(input.StartDate.AddDate(1, 0, 0)) {
		return RecurringExpense{}, shared.NewValidation("schedule must end within one year of its start")
	}

	schedule := RecurringExpense{
		CategoryID:  input.CategoryID,
		Description: input.Description,
		Amount:      input.Amount,
		Frequency:   input.Frequency,
		StartDate:   input.StartDate,
		Occurrences: input.Occurrences,
		NextRunAt:   input.StartDate,
		Active:      true,
		CreatedBy:   input.ActorID,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		schedule.ID, err = store.InsertRecurring(ctx, schedule)
		return err
	})
	if err != nil {
		return RecurringExpense{}, err
	}
	return schedule, nil
}

// Recurring lists schedules.
func (s *Service) Recurring(ctx context.Context, activeOnly bool) ([]RecurringExpense, error) {
	return s.repo.ListRecurring(ctx, activeOnly)
}

// GenerateDue materializes expenses for every schedule whose next run is at
// or before now, advancing or retiring each schedule. It returns how many
// expenses were created. The worker calls this periodically; schedules are
// row-locked so overlapping runs cannot double-generate.
func (s *Service) GenerateDue(ctx context.Context, now time.Time) (int, error) {
	generated := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		due, err := store.ListDueRecurringForUpdate(ctx, now)
		if err != nil {
			return err
		}
		for _, schedule := range due {
			for schedule.Active && !schedule.NextRunAt.After(now) {
				scheduleID := schedule.ID
				_, err := createExpense(ctx, store, ExpenseInput{
					CategoryID:  schedule.CategoryID,
					Description: schedule.Description,
					Amount:      schedule.Amount,
					ExpenseDate: schedule.NextRunAt,
					ActorID:     schedule.CreatedBy,
				}, &scheduleID)
				if err != nil {
					return err
				}
				generated++
				schedule.Generated++
				schedule.NextRunAt = schedule.Frequency.advance(schedule.NextRunAt)
				if schedule.Generated >= schedule.Occurrences {
					schedule.Active = false
				}
			}
			if err := store.UpdateRecurringProgress(ctx, schedule); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return generated, nil
}

func createExpense(ctx context.Context, store TxStore, input ExpenseInput, recurringID *int64) (Expense, error) {
	date := input.ExpenseDate
	if date.IsZero() {
		date = time.Now().UTC()
	}
	expense := Expense{
		CategoryID:    input.CategoryID,
		Description:   input.Description,
		Amount:        input.Amount,
		AmountPaid:    input.AmountPaid,
		PaymentStatus: billing.DeriveStatus(input.Amount, input.AmountPaid),
		ExpenseDate:   date,
		RecurringID:   recurringID,
		CreatedBy:     input.ActorID,
		CreatedAt:     time.Now().UTC(),
	}
	var err error
	expense.ID, err = store.InsertExpense(ctx, expense)
	if err != nil {
		return Expense{}, err
	}

	if input.AmountPaid.IsPositive() {
		method := input.PaymentMethod
		if method == "" {
			method = billing.MethodCash
		}
		_, err = store.InsertExpensePayment(ctx, billing.Payment{
			Kind:            billing.KindExpense,
			BillableID:      expense.ID,
			Amount:          input.AmountPaid,
			Method:          method,
			ReferenceNumber: input.ReferenceNumber,
			Receipt:         uuid.NewString(),
			Date:            date,
			Note:            "paid on entry",
			CreatedBy:       input.ActorID,
			CreatedAt:       time.Now().UTC(),
		})
		if err != nil {
			return Expense{}, err
		}
	}
	return expense, nil
}

func validateExpenseInput(input ExpenseInput) error {
	if input.CategoryID == 0 {
		return shared.NewValidation("category required")
	}
	if !input.Amount.IsPositive() {
		return shared.NewValidation("amount must be positive")
	}
	if input.AmountPaid.IsNegative() {
		return shared.NewValidation("amount paid must be >= 0")
	}
	if input.AmountPaid.GreaterThan(input.Amount) {
		return shared.NewValidation("amount paid exceeds expense amount")
	}
	if input.AmountPaid.IsPositive() {
		method := input.PaymentMethod
		if method != "" && !billing.ValidMethod(method) {
			return shared.NewValidation("unknown payment method %q", method)
		}
		if method != "" && method != billing.MethodCash && input.ReferenceNumber == "" {
			return shared.NewValidation("%s payments require a reference number", method)
		}
		if method == billing.MethodCash && input.ReferenceNumber != "" {
			return shared.NewValidation("cash payments must not carry a reference number")
		}
	}
	return nil
}
