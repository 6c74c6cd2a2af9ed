package shared

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// Conflict reason codes surfaced to API clients.
const (
	ReasonInsufficientStock      = "insufficient_stock"
	ReasonCreditLimitExceeded    = "credit_limit_exceeded"
	ReasonExceedsAmountDue       = "exceeds_amount_due"
	ReasonAlreadyReversed        = "already_reversed"
	ReasonCannotReverseAReversal = "cannot_reverse_a_reversal"
	ReasonExceedsReturnable      = "exceeds_returnable_quantity"
	ReasonNotAnInvoice           = "not_an_invoice"
	ReasonLocationInUse          = "location_in_use"
	ReasonBalanceOutstanding     = "balance_outstanding"
	ReasonStockReferenced        = "stock_referenced"
)

// Validation is a malformed or policy-violating request, rejected before any
// write. Safe to retry after correction.
type Validation struct {
	Message string
	wrapped error
}

func (e *Validation) Error() string { return e.Message }

// Unwrap exposes a wrapped sentinel for errors.Is checks.
func (e *Validation) Unwrap() error { return e.wrapped }

// NewValidation builds a Validation error.
func NewValidation(format string, args ...any) error {
	return &Validation{Message: fmt.Sprintf(format, args...)}
}

// WrapValidation marks an existing error as a validation rejection.
func WrapValidation(err error) error {
	return &Validation{Message: err.Error(), wrapped: err}
}

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool {
	var v *Validation
	return errors.As(err, &v)
}

// Conflict is a business-rule rejection. Extras carry the figures the caller
// needs to correct the request (available stock, available credit, remaining
// amount due).
type Conflict struct {
	Reason  string
	Message string
	Extras  map[string]any
}

func (e *Conflict) Error() string { return e.Message }

// NewConflict builds a Conflict error with the given reason code.
func NewConflict(reason, message string, extras map[string]any) error {
	return &Conflict{Reason: reason, Message: message, Extras: extras}
}

// IsConflict reports whether err is a Conflict with the given reason.
func IsConflict(err error, reason string) bool {
	var c *Conflict
	if !errors.As(err, &c) {
		return false
	}
	return c.Reason == reason
}

// AsConflict unwraps a Conflict error when present.
func AsConflict(err error) (*Conflict, bool) {
	var c *Conflict
	ok := errors.As(err, &c)
	return c, ok
}
