package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dukahub/dukahub/internal/platform/db"
	"github.com/dukahub/dukahub/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
//
// Validation errors are 400, business-rule conflicts 409 (with correction
// figures in extras), exhausted concurrency retries 503, everything else 500.
func RespondError(w http.ResponseWriter, err error) {
	var validation *shared.Validation
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validation):
		Problem(w, http.StatusBadRequest, "Validation Failed", validation.Message)
	case errors.As(err, &fieldErrs):
		Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, db.ErrTxConflict):
		Problem(w, http.StatusServiceUnavailable, "Transaction Conflict", "the request lost a concurrency race; retry")
	default:
		if conflict, ok := shared.AsConflict(err); ok {
			ProblemWithExtras(w, http.StatusConflict, conflict.Reason, conflict.Message, conflict.Extras)
			return
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
