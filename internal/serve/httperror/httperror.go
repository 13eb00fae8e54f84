// Package httperror maps domain errors onto the stable HTTP statuses of the
// API and renders them in the canonical {status, message} envelope. Internal
// detail stays in the logs; clients only ever see the short message.
package httperror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/escrow"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/payment"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

type HTTPError struct {
	StatusCode int    `json:"status"`
	Message    string `json:"message"`
	// Err carries the original error for logging. Never serialized.
	Err error `json:"-"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) Render(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.StatusCode)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		log.Errorf("rendering http error: %v", err)
	}
}

func NewHTTPError(statusCode int, msg string, originalErr error) *HTTPError {
	if msg == "" && originalErr != nil {
		var hErr *HTTPError
		if errors.As(originalErr, &hErr) && hErr.StatusCode == statusCode {
			return hErr
		}
	}
	return &HTTPError{
		StatusCode: statusCode,
		Message:    msg,
		Err:        originalErr,
	}
}

func BadRequest(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "The request was invalid in some way."
	}
	return NewHTTPError(http.StatusBadRequest, msg, originalErr)
}

func Unauthorized(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "Not authorized."
	}
	return NewHTTPError(http.StatusUnauthorized, msg, originalErr)
}

func Forbidden(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "You don't have permission to perform this action."
	}
	return NewHTTPError(http.StatusForbidden, msg, originalErr)
}

func NotFound(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "Resource not found."
	}
	return NewHTTPError(http.StatusNotFound, msg, originalErr)
}

func Conflict(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "The resource already exists."
	}
	return NewHTTPError(http.StatusConflict, msg, originalErr)
}

func PaymentRequired(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "Insufficient funds."
	}
	return NewHTTPError(http.StatusPaymentRequired, msg, originalErr)
}

func ServiceUnavailable(msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "A downstream provider is unavailable. Please retry shortly."
	}
	return NewHTTPError(http.StatusServiceUnavailable, msg, originalErr)
}

func InternalError(ctx context.Context, msg string, originalErr error) *HTTPError {
	if msg == "" {
		msg = "An internal error occurred while processing this request."
	}
	log.WithContext(ctx).Errorf("%s: %v", msg, originalErr)
	return NewHTTPError(http.StatusInternalServerError, msg, originalErr)
}

// FromError classifies any error coming out of the service layer. Unmatched
// errors are reported and become a 500.
func FromError(ctx context.Context, err error) *HTTPError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, data.ErrMissingInput),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, services.ErrWorkerUnavailable),
		errors.Is(err, services.ErrServiceNotActive),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrSubscriptionExpired),
		errors.Is(err, services.ErrIdentityNotVerified):
		return BadRequest(err.Error(), err)
	case errors.Is(err, services.ErrUnauthorized):
		return Forbidden("", err)
	case errors.Is(err, data.ErrRecordNotFound):
		return NotFound("", err)
	case errors.Is(err, data.ErrRecordAlreadyExists),
		errors.Is(err, services.ErrDuplicateProperty),
		errors.Is(err, services.ErrAlreadyResponded),
		errors.Is(err, services.ErrDisputeNotOpen),
		errors.Is(err, escrow.ErrAlreadyProcessed),
		errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, data.ErrInvalidStateTransition):
		return Conflict(err.Error(), err)
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrLimitExceeded):
		return PaymentRequired(err.Error(), err)
	case errors.Is(err, ledger.ErrWalletFrozen),
		errors.Is(err, ledger.ErrWalletNotActive):
		return Forbidden(err.Error(), err)
	case errors.Is(err, payment.ErrProviderUnavailable):
		return ServiceUnavailable("", err)
	case errors.Is(err, payment.ErrVerificationFailed):
		return BadRequest("Payment could not be verified.", err)
	default:
		return InternalError(ctx, "", err)
	}
}
