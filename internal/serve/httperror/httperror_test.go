package httperror

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/payment"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

func Test_HTTPError_Render(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest("Amount must be positive.", nil).Render(rec)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"status": 400, "message": "Amount must be positive."}`, rec.Body.String())
}

func Test_FromError(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		err        error
		wantStatus int
	}{
		{services.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("wrapping: %w", services.ErrInvalidInput), http.StatusBadRequest},
		{data.ErrMissingInput, http.StatusBadRequest},
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{payment.ErrVerificationFailed, http.StatusBadRequest},
		{services.ErrUnauthorized, http.StatusForbidden},
		{ledger.ErrWalletFrozen, http.StatusForbidden},
		{ledger.ErrWalletNotActive, http.StatusForbidden},
		{data.ErrRecordNotFound, http.StatusNotFound},
		{data.ErrRecordAlreadyExists, http.StatusConflict},
		{data.ErrInvalidStateTransition, http.StatusConflict},
		{services.ErrDuplicateProperty, http.StatusConflict},
		{services.ErrAlreadyResponded, http.StatusConflict},
		{services.ErrDisputeNotOpen, http.StatusConflict},
		{ledger.ErrDuplicateReference, http.StatusConflict},
		{ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{ledger.ErrLimitExceeded, http.StatusPaymentRequired},
		{payment.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("database on fire"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			httpErr := FromError(ctx, tc.err)
			require.Equal(t, tc.wantStatus, httpErr.StatusCode)
		})
	}

	t.Run("internal errors do not leak details", func(t *testing.T) {
		httpErr := FromError(ctx, fmt.Errorf("pq: secret table missing"))
		require.NotContains(t, httpErr.Message, "secret table")
	})
}
