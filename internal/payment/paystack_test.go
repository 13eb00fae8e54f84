package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaystackClient(t *testing.T, handler http.HandlerFunc) *PaystackClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewPaystackClient("sk_test_secret")
	client.baseURL = server.URL
	return client
}

func Test_PaystackClient_InitializePayment(t *testing.T) {
	client := newTestPaystackClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))

		fmt.Fprint(w, `{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "DEP_42"
			}
		}`)
	})

	initialized, err := client.InitializePayment(context.Background(), "buyer@example.com", 50_000_00, "DEP_42")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc123", initialized.AuthorizationURL)
	assert.Equal(t, "abc123", initialized.AccessCode)
	assert.Equal(t, "DEP_42", initialized.Reference)
}

func Test_PaystackClient_VerifyPayment(t *testing.T) {
	client := newTestPaystackClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/DEP_42", r.URL.Path)
		fmt.Fprint(w, `{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"reference": "DEP_42",
				"amount": 5000000,
				"currency": "NGN",
				"channel": "card"
			}
		}`)
	})

	verified, err := client.VerifyPayment(context.Background(), "DEP_42")
	require.NoError(t, err)
	assert.True(t, verified.Paid)
	assert.Equal(t, int64(5_000_000), verified.AmountKobo)
	assert.Equal(t, "NGN", verified.Currency)
}

func Test_PaystackClient_retries_on_server_errors(t *testing.T) {
	var calls atomic.Int32
	client := newTestPaystackClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status": true, "data": {"reference": "DEP_42", "status": "success", "amount": 100}}`)
	})

	verified, err := client.VerifyPayment(context.Background(), "DEP_42")
	require.NoError(t, err)
	assert.True(t, verified.Paid)
	assert.Equal(t, int32(3), calls.Load())
}

func Test_PaystackClient_does_not_retry_client_errors(t *testing.T) {
	var calls atomic.Int32
	client := newTestPaystackClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.VerifyPayment(context.Background(), "DEP_42")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func Test_PaystackClient_gives_up_after_three_attempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestPaystackClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.VerifyPayment(context.Background(), "DEP_42")
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func Test_PaystackClient_VerifyWebhookSignature(t *testing.T) {
	client := NewPaystackClient("sk_test_secret")
	body := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	validSignature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifyWebhookSignature(body, validSignature))
	assert.False(t, client.VerifyWebhookSignature(body, "forged"))
	assert.False(t, client.VerifyWebhookSignature([]byte(`{"event":"tampered"}`), validSignature))
}
