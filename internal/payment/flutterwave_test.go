package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlutterwaveClient(t *testing.T, handler http.HandlerFunc) *FlutterwaveClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewFlutterwaveClient("FLWSECK_TEST-secret")
	client.baseURL = server.URL
	return client
}

func Test_FlutterwaveClient_InitializePayment_sends_major_units(t *testing.T) {
	client := newTestFlutterwaveClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)

		var payload map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		// 12,345 kobo must cross the wire as exactly 123.45 Naira.
		assert.Equal(t, `"123.45"`, string(payload["amount"]))

		fmt.Fprint(w, `{"status": "success", "data": {"link": "https://checkout.flutterwave.com/pay/xyz"}}`)
	})

	initialized, err := client.InitializePayment(context.Background(), "buyer@example.com", 12_345, "TX_9")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.com/pay/xyz", initialized.AuthorizationURL)
	assert.Equal(t, "TX_9", initialized.Reference)
}

func Test_FlutterwaveClient_VerifyPayment_converts_back_to_kobo(t *testing.T) {
	client := newTestFlutterwaveClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		assert.Equal(t, "TX_9", r.URL.Query().Get("tx_ref"))
		fmt.Fprint(w, `{
			"status": "success",
			"data": {"status": "successful", "tx_ref": "TX_9", "amount": 123.45, "currency": "NGN", "payment_type": "card"}
		}`)
	})

	verified, err := client.VerifyPayment(context.Background(), "TX_9")
	require.NoError(t, err)
	assert.True(t, verified.Paid)
	assert.Equal(t, int64(12_345), verified.AmountKobo)
}

func Test_kobo_decimal_round_trip(t *testing.T) {
	amounts := []int64{0, 1, 99, 100, 12_345, 10_000_000, 9_999_999_999}
	for _, kobo := range amounts {
		assert.Equal(t, kobo, nairaDecimalToKobo(koboToNairaDecimal(kobo)), "kobo=%d", kobo)
	}
	assert.True(t, koboToNairaDecimal(12_345).Equal(decimal.RequireFromString("123.45")))
}
