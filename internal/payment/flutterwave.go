package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveClient talks to the Flutterwave v3 REST API. Flutterwave uses
// major units (Naira), so amounts are converted from kobo with decimal
// arithmetic rather than floats.
type FlutterwaveClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewFlutterwaveClient(secretKey string) *FlutterwaveClient {
	return &FlutterwaveClient{
		secretKey:  secretKey,
		baseURL:    flutterwaveBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *FlutterwaveClient) Name() ProviderName { return FlutterwaveProvider }

var _ Provider = (*FlutterwaveClient)(nil)

// koboToNairaDecimal converts an exact kobo amount to a Naira decimal.
func koboToNairaDecimal(amountKobo int64) decimal.Decimal {
	return decimal.NewFromInt(amountKobo).Div(decimal.NewFromInt(100))
}

// nairaDecimalToKobo converts a provider-reported Naira amount back to kobo.
func nairaDecimalToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (c *FlutterwaveClient) InitializePayment(ctx context.Context, email string, amountKobo int64, reference string) (*InitializedPayment, error) {
	return withRetries(ctx, func() (*InitializedPayment, error) {
		payload := map[string]any{
			"tx_ref":   reference,
			"amount":   koboToNairaDecimal(amountKobo),
			"currency": "NGN",
			"customer": map[string]any{"email": email},
		}

		var result struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Data    struct {
				Link string `json:"link"`
			} `json:"data"`
		}
		if err := c.do(ctx, http.MethodPost, "/payments", payload, &result); err != nil {
			return nil, err
		}
		if result.Status != "success" {
			return nil, fmt.Errorf("initializing flutterwave payment: %s", result.Message)
		}
		return &InitializedPayment{
			AuthorizationURL: result.Data.Link,
			Reference:        reference,
		}, nil
	})
}

func (c *FlutterwaveClient) VerifyPayment(ctx context.Context, reference string) (*VerifiedPayment, error) {
	return withRetries(ctx, func() (*VerifiedPayment, error) {
		var result struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Data    struct {
				Status      string          `json:"status"`
				TxRef       string          `json:"tx_ref"`
				Amount      decimal.Decimal `json:"amount"`
				Currency    string          `json:"currency"`
				PaymentType string          `json:"payment_type"`
				CreatedAt   time.Time       `json:"created_at"`
			} `json:"data"`
		}
		path := "/transactions/verify_by_reference?tx_ref=" + reference
		if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
			return nil, err
		}
		if result.Status != "success" {
			return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, result.Message)
		}
		return &VerifiedPayment{
			Reference:  result.Data.TxRef,
			AmountKobo: nairaDecimalToKobo(result.Data.Amount),
			Currency:   result.Data.Currency,
			Paid:       result.Data.Status == "successful",
			PaidAt:     result.Data.CreatedAt,
			Channel:    result.Data.PaymentType,
		}, nil
	})
}

func (c *FlutterwaveClient) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	return withRetries(ctx, func() (*ResolvedAccount, error) {
		payload := map[string]any{
			"account_number": accountNumber,
			"account_bank":   bankCode,
		}

		var result struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Data    struct {
				AccountNumber string `json:"account_number"`
				AccountName   string `json:"account_name"`
			} `json:"data"`
		}
		if err := c.do(ctx, http.MethodPost, "/accounts/resolve", payload, &result); err != nil {
			return nil, err
		}
		if result.Status != "success" {
			return nil, fmt.Errorf("resolving flutterwave account: %s", result.Message)
		}
		return &ResolvedAccount{
			AccountNumber: result.Data.AccountNumber,
			AccountName:   result.Data.AccountName,
			BankCode:      bankCode,
		}, nil
	})
}

func (c *FlutterwaveClient) InitiateTransfer(ctx context.Context, accountNumber, bankCode string, amountKobo int64, reference, narration string) (*InitiatedTransfer, error) {
	return withRetries(ctx, func() (*InitiatedTransfer, error) {
		payload := map[string]any{
			"account_bank":   bankCode,
			"account_number": accountNumber,
			"amount":         koboToNairaDecimal(amountKobo),
			"currency":       "NGN",
			"reference":      reference,
			"narration":      narration,
		}

		var result struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Data    struct {
				Reference string `json:"reference"`
				Status    string `json:"status"`
			} `json:"data"`
		}
		if err := c.do(ctx, http.MethodPost, "/transfers", payload, &result); err != nil {
			return nil, err
		}
		if result.Status != "success" {
			return nil, fmt.Errorf("initiating flutterwave transfer: %s", result.Message)
		}
		return &InitiatedTransfer{
			Reference: result.Data.Reference,
			Status:    result.Data.Status,
		}, nil
	})
}

func (c *FlutterwaveClient) do(ctx context.Context, method, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding flutterwave request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building flutterwave request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: flutterwave responded %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("flutterwave responded %d for %s %s", resp.StatusCode, method, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding flutterwave response: %w", err)
	}
	return nil
}
