package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const paystackBaseURL = "https://api.paystack.co"

// PaystackClient talks to the Paystack REST API. Paystack amounts are
// already in kobo, so no unit conversion happens here.
type PaystackClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewPaystackClient(secretKey string) *PaystackClient {
	return &PaystackClient{
		secretKey:  secretKey,
		baseURL:    paystackBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *PaystackClient) Name() ProviderName { return PaystackProvider }

var _ Provider = (*PaystackClient)(nil)

func (c *PaystackClient) InitializePayment(ctx context.Context, email string, amountKobo int64, reference string) (*InitializedPayment, error) {
	return withRetries(ctx, func() (*InitializedPayment, error) {
		payload := map[string]any{
			"email":     email,
			"amount":    amountKobo,
			"reference": reference,
			"currency":  "NGN",
		}

		var result struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
			Data    struct {
				AuthorizationURL string `json:"authorization_url"`
				AccessCode       string `json:"access_code"`
				Reference        string `json:"reference"`
			} `json:"data"`
		}
		if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &result); err != nil {
			return nil, err
		}
		if !result.Status {
			return nil, fmt.Errorf("initializing paystack payment: %s", result.Message)
		}
		return &InitializedPayment{
			AuthorizationURL: result.Data.AuthorizationURL,
			AccessCode:       result.Data.AccessCode,
			Reference:        result.Data.Reference,
		}, nil
	})
}

func (c *PaystackClient) VerifyPayment(ctx context.Context, reference string) (*VerifiedPayment, error) {
	return withRetries(ctx, func() (*VerifiedPayment, error) {
		var result struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
			Data    struct {
				Status    string    `json:"status"`
				Reference string    `json:"reference"`
				Amount    int64     `json:"amount"`
				Currency  string    `json:"currency"`
				Channel   string    `json:"channel"`
				PaidAt    time.Time `json:"paid_at"`
			} `json:"data"`
		}
		if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &result); err != nil {
			return nil, err
		}
		if !result.Status {
			return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, result.Message)
		}
		return &VerifiedPayment{
			Reference:  result.Data.Reference,
			AmountKobo: result.Data.Amount,
			Currency:   result.Data.Currency,
			Paid:       result.Data.Status == "success",
			PaidAt:     result.Data.PaidAt,
			Channel:    result.Data.Channel,
		}, nil
	})
}

func (c *PaystackClient) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	return withRetries(ctx, func() (*ResolvedAccount, error) {
		var result struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
			Data    struct {
				AccountNumber string `json:"account_number"`
				AccountName   string `json:"account_name"`
			} `json:"data"`
		}
		path := fmt.Sprintf("/bank/resolve?account_number=%s&bank_code=%s", accountNumber, bankCode)
		if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
			return nil, err
		}
		if !result.Status {
			return nil, fmt.Errorf("resolving paystack account: %s", result.Message)
		}
		return &ResolvedAccount{
			AccountNumber: result.Data.AccountNumber,
			AccountName:   result.Data.AccountName,
			BankCode:      bankCode,
		}, nil
	})
}

// InitiateTransfer registers a transfer recipient and queues a payout to it.
// Paystack requires the two calls; the recipient step is idempotent on its
// side, so retrying the pair is safe.
func (c *PaystackClient) InitiateTransfer(ctx context.Context, accountNumber, bankCode string, amountKobo int64, reference, narration string) (*InitiatedTransfer, error) {
	return withRetries(ctx, func() (*InitiatedTransfer, error) {
		var recipient struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
			Data    struct {
				RecipientCode string `json:"recipient_code"`
			} `json:"data"`
		}
		recipientPayload := map[string]any{
			"type":           "nuban",
			"account_number": accountNumber,
			"bank_code":      bankCode,
			"currency":       "NGN",
		}
		if err := c.do(ctx, http.MethodPost, "/transferrecipient", recipientPayload, &recipient); err != nil {
			return nil, err
		}
		if !recipient.Status {
			return nil, fmt.Errorf("creating paystack transfer recipient: %s", recipient.Message)
		}

		var transfer struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
			Data    struct {
				Reference string `json:"reference"`
				Status    string `json:"status"`
			} `json:"data"`
		}
		transferPayload := map[string]any{
			"source":    "balance",
			"amount":    amountKobo,
			"recipient": recipient.Data.RecipientCode,
			"reference": reference,
			"reason":    narration,
		}
		if err := c.do(ctx, http.MethodPost, "/transfer", transferPayload, &transfer); err != nil {
			return nil, err
		}
		if !transfer.Status {
			return nil, fmt.Errorf("initiating paystack transfer: %s", transfer.Message)
		}
		return &InitiatedTransfer{
			Reference: transfer.Data.Reference,
			Status:    transfer.Data.Status,
		}, nil
	})
}

// VerifyWebhookSignature checks the x-paystack-signature header, an
// HMAC-SHA512 of the raw body keyed with the secret key.
func (c *PaystackClient) VerifyWebhookSignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *PaystackClient) do(ctx context.Context, method, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding paystack request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: paystack responded %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("paystack responded %d for %s %s", resp.StatusCode, method, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding paystack response: %w", err)
	}
	return nil
}
