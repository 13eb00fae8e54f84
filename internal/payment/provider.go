// Package payment integrates the external card processors used for wallet
// deposits and withdrawals. Amounts cross this boundary in kobo; each client
// converts to its provider's wire format internally.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrProviderUnavailable wraps transport failures, timeouts, and 5xx
// responses. Callers may retry with backoff; all other errors are final.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// ErrVerificationFailed means the provider answered but the transaction is
// not in a successful state.
var ErrVerificationFailed = errors.New("payment verification failed")

type ProviderName string

const (
	PaystackProvider    ProviderName = "paystack"
	FlutterwaveProvider ProviderName = "flutterwave"
)

// InitializedPayment is the provider's handle for a checkout the user must
// complete on the provider's page.
type InitializedPayment struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifiedPayment is the provider's confirmed view of a transaction.
type VerifiedPayment struct {
	Reference  string
	AmountKobo int64
	Currency   string
	Paid       bool
	PaidAt     time.Time
	Channel    string
}

// ResolvedAccount is the provider's answer to a bank account lookup.
type ResolvedAccount struct {
	AccountNumber string
	AccountName   string
	BankCode      string
}

// InitiatedTransfer is the provider's handle for an outbound bank transfer.
type InitiatedTransfer struct {
	Reference string
	Status    string
}

// Provider abstracts a card processor. Implementations must be safe for
// concurrent use.
type Provider interface {
	Name() ProviderName
	InitializePayment(ctx context.Context, email string, amountKobo int64, reference string) (*InitializedPayment, error)
	VerifyPayment(ctx context.Context, reference string) (*VerifiedPayment, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error)
	InitiateTransfer(ctx context.Context, accountNumber, bankCode string, amountKobo int64, reference, narration string) (*InitiatedTransfer, error)
}

const (
	maxAttempts  = 3
	initialDelay = 500 * time.Millisecond
)

// withRetries retries fn with exponential backoff, but only while the
// failure is ErrProviderUnavailable. Definitive provider answers are final.
func withRetries[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(initialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrProviderUnavailable)
		}),
	)
}
