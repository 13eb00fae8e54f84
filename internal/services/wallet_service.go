package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/message"
	"github.com/sabimarket/sabimarket-backend/internal/payment"
	"github.com/sabimarket/sabimarket-backend/internal/utils"
)

const (
	withdrawalOTPValidity = 10 * time.Minute
	otpDigits             = 6
)

var pinRegexp = regexp.MustCompile(`^\d{4,6}$`)

// WalletService fronts the ledger for user-initiated money movement: deposits
// through a payment provider, bank withdrawals behind PIN and OTP checks, and
// wallet-to-wallet transfers. Raw PINs and OTPs exist only on the stack of
// the verifying call; they are never stored, logged, or echoed in errors.
type WalletService struct {
	models   *data.Models
	ledger   *ledger.Service
	provider payment.Provider
	hash     utils.HashService
	notifier *notifier
}

func NewWalletService(models *data.Models, ledgerSvc *ledger.Service, provider payment.Provider, dispatcher message.MessageDispatcherInterface) *WalletService {
	return &WalletService{
		models:   models,
		ledger:   ledgerSvc,
		provider: provider,
		notifier: &notifier{models: models, dispatcher: dispatcher},
	}
}

// SetPin sets or replaces the wallet's transaction PIN.
func (s *WalletService) SetPin(ctx context.Context, userID, pin string) error {
	if !pinRegexp.MatchString(pin) {
		return fmt.Errorf("%w: PIN must be 4 to 6 digits", ErrInvalidInput)
	}

	wallet, err := s.models.Wallets.GetByOwner(ctx, s.models.DBConnectionPool, userID)
	if err != nil {
		return fmt.Errorf("loading wallet for user %s: %w", userID, err)
	}
	pinHash, err := s.hash.HashPassword(pin)
	if err != nil {
		return fmt.Errorf("hashing PIN: %w", err)
	}
	if err = s.models.Wallets.SetPinHash(ctx, s.models.DBConnectionPool, wallet.ID, pinHash); err != nil {
		return fmt.Errorf("storing PIN for wallet %s: %w", wallet.ID, err)
	}
	return nil
}

// InitializeDeposit opens a checkout with the payment provider. The deposit
// is only credited later, when VerifyDeposit confirms it.
func (s *WalletService) InitializeDeposit(ctx context.Context, userID string, amountKobo int64) (*payment.InitializedPayment, error) {
	if amountKobo <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	user, err := s.models.Users.Get(ctx, s.models.DBConnectionPool, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}
	if _, err = s.models.Wallets.GetByOwner(ctx, s.models.DBConnectionPool, userID); err != nil {
		return nil, fmt.Errorf("loading wallet for user %s: %w", userID, err)
	}

	reference := "DEP_" + uuid.New().String()
	initialized, err := s.provider.InitializePayment(ctx, user.Email, amountKobo, reference)
	if err != nil {
		return nil, fmt.Errorf("initializing deposit: %w", err)
	}
	return initialized, nil
}

// VerifyDeposit confirms a checkout with the provider and credits the wallet.
// The provider reference doubles as the ledger reference, so re-verifying an
// already credited deposit returns the original entry instead of double
// crediting.
func (s *WalletService) VerifyDeposit(ctx context.Context, userID, reference string) (*data.WalletTransaction, error) {
	verified, err := s.provider.VerifyPayment(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verifying deposit %s: %w", reference, err)
	}
	if !verified.Paid {
		return nil, fmt.Errorf("deposit %s: %w", reference, payment.ErrVerificationFailed)
	}

	txn, err := db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
		externalRef := verified.Reference
		return s.ledger.Credit(ctx, dbTx, userID, ledger.EntryInput{
			Type:              data.DepositTransactionType,
			Amount:            verified.AmountKobo,
			Reference:         verified.Reference,
			ExternalReference: &externalRef,
			Description:       fmt.Sprintf("Wallet deposit via %s", s.provider.Name()),
		})
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			return s.models.WalletTransactions.GetByReference(ctx, s.models.DBConnectionPool, verified.Reference)
		}
		return nil, fmt.Errorf("crediting deposit %s: %w", reference, err)
	}

	s.notifier.notifyUser(ctx, userID, "Deposit received",
		fmt.Sprintf("Your wallet has been credited with %s.", utils.FormatKobo(verified.AmountKobo)))
	return txn, nil
}

// RequestWithdrawalOTP issues a single-use code and delivers it out of band.
// The code itself never appears in the response or the logs.
func (s *WalletService) RequestWithdrawalOTP(ctx context.Context, userID string) error {
	if _, err := s.models.Wallets.GetByOwner(ctx, s.models.DBConnectionPool, userID); err != nil {
		return fmt.Errorf("loading wallet for user %s: %w", userID, err)
	}

	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generating OTP: %w", err)
	}
	otpHash, err := s.hash.HashPassword(otp)
	if err != nil {
		return fmt.Errorf("hashing OTP: %w", err)
	}
	if _, err = s.models.WalletOTPs.Insert(ctx, s.models.DBConnectionPool, userID, otpHash,
		data.WithdrawalOTPPurpose, time.Now().Add(withdrawalOTPValidity)); err != nil {
		return fmt.Errorf("storing OTP for user %s: %w", userID, err)
	}

	s.notifier.notifyUser(ctx, userID, "Your withdrawal code",
		fmt.Sprintf("Use code %s to confirm your withdrawal. It expires in %d minutes.", otp, int(withdrawalOTPValidity.Minutes())))
	return nil
}

type WithdrawRequest struct {
	AmountKobo    int64
	AccountNumber string
	BankCode      string
	PIN           string
	OTP           string
}

func (r WithdrawRequest) validate() error {
	if r.AmountKobo <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if r.AccountNumber == "" || r.BankCode == "" {
		return fmt.Errorf("%w: account number and bank code are required", ErrInvalidInput)
	}
	if r.PIN == "" || r.OTP == "" {
		return fmt.Errorf("%w: PIN and OTP are required", ErrInvalidInput)
	}
	return nil
}

// Withdraw debits the wallet and pushes a bank transfer through the payment
// provider. If the provider rejects the transfer the debit is reversed; if
// the provider is merely unreachable after retries the debit stands and the
// transfer is retried out of band using the same reference.
func (s *WalletService) Withdraw(ctx context.Context, userID string, req WithdrawRequest) (*data.WalletTransaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.verifyPin(ctx, userID, req.PIN); err != nil {
		return nil, err
	}
	if err := s.consumeOTP(ctx, userID, req.OTP); err != nil {
		return nil, err
	}

	resolved, err := s.provider.ResolveAccount(ctx, req.AccountNumber, req.BankCode)
	if err != nil {
		return nil, fmt.Errorf("resolving bank account: %w", err)
	}

	reference := "WDR_" + uuid.New().String()
	txn, err := db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
		return s.ledger.Debit(ctx, dbTx, userID, ledger.EntryInput{
			Type:        data.WithdrawalTransactionType,
			Amount:      req.AmountKobo,
			Reference:   reference,
			Description: fmt.Sprintf("Withdrawal to %s (%s)", maskAccountNumber(req.AccountNumber), resolved.AccountName),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("debiting withdrawal: %w", err)
	}

	if _, err = s.provider.InitiateTransfer(ctx, req.AccountNumber, req.BankCode, req.AmountKobo, reference,
		"Wallet withdrawal"); err != nil {
		if errors.Is(err, payment.ErrProviderUnavailable) {
			return txn, nil
		}
		reversalErr := db.RunInTransaction(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) error {
			_, creditErr := s.ledger.Credit(ctx, dbTx, userID, ledger.EntryInput{
				Type:        data.RefundTransactionType,
				Amount:      req.AmountKobo,
				Reference:   reference + "_REVERSAL",
				Description: "Withdrawal reversal",
			})
			return creditErr
		})
		if reversalErr != nil {
			return nil, fmt.Errorf("reversing failed withdrawal %s: %w", reference, reversalErr)
		}
		return nil, fmt.Errorf("initiating bank transfer: %w", err)
	}

	s.notifier.notifyUser(ctx, userID, "Withdrawal initiated",
		fmt.Sprintf("Your withdrawal of %s to %s is on its way.", utils.FormatKobo(req.AmountKobo), maskAccountNumber(req.AccountNumber)))
	return txn, nil
}

// Transfer moves funds between two user wallets, PIN-gated on the sender.
func (s *WalletService) Transfer(ctx context.Context, fromUserID, toUserID string, amountKobo int64, pin, description string) (*data.WalletTransaction, error) {
	if amountKobo <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if fromUserID == toUserID {
		return nil, fmt.Errorf("%w: cannot transfer to your own wallet", ErrInvalidInput)
	}
	if err := s.verifyPin(ctx, fromUserID, pin); err != nil {
		return nil, err
	}
	if _, err := s.models.Users.Get(ctx, s.models.DBConnectionPool, toUserID); err != nil {
		return nil, fmt.Errorf("loading recipient %s: %w", toUserID, err)
	}

	reference := "TRF_" + uuid.New().String()
	if description == "" {
		description = "Wallet transfer"
	}
	txn, err := db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
		return s.ledger.Transfer(ctx, dbTx, fromUserID, toUserID, amountKobo, reference, description)
	})
	if err != nil {
		return nil, fmt.Errorf("transferring funds: %w", err)
	}

	s.notifier.notifyUser(ctx, toUserID, "Transfer received",
		fmt.Sprintf("You have received %s.", utils.FormatKobo(amountKobo)))
	return txn, nil
}

func (s *WalletService) Balance(ctx context.Context, userID string) (*data.Wallet, error) {
	return s.models.Wallets.GetByOwner(ctx, s.models.DBConnectionPool, userID)
}

func (s *WalletService) History(ctx context.Context, userID string, page, pageSize int) ([]data.WalletTransaction, error) {
	wallet, err := s.models.Wallets.GetByOwner(ctx, s.models.DBConnectionPool, userID)
	if err != nil {
		return nil, fmt.Errorf("loading wallet for user %s: %w", userID, err)
	}
	return s.models.WalletTransactions.ListByWallet(ctx, wallet.ID, pageSize, (page-1)*pageSize)
}

func (s *WalletService) verifyPin(ctx context.Context, userID, pin string) error {
	wallet, err := s.models.Wallets.GetByOwner(ctx, s.models.DBConnectionPool, userID)
	if err != nil {
		return fmt.Errorf("loading wallet for user %s: %w", userID, err)
	}
	if wallet.PinHash == nil {
		return fmt.Errorf("wallet has no transaction PIN set: %w", ErrUnauthorized)
	}
	ok, err := s.hash.VerifyPassword(pin, *wallet.PinHash)
	if err != nil {
		return fmt.Errorf("verifying PIN: %w", err)
	}
	if !ok {
		return fmt.Errorf("incorrect PIN: %w", ErrUnauthorized)
	}
	return nil
}

func (s *WalletService) consumeOTP(ctx context.Context, userID, otp string) error {
	active, err := s.models.WalletOTPs.GetActive(ctx, s.models.DBConnectionPool, userID, data.WithdrawalOTPPurpose, time.Now())
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return fmt.Errorf("no active withdrawal code: %w", ErrUnauthorized)
		}
		return fmt.Errorf("loading withdrawal code: %w", err)
	}
	ok, err := s.hash.VerifyPassword(otp, active.OTPHash)
	if err != nil {
		return fmt.Errorf("verifying withdrawal code: %w", err)
	}
	if !ok {
		return fmt.Errorf("incorrect withdrawal code: %w", ErrUnauthorized)
	}
	if err = s.models.WalletOTPs.Consume(ctx, s.models.DBConnectionPool, active.ID); err != nil {
		return fmt.Errorf("consuming withdrawal code: %w", err)
	}
	return nil
}

func generateOTP() (string, error) {
	upper := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		upper.Mul(upper, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// maskAccountNumber keeps only the last 4 digits.
func maskAccountNumber(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return strings.Repeat("*", len(accountNumber)-4) + accountNumber[len(accountNumber)-4:]
}
