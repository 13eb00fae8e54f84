package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type TransactionType string

const (
	DepositTransactionType         TransactionType = "deposit"
	WithdrawalTransactionType      TransactionType = "withdrawal"
	TransferTransactionType        TransactionType = "transfer"
	JobPaymentTransactionType      TransactionType = "job_payment"
	JobRefundTransactionType       TransactionType = "job_refund"
	PlatformFeeTransactionType     TransactionType = "platform_fee"
	ServicePaymentTransactionType  TransactionType = "service_payment"
	ServiceDeliveryTransactionType TransactionType = "service_delivery"
	RefundTransactionType          TransactionType = "refund"
	BonusTransactionType           TransactionType = "bonus"
	ReferralTransactionType        TransactionType = "referral"
	PenaltyTransactionType         TransactionType = "penalty"
)

// IsFundingType reports whether a credit of this type counts toward the
// wallet's lifetime deposits.
func (t TransactionType) IsFundingType() bool {
	switch t {
	case DepositTransactionType, BonusTransactionType, ReferralTransactionType:
		return true
	default:
		return false
	}
}

type TransactionStatus string

const (
	PendingTransactionStatus    TransactionStatus = "pending"
	ProcessingTransactionStatus TransactionStatus = "processing"
	CompletedTransactionStatus  TransactionStatus = "completed"
	FailedTransactionStatus     TransactionStatus = "failed"
	CancelledTransactionStatus  TransactionStatus = "cancelled"
	ReversedTransactionStatus   TransactionStatus = "reversed"
)

// WalletTransaction is an append-only ledger entry. Amount is always the
// absolute value; direction is carried by balance_before/balance_after.
type WalletTransaction struct {
	ID                string            `json:"id" db:"id"`
	WalletID          string            `json:"wallet_id" db:"wallet_id"`
	UserID            string            `json:"user_id" db:"user_id"`
	Type              TransactionType   `json:"type" db:"type"`
	Amount            int64             `json:"amount" db:"amount"`
	BalanceBefore     int64             `json:"balance_before" db:"balance_before"`
	BalanceAfter      int64             `json:"balance_after" db:"balance_after"`
	Status            TransactionStatus `json:"status" db:"status"`
	Reference         string            `json:"reference" db:"reference"`
	ExternalReference *string           `json:"external_reference,omitempty" db:"external_reference"`
	Description       string            `json:"description" db:"description"`
	JobID             *string           `json:"job_id,omitempty" db:"job_id"`
	RecipientWalletID *string           `json:"recipient_wallet_id,omitempty" db:"recipient_wallet_id"`
	FeeAmount         int64             `json:"fee_amount" db:"fee_amount"`
	Metadata          TransactionMeta   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

type TransactionMeta map[string]any

func (m *TransactionMeta) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("could not parse transaction metadata")
	}
	return json.Unmarshal(data, m)
}

func (m TransactionMeta) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

type WalletTransactionInsert struct {
	WalletID          string
	UserID            string
	Type              TransactionType
	Amount            int64
	BalanceBefore     int64
	BalanceAfter      int64
	Status            TransactionStatus
	Reference         string
	ExternalReference *string
	Description       string
	JobID             *string
	RecipientWalletID *string
	FeeAmount         int64
	Metadata          TransactionMeta
}

type WalletTransactionModel struct {
	dbConnectionPool db.DBConnectionPool
}

// Insert appends a ledger entry. A duplicate reference surfaces as
// ErrRecordAlreadyExists, which callers rely on for idempotency.
func (m *WalletTransactionModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert WalletTransactionInsert) (*WalletTransaction, error) {
	if insert.Reference == "" {
		return nil, fmt.Errorf("validating transaction insert: %w", ErrMissingInput)
	}

	var txn WalletTransaction
	query := `
		INSERT INTO wallet_transactions (
			wallet_id, user_id, type, amount, balance_before, balance_after,
			status, reference, external_reference, description, job_id,
			recipient_wallet_id, fee_amount, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &txn, query,
		insert.WalletID, insert.UserID, insert.Type, insert.Amount,
		insert.BalanceBefore, insert.BalanceAfter, insert.Status, insert.Reference,
		insert.ExternalReference, insert.Description, insert.JobID,
		insert.RecipientWalletID, insert.FeeAmount, insert.Metadata,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting wallet transaction with reference %s: %w", insert.Reference, err)
	}
	return &txn, nil
}

func (m *WalletTransactionModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, reference string) (*WalletTransaction, error) {
	var txn WalletTransaction
	query := `SELECT * FROM wallet_transactions WHERE reference = $1`
	if err := sqlExec.GetContext(ctx, &txn, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying wallet transaction with reference %s: %w", reference, err)
	}
	return &txn, nil
}

// ListByWallet returns a page of ledger entries for a wallet, newest first.
func (m *WalletTransactionModel) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]WalletTransaction, error) {
	txns := []WalletTransaction{}
	query := `
		SELECT * FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &txns, query, walletID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing wallet transactions for wallet %s: %w", walletID, err)
	}
	return txns, nil
}

// SumDebitsSince totals completed outbound amounts of the given types since
// the cutoff, for daily/monthly limit enforcement.
func (m *WalletTransactionModel) SumDebitsSince(ctx context.Context, sqlExec db.SQLExecuter, walletID string, since time.Time) (int64, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(amount) FROM wallet_transactions
		WHERE wallet_id = $1
			AND created_at >= $2
			AND status = $3
			AND type IN ($4, $5)
	`
	err := sqlExec.GetContext(ctx, &total, query, walletID, since,
		CompletedTransactionStatus, WithdrawalTransactionType, TransferTransactionType)
	if err != nil {
		return 0, fmt.Errorf("summing debits for wallet %s: %w", walletID, err)
	}
	return total.Int64, nil
}
