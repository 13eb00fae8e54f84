package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type OTPPurpose string

const (
	WithdrawalOTPPurpose OTPPurpose = "withdrawal"
)

// WalletOTP is a single-use code protecting a sensitive wallet operation.
// Only the Argon2 hash of the code is stored.
type WalletOTP struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	OTPHash    string     `json:"-" db:"otp_hash"`
	Purpose    OTPPurpose `json:"purpose" db:"purpose"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

type WalletOTPModel struct {
	dbConnectionPool db.DBConnectionPool
}

// Insert stores a fresh code hash, superseding any unconsumed code for the
// same user and purpose.
func (m *WalletOTPModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, userID, otpHash string, purpose OTPPurpose, expiresAt time.Time) (*WalletOTP, error) {
	invalidate := `
		UPDATE wallet_otps
		SET consumed_at = NOW()
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL
	`
	if _, err := sqlExec.ExecContext(ctx, invalidate, userID, purpose); err != nil {
		return nil, fmt.Errorf("superseding previous otps for user %s: %w", userID, err)
	}

	var otp WalletOTP
	query := `
		INSERT INTO wallet_otps (user_id, otp_hash, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`
	if err := sqlExec.GetContext(ctx, &otp, query, userID, otpHash, purpose, expiresAt); err != nil {
		return nil, fmt.Errorf("inserting otp for user %s: %w", userID, err)
	}
	return &otp, nil
}

// GetActive returns the unconsumed, unexpired code for a user and purpose.
func (m *WalletOTPModel) GetActive(ctx context.Context, sqlExec db.SQLExecuter, userID string, purpose OTPPurpose, now time.Time) (*WalletOTP, error) {
	var otp WalletOTP
	query := `
		SELECT * FROM wallet_otps
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := sqlExec.GetContext(ctx, &otp, query, userID, purpose, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying otp for user %s: %w", userID, err)
	}
	return &otp, nil
}

// Consume marks a code used. The unconsumed guard makes it one-shot.
func (m *WalletOTPModel) Consume(ctx context.Context, sqlExec db.SQLExecuter, otpID string) error {
	query := `
		UPDATE wallet_otps
		SET consumed_at = NOW()
		WHERE id = $1 AND consumed_at IS NULL
	`
	result, err := sqlExec.ExecContext(ctx, query, otpID)
	if err != nil {
		return fmt.Errorf("consuming otp %s: %w", otpID, err)
	}
	return checkSingleRowAffected(result)
}
