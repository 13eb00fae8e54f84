package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type WalletStatus string

const (
	ActiveWalletStatus    WalletStatus = "active"
	SuspendedWalletStatus WalletStatus = "suspended"
	FrozenWalletStatus    WalletStatus = "frozen"
	ClosedWalletStatus    WalletStatus = "closed"
)

// Wallet is the single source of monetary truth for a user. All amounts are
// kobo. available_balance is always balance minus the sum of active holds.
type Wallet struct {
	ID               string       `json:"id" db:"id"`
	OwnerID          string       `json:"owner_id" db:"owner_id"`
	Balance          int64        `json:"balance" db:"balance"`
	AvailableBalance int64        `json:"available_balance" db:"available_balance"`
	TotalDeposits    int64        `json:"total_deposits" db:"total_deposits"`
	TotalWithdrawals int64        `json:"total_withdrawals" db:"total_withdrawals"`
	Status           WalletStatus `json:"status" db:"status"`
	DailyLimit       int64        `json:"daily_limit" db:"daily_limit"`
	MonthlyLimit     int64        `json:"monthly_limit" db:"monthly_limit"`
	IsVerified       bool         `json:"is_verified" db:"is_verified"`
	PinHash          *string      `json:"-" db:"pin_hash"`
	LastActivityAt   *time.Time   `json:"last_activity_at,omitempty" db:"last_activity_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

type WalletModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *WalletModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Wallet, error) {
	var wallet Wallet
	query := `SELECT * FROM wallets WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying wallet ID %s: %w", id, err)
	}
	return &wallet, nil
}

func (m *WalletModel) GetByOwner(ctx context.Context, sqlExec db.SQLExecuter, ownerID string) (*Wallet, error) {
	var wallet Wallet
	query := `SELECT * FROM wallets WHERE owner_id = $1`
	if err := sqlExec.GetContext(ctx, &wallet, query, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying wallet for owner %s: %w", ownerID, err)
	}
	return &wallet, nil
}

// GetByOwnerForUpdate loads a wallet under a row-level lock. Every balance or
// hold mutation goes through this lock so mutations on the same wallet are
// serialized by the database, not by in-process mutexes.
func (m *WalletModel) GetByOwnerForUpdate(ctx context.Context, sqlExec db.SQLExecuter, ownerID string) (*Wallet, error) {
	var wallet Wallet
	query := `SELECT * FROM wallets WHERE owner_id = $1 FOR UPDATE`
	if err := sqlExec.GetContext(ctx, &wallet, query, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("locking wallet for owner %s: %w", ownerID, err)
	}
	return &wallet, nil
}

// GetForUpdate locks a wallet row by wallet ID. Used when the caller starts
// from a hold or transaction that carries the wallet ID rather than the owner.
func (m *WalletModel) GetForUpdate(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Wallet, error) {
	var wallet Wallet
	query := `SELECT * FROM wallets WHERE id = $1 FOR UPDATE`
	if err := sqlExec.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("locking wallet %s: %w", id, err)
	}
	return &wallet, nil
}

func (m *WalletModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, ownerID string) (*Wallet, error) {
	var wallet Wallet
	query := `INSERT INTO wallets (owner_id) VALUES ($1) RETURNING *`
	if err := sqlExec.GetContext(ctx, &wallet, query, ownerID); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting wallet for owner %s: %w", ownerID, err)
	}
	return &wallet, nil
}

// UpdateBalances writes the post-mutation balance columns. It must only be
// called while holding the wallet's row lock, with availableBalance already
// recomputed against active holds.
func (m *WalletModel) UpdateBalances(ctx context.Context, sqlExec db.SQLExecuter, walletID string, balance, availableBalance int64) error {
	query := `
		UPDATE wallets
		SET balance = $1, available_balance = $2, last_activity_at = NOW()
		WHERE id = $3
	`
	result, err := sqlExec.ExecContext(ctx, query, balance, availableBalance, walletID)
	if err != nil {
		return fmt.Errorf("updating balances for wallet %s: %w", walletID, err)
	}
	return checkSingleRowAffected(result)
}

// IncrementTotals bumps the lifetime deposit/withdrawal counters. Zero values
// leave the corresponding counter untouched.
func (m *WalletModel) IncrementTotals(ctx context.Context, sqlExec db.SQLExecuter, walletID string, deposits, withdrawals int64) error {
	query := `
		UPDATE wallets
		SET total_deposits = total_deposits + $1, total_withdrawals = total_withdrawals + $2
		WHERE id = $3
	`
	result, err := sqlExec.ExecContext(ctx, query, deposits, withdrawals, walletID)
	if err != nil {
		return fmt.Errorf("incrementing totals for wallet %s: %w", walletID, err)
	}
	return checkSingleRowAffected(result)
}

// UpdateStatus sets the wallet status.
func (m *WalletModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, walletID string, status WalletStatus) error {
	query := `UPDATE wallets SET status = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, status, walletID)
	if err != nil {
		return fmt.Errorf("updating status for wallet %s: %w", walletID, err)
	}
	return checkSingleRowAffected(result)
}

// SetPinHash stores the encoded transaction PIN hash. The raw PIN never
// reaches this layer.
func (m *WalletModel) SetPinHash(ctx context.Context, sqlExec db.SQLExecuter, walletID, pinHash string) error {
	query := `UPDATE wallets SET pin_hash = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, pinHash, walletID)
	if err != nil {
		return fmt.Errorf("setting pin for wallet %s: %w", walletID, err)
	}
	return checkSingleRowAffected(result)
}

// TouchActivity bumps last_activity_at.
func (m *WalletModel) TouchActivity(ctx context.Context, sqlExec db.SQLExecuter, walletID string, at time.Time) error {
	query := `UPDATE wallets SET last_activity_at = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, at, walletID)
	if err != nil {
		return fmt.Errorf("touching wallet %s: %w", walletID, err)
	}
	return checkSingleRowAffected(result)
}
