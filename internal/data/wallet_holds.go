package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type HoldStatus string

const (
	ActiveHoldStatus   HoldStatus = "active"
	ReleasedHoldStatus HoldStatus = "released"
	ExpiredHoldStatus  HoldStatus = "expired"
)

// WalletHold reserves part of a wallet's balance without moving it. While
// active, its amount is subtracted from the wallet's available balance.
type WalletHold struct {
	ID         string     `json:"id" db:"id"`
	WalletID   string     `json:"wallet_id" db:"wallet_id"`
	JobID      *string    `json:"job_id,omitempty" db:"job_id"`
	OrderID    *string    `json:"order_id,omitempty" db:"order_id"`
	Amount     int64      `json:"amount" db:"amount"`
	Reason     string     `json:"reason" db:"reason"`
	Status     HoldStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty" db:"released_at"`
}

type WalletHoldInsert struct {
	WalletID  string
	JobID     *string
	OrderID   *string
	Amount    int64
	Reason    string
	ExpiresAt *time.Time
}

type WalletHoldModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *WalletHoldModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert WalletHoldInsert) (*WalletHold, error) {
	var hold WalletHold
	query := `
		INSERT INTO wallet_holds (wallet_id, job_id, order_id, amount, reason, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &hold, query,
		insert.WalletID, insert.JobID, insert.OrderID, insert.Amount, insert.Reason, insert.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("inserting wallet hold: %w", err)
	}
	return &hold, nil
}

func (m *WalletHoldModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*WalletHold, error) {
	var hold WalletHold
	query := `SELECT * FROM wallet_holds WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &hold, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying wallet hold %s: %w", id, err)
	}
	return &hold, nil
}

// GetActiveByJob returns the active hold backing a job's escrow.
func (m *WalletHoldModel) GetActiveByJob(ctx context.Context, sqlExec db.SQLExecuter, jobID string) (*WalletHold, error) {
	var hold WalletHold
	query := `SELECT * FROM wallet_holds WHERE job_id = $1 AND status = $2`
	if err := sqlExec.GetContext(ctx, &hold, query, jobID, ActiveHoldStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying active hold for job %s: %w", jobID, err)
	}
	return &hold, nil
}

// GetActiveByOrder returns the active hold backing an order's delivery escrow.
func (m *WalletHoldModel) GetActiveByOrder(ctx context.Context, sqlExec db.SQLExecuter, orderID string) (*WalletHold, error) {
	var hold WalletHold
	query := `SELECT * FROM wallet_holds WHERE order_id = $1 AND status = $2`
	if err := sqlExec.GetContext(ctx, &hold, query, orderID, ActiveHoldStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying active hold for order %s: %w", orderID, err)
	}
	return &hold, nil
}

// Release marks a hold released. Released holds stay on record but stop
// affecting availability.
func (m *WalletHoldModel) Release(ctx context.Context, sqlExec db.SQLExecuter, holdID string, releasedAt time.Time) error {
	query := `
		UPDATE wallet_holds
		SET status = $1, released_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := sqlExec.ExecContext(ctx, query, ReleasedHoldStatus, releasedAt, holdID, ActiveHoldStatus)
	if err != nil {
		return fmt.Errorf("releasing wallet hold %s: %w", holdID, err)
	}
	return checkSingleRowAffected(result)
}

// SumActiveByWallet totals the active holds against a wallet. Callers holding
// the wallet row lock use it to recompute available_balance.
func (m *WalletHoldModel) SumActiveByWallet(ctx context.Context, sqlExec db.SQLExecuter, walletID string) (int64, error) {
	var total sql.NullInt64
	query := `SELECT SUM(amount) FROM wallet_holds WHERE wallet_id = $1 AND status = $2`
	if err := sqlExec.GetContext(ctx, &total, query, walletID, ActiveHoldStatus); err != nil {
		return 0, fmt.Errorf("summing active holds for wallet %s: %w", walletID, err)
	}
	return total.Int64, nil
}

// ExpireDue marks active holds whose expiry passed as expired and returns the
// affected wallet IDs so availability can be recomputed per wallet.
func (m *WalletHoldModel) ExpireDue(ctx context.Context, sqlExec db.SQLExecuter, now time.Time) ([]string, error) {
	walletIDs := []string{}
	query := `
		UPDATE wallet_holds
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < $3
		RETURNING wallet_id
	`
	if err := sqlExec.SelectContext(ctx, &walletIDs, query, ExpiredHoldStatus, ActiveHoldStatus, now); err != nil {
		return nil, fmt.Errorf("expiring due holds: %w", err)
	}
	return walletIDs, nil
}
