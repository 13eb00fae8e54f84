package data

import (
	"context"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type EscrowTransactionType string

const (
	HoldEscrowTransactionType    EscrowTransactionType = "hold"
	PartialEscrowTransactionType EscrowTransactionType = "partial_release"
	ReleaseEscrowTransactionType EscrowTransactionType = "release"
	RefundEscrowTransactionType  EscrowTransactionType = "refund"
	SplitEscrowTransactionType   EscrowTransactionType = "split"
)

// EscrowTransaction is the audit record of an escrow step. Its reference is
// deterministic per job or order and step, so replays collide on the unique
// constraint instead of moving money twice.
type EscrowTransaction struct {
	ID        string                `json:"id" db:"id"`
	JobID     *string               `json:"job_id,omitempty" db:"job_id"`
	OrderID   *string               `json:"order_id,omitempty" db:"order_id"`
	Type      EscrowTransactionType `json:"type" db:"type"`
	Amount    int64                 `json:"amount" db:"amount"`
	Reference string                `json:"reference" db:"reference"`
	CreatedAt time.Time             `json:"created_at" db:"created_at"`
}

type EscrowTransactionInsert struct {
	JobID     *string
	OrderID   *string
	Type      EscrowTransactionType
	Amount    int64
	Reference string
}

type EscrowTransactionModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *EscrowTransactionModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert EscrowTransactionInsert) (*EscrowTransaction, error) {
	if insert.Reference == "" {
		return nil, fmt.Errorf("validating escrow transaction insert: %w", ErrMissingInput)
	}

	var txn EscrowTransaction
	query := `
		INSERT INTO escrow_transactions (job_id, order_id, type, amount, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &txn, query,
		insert.JobID, insert.OrderID, insert.Type, insert.Amount, insert.Reference)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting escrow transaction with reference %s: %w", insert.Reference, err)
	}
	return &txn, nil
}

func (m *EscrowTransactionModel) ListByJob(ctx context.Context, sqlExec db.SQLExecuter, jobID string) ([]EscrowTransaction, error) {
	txns := []EscrowTransaction{}
	query := `SELECT * FROM escrow_transactions WHERE job_id = $1 ORDER BY created_at ASC`
	if err := sqlExec.SelectContext(ctx, &txns, query, jobID); err != nil {
		return nil, fmt.Errorf("listing escrow transactions for job %s: %w", jobID, err)
	}
	return txns, nil
}

func (m *EscrowTransactionModel) ListByOrder(ctx context.Context, sqlExec db.SQLExecuter, orderID string) ([]EscrowTransaction, error) {
	txns := []EscrowTransaction{}
	query := `SELECT * FROM escrow_transactions WHERE order_id = $1 ORDER BY created_at ASC`
	if err := sqlExec.SelectContext(ctx, &txns, query, orderID); err != nil {
		return nil, fmt.Errorf("listing escrow transactions for order %s: %w", orderID, err)
	}
	return txns, nil
}
