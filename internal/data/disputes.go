package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sabimarket/sabimarket-backend/db"
)

type DisputeStatus string

const (
	OpenDisputeStatus        DisputeStatus = "open"
	UnderReviewDisputeStatus DisputeStatus = "under_review"
	ResolvedDisputeStatus    DisputeStatus = "resolved"
)

type DisputeDecision string

const (
	ReleaseDisputeDecision       DisputeDecision = "release"
	RefundDisputeDecision        DisputeDecision = "refund"
	PartialRefundDisputeDecision DisputeDecision = "partial_refund"
)

// Dispute freezes a job's or order's escrow until an admin rules on it.
type Dispute struct {
	ID               string           `json:"id" db:"id"`
	JobID            *string          `json:"job_id,omitempty" db:"job_id"`
	OrderID          *string          `json:"order_id,omitempty" db:"order_id"`
	RaisedBy         string           `json:"raised_by" db:"raised_by"`
	Reason           string           `json:"reason" db:"reason"`
	Description      string           `json:"description" db:"description"`
	EvidenceURLs     pq.StringArray   `json:"evidence_urls" db:"evidence_urls"`
	Status           DisputeStatus    `json:"status" db:"status"`
	Decision         *DisputeDecision `json:"decision,omitempty" db:"decision"`
	Resolution       *string          `json:"resolution,omitempty" db:"resolution"`
	RefundPercentage *int             `json:"refund_percentage,omitempty" db:"refund_percentage"`
	ResolvedBy       *string          `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

type DisputeInsert struct {
	JobID        *string
	OrderID      *string
	RaisedBy     string
	Reason       string
	Description  string
	EvidenceURLs []string
}

type DisputeResolution struct {
	Decision         DisputeDecision
	Resolution       string
	RefundPercentage *int
	ResolvedBy       string
}

type DisputeModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *DisputeModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert DisputeInsert) (*Dispute, error) {
	var dispute Dispute
	query := `
		INSERT INTO disputes (job_id, order_id, raised_by, reason, description, evidence_urls)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &dispute, query,
		insert.JobID, insert.OrderID, insert.RaisedBy, insert.Reason, insert.Description,
		pq.StringArray(insert.EvidenceURLs))
	if err != nil {
		return nil, fmt.Errorf("inserting dispute: %w", err)
	}
	return &dispute, nil
}

func (m *DisputeModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Dispute, error) {
	var dispute Dispute
	query := `SELECT * FROM disputes WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &dispute, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying dispute %s: %w", id, err)
	}
	return &dispute, nil
}

// GetOpenByJob returns the unresolved dispute blocking a job, if any.
func (m *DisputeModel) GetOpenByJob(ctx context.Context, sqlExec db.SQLExecuter, jobID string) (*Dispute, error) {
	var dispute Dispute
	query := `SELECT * FROM disputes WHERE job_id = $1 AND status != $2 ORDER BY created_at DESC LIMIT 1`
	if err := sqlExec.GetContext(ctx, &dispute, query, jobID, ResolvedDisputeStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying open dispute for job %s: %w", jobID, err)
	}
	return &dispute, nil
}

// GetOpenByOrder returns the unresolved dispute blocking an order, if any.
func (m *DisputeModel) GetOpenByOrder(ctx context.Context, sqlExec db.SQLExecuter, orderID string) (*Dispute, error) {
	var dispute Dispute
	query := `SELECT * FROM disputes WHERE order_id = $1 AND status != $2 ORDER BY created_at DESC LIMIT 1`
	if err := sqlExec.GetContext(ctx, &dispute, query, orderID, ResolvedDisputeStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying open dispute for order %s: %w", orderID, err)
	}
	return &dispute, nil
}

// Resolve records the admin ruling. The status guard makes resolution a
// one-shot operation.
func (m *DisputeModel) Resolve(ctx context.Context, sqlExec db.SQLExecuter, disputeID string, resolution DisputeResolution) (*Dispute, error) {
	var dispute Dispute
	query := `
		UPDATE disputes
		SET status = $1, decision = $2, resolution = $3, refund_percentage = $4,
			resolved_by = $5, resolved_at = NOW()
		WHERE id = $6 AND status != $1
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &dispute, query,
		ResolvedDisputeStatus, resolution.Decision, resolution.Resolution,
		resolution.RefundPercentage, resolution.ResolvedBy, disputeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("resolving dispute %s: %w", disputeID, err)
	}
	return &dispute, nil
}

func (m *DisputeModel) ListOpen(ctx context.Context, limit, offset int) ([]Dispute, error) {
	disputes := []Dispute{}
	query := `
		SELECT * FROM disputes
		WHERE status != $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &disputes, query, ResolvedDisputeStatus, limit, offset); err != nil {
		return nil, fmt.Errorf("listing open disputes: %w", err)
	}
	return disputes, nil
}
