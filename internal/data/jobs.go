package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

// Job is a labour contract offer. assigned_worker_id is set exactly when the
// job has left the open state and is not cancelled.
type Job struct {
	ID                       string           `json:"id" db:"id"`
	EmployerID               string           `json:"employer_id" db:"employer_id"`
	AssignedWorkerID         *string          `json:"assigned_worker_id,omitempty" db:"assigned_worker_id"`
	Category                 string           `json:"category" db:"category"`
	Title                    string           `json:"title" db:"title"`
	Description              string           `json:"description" db:"description"`
	LocationState            string           `json:"location_state" db:"location_state"`
	LocationCity             string           `json:"location_city" db:"location_city"`
	LocationAddress          string           `json:"location_address" db:"location_address"`
	Budget                   int64            `json:"budget" db:"budget"`
	EstimatedDurationDays    int              `json:"estimated_duration_days" db:"estimated_duration_days"`
	Status                   JobStatus        `json:"status" db:"status"`
	PaymentStatus            JobPaymentStatus `json:"payment_status" db:"payment_status"`
	EscrowAmount             int64            `json:"escrow_amount" db:"escrow_amount"`
	PlatformFee              int64            `json:"platform_fee" db:"platform_fee"`
	PartialPaymentAllowed    bool             `json:"partial_payment_allowed" db:"partial_payment_allowed"`
	PartialPaymentPercentage *int             `json:"partial_payment_percentage,omitempty" db:"partial_payment_percentage"`
	Deadline                 *time.Time       `json:"deadline,omitempty" db:"deadline"`
	CreatedAt                time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time        `json:"updated_at" db:"updated_at"`
}

type JobInsert struct {
	EmployerID               string
	Category                 string
	Title                    string
	Description              string
	LocationState            string
	LocationCity             string
	LocationAddress          string
	Budget                   int64
	EstimatedDurationDays    int
	PlatformFee              int64
	PartialPaymentAllowed    bool
	PartialPaymentPercentage *int
	Deadline                 *time.Time
}

type JobModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *JobModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Job, error) {
	var job Job
	query := `SELECT * FROM jobs WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job %s: %w", id, err)
	}
	return &job, nil
}

// GetForUpdate loads a job under a row-level lock, serializing state machine
// transitions against the same job.
func (m *JobModel) GetForUpdate(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Job, error) {
	var job Job
	query := `SELECT * FROM jobs WHERE id = $1 FOR UPDATE`
	if err := sqlExec.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("locking job %s: %w", id, err)
	}
	return &job, nil
}

func (m *JobModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert JobInsert) (*Job, error) {
	var job Job
	query := `
		INSERT INTO jobs (
			employer_id, category, title, description,
			location_state, location_city, location_address,
			budget, estimated_duration_days, platform_fee,
			partial_payment_allowed, partial_payment_percentage, deadline
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &job, query,
		insert.EmployerID, insert.Category, insert.Title, insert.Description,
		insert.LocationState, insert.LocationCity, insert.LocationAddress,
		insert.Budget, insert.EstimatedDurationDays, insert.PlatformFee,
		insert.PartialPaymentAllowed, insert.PartialPaymentPercentage, insert.Deadline,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting job: %w", err)
	}
	return &job, nil
}

// UpdateStatus writes a validated status transition.
func (m *JobModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, jobID string, status JobStatus) error {
	query := `UPDATE jobs SET status = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, status, jobID)
	if err != nil {
		return fmt.Errorf("updating status for job %s: %w", jobID, err)
	}
	return checkSingleRowAffected(result)
}

// UpdatePaymentStatus writes the escrow-side status and amount.
func (m *JobModel) UpdatePaymentStatus(ctx context.Context, sqlExec db.SQLExecuter, jobID string, paymentStatus JobPaymentStatus, escrowAmount int64) error {
	query := `UPDATE jobs SET payment_status = $1, escrow_amount = $2 WHERE id = $3`
	result, err := sqlExec.ExecContext(ctx, query, paymentStatus, escrowAmount, jobID)
	if err != nil {
		return fmt.Errorf("updating payment status for job %s: %w", jobID, err)
	}
	return checkSingleRowAffected(result)
}

// AssignWorker sets the worker and moves the job into in_progress in a single
// statement guarded on the open status, so a concurrent assignment loses with
// zero rows affected.
func (m *JobModel) AssignWorker(ctx context.Context, sqlExec db.SQLExecuter, jobID, workerID string) error {
	query := `
		UPDATE jobs
		SET assigned_worker_id = $1, status = $2
		WHERE id = $3 AND status = $4
	`
	result, err := sqlExec.ExecContext(ctx, query, workerID, InProgressJobStatus, jobID, OpenJobStatus)
	if err != nil {
		return fmt.Errorf("assigning worker to job %s: %w", jobID, err)
	}
	return checkSingleRowAffected(result)
}

// ListByEmployer returns a page of an employer's jobs, newest first.
func (m *JobModel) ListByEmployer(ctx context.Context, employerID string, limit, offset int) ([]Job, error) {
	jobs := []Job{}
	query := `
		SELECT * FROM jobs
		WHERE employer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &jobs, query, employerID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing jobs for employer %s: %w", employerID, err)
	}
	return jobs, nil
}

// ListOpen returns a page of open jobs for discovery, newest first.
func (m *JobModel) ListOpen(ctx context.Context, limit, offset int) ([]Job, error) {
	jobs := []Job{}
	query := `
		SELECT * FROM jobs
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &jobs, query, OpenJobStatus, limit, offset); err != nil {
		return nil, fmt.Errorf("listing open jobs: %w", err)
	}
	return jobs, nil
}
