package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

// JobContract records the agreed terms at the moment a worker is assigned.
// Each job carries at most one contract.
type JobContract struct {
	ID           string    `json:"id" db:"id"`
	JobID        string    `json:"job_id" db:"job_id"`
	EmployerID   string    `json:"employer_id" db:"employer_id"`
	WorkerID     string    `json:"worker_id" db:"worker_id"`
	AgreedRate   int64     `json:"agreed_rate" db:"agreed_rate"`
	TimelineDays int       `json:"timeline_days" db:"timeline_days"`
	Terms        string    `json:"terms" db:"terms"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type JobContractInsert struct {
	JobID        string
	EmployerID   string
	WorkerID     string
	AgreedRate   int64
	TimelineDays int
	Terms        string
}

type JobContractModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *JobContractModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert JobContractInsert) (*JobContract, error) {
	var contract JobContract
	query := `
		INSERT INTO job_contracts (job_id, employer_id, worker_id, agreed_rate, timeline_days, terms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &contract, query,
		insert.JobID, insert.EmployerID, insert.WorkerID, insert.AgreedRate, insert.TimelineDays, insert.Terms)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting contract for job %s: %w", insert.JobID, err)
	}
	return &contract, nil
}

func (m *JobContractModel) GetByJob(ctx context.Context, sqlExec db.SQLExecuter, jobID string) (*JobContract, error) {
	var contract JobContract
	query := `SELECT * FROM job_contracts WHERE job_id = $1`
	if err := sqlExec.GetContext(ctx, &contract, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying contract for job %s: %w", jobID, err)
	}
	return &contract, nil
}
