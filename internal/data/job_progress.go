package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sabimarket/sabimarket-backend/db"
)

// JobProgress is a worker-submitted milestone update. Updates are append-only
// and never edited after submission.
type JobProgress struct {
	ID                 string         `json:"id" db:"id"`
	JobID              string         `json:"job_id" db:"job_id"`
	WorkerID           string         `json:"worker_id" db:"worker_id"`
	ProgressPercentage int            `json:"progress_percentage" db:"progress_percentage"`
	Description        string         `json:"description" db:"description"`
	ImageURLs          pq.StringArray `json:"image_urls" db:"image_urls"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
}

type JobProgressInsert struct {
	JobID              string
	WorkerID           string
	ProgressPercentage int
	Description        string
	ImageURLs          []string
}

type JobProgressModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *JobProgressModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert JobProgressInsert) (*JobProgress, error) {
	var progress JobProgress
	query := `
		INSERT INTO job_progress (job_id, worker_id, progress_percentage, description, image_urls)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &progress, query,
		insert.JobID, insert.WorkerID, insert.ProgressPercentage, insert.Description, pq.StringArray(insert.ImageURLs))
	if err != nil {
		return nil, fmt.Errorf("inserting progress for job %s: %w", insert.JobID, err)
	}
	return &progress, nil
}

// GetLatestPercentage returns the highest reported percentage for a job, or 0
// when no updates exist yet.
func (m *JobProgressModel) GetLatestPercentage(ctx context.Context, sqlExec db.SQLExecuter, jobID string) (int, error) {
	var percentage int
	query := `SELECT COALESCE(MAX(progress_percentage), 0) FROM job_progress WHERE job_id = $1`
	if err := sqlExec.GetContext(ctx, &percentage, query, jobID); err != nil {
		return 0, fmt.Errorf("querying latest progress for job %s: %w", jobID, err)
	}
	return percentage, nil
}

func (m *JobProgressModel) ListByJob(ctx context.Context, jobID string) ([]JobProgress, error) {
	updates := []JobProgress{}
	query := `SELECT * FROM job_progress WHERE job_id = $1 ORDER BY created_at ASC`
	if err := m.dbConnectionPool.SelectContext(ctx, &updates, query, jobID); err != nil {
		return nil, fmt.Errorf("listing progress for job %s: %w", jobID, err)
	}
	return updates, nil
}
