package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

// JobReview is a post-completion rating. Each party reviews the other at most
// once per job, enforced by the (job_id, reviewer_id) unique constraint.
type JobReview struct {
	ID         string    `json:"id" db:"id"`
	JobID      string    `json:"job_id" db:"job_id"`
	ReviewerID string    `json:"reviewer_id" db:"reviewer_id"`
	RevieweeID string    `json:"reviewee_id" db:"reviewee_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type JobReviewInsert struct {
	JobID      string
	ReviewerID string
	RevieweeID string
	Rating     int
	Comment    string
}

type JobReviewModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *JobReviewModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert JobReviewInsert) (*JobReview, error) {
	var review JobReview
	query := `
		INSERT INTO job_reviews (job_id, reviewer_id, reviewee_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &review, query,
		insert.JobID, insert.ReviewerID, insert.RevieweeID, insert.Rating, insert.Comment)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting review for job %s: %w", insert.JobID, err)
	}
	return &review, nil
}

func (m *JobReviewModel) ListByReviewee(ctx context.Context, revieweeID string, limit, offset int) ([]JobReview, error) {
	reviews := []JobReview{}
	query := `
		SELECT * FROM job_reviews
		WHERE reviewee_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &reviews, query, revieweeID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing reviews for reviewee %s: %w", revieweeID, err)
	}
	return reviews, nil
}

// AverageRating returns the mean rating a user has received and the number of
// reviews behind it.
func (m *JobReviewModel) AverageRating(ctx context.Context, sqlExec db.SQLExecuter, revieweeID string) (float64, int, error) {
	var result struct {
		Average sql.NullFloat64 `db:"average"`
		Count   int             `db:"count"`
	}
	query := `SELECT AVG(rating) AS average, COUNT(*) AS count FROM job_reviews WHERE reviewee_id = $1`
	if err := sqlExec.GetContext(ctx, &result, query, revieweeID); err != nil {
		return 0, 0, fmt.Errorf("averaging reviews for reviewee %s: %w", revieweeID, err)
	}
	return result.Average.Float64, result.Count, nil
}
