package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/cache"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/escrow"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

// Trust points awarded when a job completes. The bonus halves apply when the
// review rating is at least 4 and when the job finished before its deadline.
const (
	workerBasePoints     = 20
	workerRatingPoints   = 10
	workerDeadlinePoints = 5

	employerBasePoints     = 30
	employerRatingPoints   = 5
	employerDeadlinePoints = 5
)

// JobService drives the labour job lifecycle. State transitions are validated
// under a row lock on the job, and every money move goes through the escrow
// engine inside the same transaction.
type JobService struct {
	models   *data.Models
	engine   *escrow.Engine
	cache    *cache.Cache
	notifier *notifier
}

func NewJobService(models *data.Models, engine *escrow.Engine, c *cache.Cache, dispatcher message.MessageDispatcherInterface) *JobService {
	return &JobService{
		models:   models,
		engine:   engine,
		cache:    c,
		notifier: &notifier{models: models, dispatcher: dispatcher},
	}
}

type CreateJobRequest struct {
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

func (r CreateJobRequest) validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if r.Budget <= 0 {
		return fmt.Errorf("%w: budget must be positive", ErrInvalidInput)
	}
	if r.PlatformFee < 0 {
		return fmt.Errorf("%w: platform fee cannot be negative", ErrInvalidInput)
	}
	if r.PartialPaymentAllowed {
		if r.PartialPaymentPercentage == nil {
			return fmt.Errorf("%w: partial payment percentage is required when partial payment is allowed", ErrInvalidInput)
		}
		if *r.PartialPaymentPercentage < 10 || *r.PartialPaymentPercentage > 90 {
			return fmt.Errorf("%w: partial payment percentage must be between 10 and 90", ErrInvalidInput)
		}
	}
	return nil
}

func (s *JobService) CreateJob(ctx context.Context, employerID string, req CreateJobRequest) (*data.Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	job, err := s.models.Jobs.Insert(ctx, s.models.DBConnectionPool, data.JobInsert{
		EmployerID:               employerID,
		Category:                 req.Category,
		Title:                    req.Title,
		Description:              req.Description,
		LocationState:            req.LocationState,
		LocationCity:             req.LocationCity,
		LocationAddress:          req.LocationAddress,
		Budget:                   req.Budget,
		EstimatedDurationDays:    req.EstimatedDurationDays,
		PlatformFee:              req.PlatformFee,
		PartialPaymentAllowed:    req.PartialPaymentAllowed,
		PartialPaymentPercentage: req.PartialPaymentPercentage,
		Deadline:                 req.Deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return job, nil
}

// AssignWorker funds the escrow and moves the job to in_progress. Concurrent
// assignments serialize on the job row lock; the loser fails the guarded
// status update.
func (s *JobService) AssignWorker(ctx context.Context, jobID, employerID, workerID string) (*data.Job, error) {
	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Job, []db.PostCommitFn, error) {
		job, err := s.models.Jobs.GetForUpdate(ctx, dbTx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading job %s: %w", jobID, err)
		}
		if job.EmployerID != employerID {
			return nil, nil, fmt.Errorf("caller %s does not own job %s: %w", employerID, jobID, ErrUnauthorized)
		}
		if err = job.Status.TransitionTo(data.InProgressJobStatus); err != nil {
			return nil, nil, fmt.Errorf("validating job transition: %w", err)
		}

		worker, err := s.models.Users.Get(ctx, dbTx, workerID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading worker %s: %w", workerID, err)
		}
		if !worker.IsAvailable {
			return nil, nil, fmt.Errorf("worker %s: %w", workerID, ErrWorkerUnavailable)
		}

		if err = s.engine.AssignWorker(ctx, dbTx, job); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return nil, nil, fmt.Errorf("funding escrow for job %s: %w", jobID, err)
		}
		if err = s.models.Jobs.AssignWorker(ctx, dbTx, jobID, workerID); err != nil {
			return nil, nil, fmt.Errorf("assigning worker to job %s: %w", jobID, err)
		}

		if _, err = s.models.JobContracts.Insert(ctx, dbTx, data.JobContractInsert{
			JobID:        jobID,
			EmployerID:   employerID,
			WorkerID:     workerID,
			AgreedRate:   job.Budget,
			TimelineDays: job.EstimatedDurationDays,
			Terms:        job.Description,
		}); err != nil && !errors.Is(err, data.ErrRecordAlreadyExists) {
			return nil, nil, fmt.Errorf("creating contract for job %s: %w", jobID, err)
		}

		job, err = s.models.Jobs.Get(ctx, dbTx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("reloading job %s: %w", jobID, err)
		}

		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.Delete(ctx, cache.JobKey(jobID), cache.WorkerProfileKey(workerID))
			s.notifier.notifyUser(ctx, workerID, "You have been assigned a job",
				fmt.Sprintf("You were assigned to %q. The budget is held in escrow.", job.Title))
		}}
		return job, postCommit, nil
	})
}

// SubmitProgress records a progress report. Crossing the partial payment
// threshold triggers the one-off milestone release; 100% moves the job into
// employer review.
func (s *JobService) SubmitProgress(ctx context.Context, jobID, workerID string, pct int, description string, imageURLs []string) (*data.JobProgress, error) {
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("%w: progress percentage must be between 0 and 100", ErrInvalidInput)
	}

	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.JobProgress, []db.PostCommitFn, error) {
		job, err := s.models.Jobs.GetForUpdate(ctx, dbTx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading job %s: %w", jobID, err)
		}
		if job.Status != data.InProgressJobStatus {
			return nil, nil, fmt.Errorf("job %s is %s, not in progress: %w", jobID, job.Status, data.ErrInvalidStateTransition)
		}
		if job.AssignedWorkerID == nil || *job.AssignedWorkerID != workerID {
			return nil, nil, fmt.Errorf("caller %s is not the assigned worker on job %s: %w", workerID, jobID, ErrUnauthorized)
		}

		progress, err := s.models.JobProgress.Insert(ctx, dbTx, data.JobProgressInsert{
			JobID:              jobID,
			WorkerID:           workerID,
			ProgressPercentage: pct,
			Description:        description,
			ImageURLs:          imageURLs,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("recording progress for job %s: %w", jobID, err)
		}

		if job.PartialPaymentAllowed && job.PartialPaymentPercentage != nil &&
			pct >= *job.PartialPaymentPercentage && job.PaymentStatus == data.EscrowedJobPaymentStatus {
			if err = s.engine.PartialRelease(ctx, dbTx, job, workerID); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
				return nil, nil, fmt.Errorf("releasing milestone payment for job %s: %w", jobID, err)
			}
		}

		if pct == 100 {
			if err = job.Status.TransitionTo(data.UnderReviewJobStatus); err != nil {
				return nil, nil, fmt.Errorf("validating job transition: %w", err)
			}
			if err = s.models.Jobs.UpdateStatus(ctx, dbTx, jobID, data.UnderReviewJobStatus); err != nil {
				return nil, nil, fmt.Errorf("moving job %s to review: %w", jobID, err)
			}
		}

		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.Delete(ctx, cache.JobKey(jobID))
			if pct == 100 {
				s.notifier.notifyUser(ctx, job.EmployerID, "Job ready for review",
					fmt.Sprintf("The worker reported %q as finished. Review and release payment.", job.Title))
			}
		}}
		return progress, postCommit, nil
	})
}

// CompleteJob settles the escrow, records the employer's review, and awards
// trust points to both sides.
func (s *JobService) CompleteJob(ctx context.Context, jobID, employerID string, rating int, comment string) (*data.Job, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Job, []db.PostCommitFn, error) {
		job, err := s.models.Jobs.GetForUpdate(ctx, dbTx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading job %s: %w", jobID, err)
		}
		if job.EmployerID != employerID {
			return nil, nil, fmt.Errorf("caller %s does not own job %s: %w", employerID, jobID, ErrUnauthorized)
		}
		if job.Status != data.UnderReviewJobStatus {
			return nil, nil, fmt.Errorf("job %s is %s, not under review: %w", jobID, job.Status, data.ErrInvalidStateTransition)
		}
		if job.AssignedWorkerID == nil {
			return nil, nil, fmt.Errorf("job %s has no assigned worker: %w", jobID, data.ErrRecordNotFound)
		}
		workerID := *job.AssignedWorkerID

		if err = s.engine.Complete(ctx, dbTx, job, workerID); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return nil, nil, fmt.Errorf("settling escrow for job %s: %w", jobID, err)
		}
		if err = s.models.Jobs.UpdateStatus(ctx, dbTx, jobID, data.CompletedJobStatus); err != nil {
			return nil, nil, fmt.Errorf("completing job %s: %w", jobID, err)
		}

		if _, err = s.models.JobReviews.Insert(ctx, dbTx, data.JobReviewInsert{
			JobID:      jobID,
			ReviewerID: employerID,
			RevieweeID: workerID,
			Rating:     rating,
			Comment:    comment,
		}); err != nil && !errors.Is(err, data.ErrRecordAlreadyExists) {
			return nil, nil, fmt.Errorf("recording review for job %s: %w", jobID, err)
		}

		byDeadline := job.Deadline == nil || !time.Now().After(*job.Deadline)
		workerPoints := trustPoints(workerBasePoints, workerRatingPoints, workerDeadlinePoints, rating, byDeadline)
		employerPoints := trustPoints(employerBasePoints, employerRatingPoints, employerDeadlinePoints, rating, byDeadline)
		if err = s.models.Users.AddTrustPoints(ctx, dbTx, workerID, workerPoints); err != nil {
			return nil, nil, fmt.Errorf("awarding trust points to worker %s: %w", workerID, err)
		}
		if err = s.models.Users.AddTrustPoints(ctx, dbTx, employerID, employerPoints); err != nil {
			return nil, nil, fmt.Errorf("awarding trust points to employer %s: %w", employerID, err)
		}

		job, err = s.models.Jobs.Get(ctx, dbTx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("reloading job %s: %w", jobID, err)
		}

		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.Delete(ctx, cache.JobKey(jobID), cache.WorkerProfileKey(workerID), cache.UserKey(workerID), cache.UserKey(employerID))
			s.notifier.notifyUser(ctx, workerID, "Job completed",
				fmt.Sprintf("Payment for %q has been released to your wallet.", job.Title))
		}}
		return job, postCommit, nil
	})
}

func trustPoints(base, ratingBonus, deadlineBonus, rating int, byDeadline bool) int {
	points := base
	if rating >= 4 {
		points += ratingBonus
	}
	if byDeadline {
		points += deadlineBonus
	}
	return points
}

// OpenDispute freezes the job in the disputed state until an authority rules
// on it. Only the employer or the assigned worker can raise one.
func (s *JobService) OpenDispute(ctx context.Context, jobID, raiserID, reason, description string, evidenceURLs []string) (*data.Dispute, error) {
	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Dispute, []db.PostCommitFn, error) {
		job, err := s.models.Jobs.GetForUpdate(ctx, dbTx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading job %s: %w", jobID, err)
		}
		isEmployer := job.EmployerID == raiserID
		isWorker := job.AssignedWorkerID != nil && *job.AssignedWorkerID == raiserID
		if !isEmployer && !isWorker {
			return nil, nil, fmt.Errorf("caller %s is not a party to job %s: %w", raiserID, jobID, ErrUnauthorized)
		}
		if err = job.Status.TransitionTo(data.DisputedJobStatus); err != nil {
			return nil, nil, fmt.Errorf("validating job transition: %w", err)
		}

		dispute, err := s.models.Disputes.Insert(ctx, dbTx, data.DisputeInsert{
			JobID:        &jobID,
			RaisedBy:     raiserID,
			Reason:       reason,
			Description:  description,
			EvidenceURLs: evidenceURLs,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening dispute for job %s: %w", jobID, err)
		}
		if err = s.models.Jobs.UpdateStatus(ctx, dbTx, jobID, data.DisputedJobStatus); err != nil {
			return nil, nil, fmt.Errorf("marking job %s disputed: %w", jobID, err)
		}

		counterparty := job.EmployerID
		if isEmployer && job.AssignedWorkerID != nil {
			counterparty = *job.AssignedWorkerID
		}
		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.Delete(ctx, cache.JobKey(jobID))
			s.notifier.notifyUser(ctx, counterparty, "A dispute was opened",
				fmt.Sprintf("A dispute was opened on %q. Funds stay in escrow until it is resolved.", job.Title))
		}}
		return dispute, postCommit, nil
	})
}

// CancelJob withdraws an open job before any worker was assigned.
func (s *JobService) CancelJob(ctx context.Context, jobID, employerID string) (*data.Job, error) {
	return db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Job, error) {
		job, err := s.models.Jobs.GetForUpdate(ctx, dbTx, jobID)
		if err != nil {
			return nil, fmt.Errorf("loading job %s: %w", jobID, err)
		}
		if job.EmployerID != employerID {
			return nil, fmt.Errorf("caller %s does not own job %s: %w", employerID, jobID, ErrUnauthorized)
		}
		if job.Status != data.OpenJobStatus {
			return nil, fmt.Errorf("job %s is %s, only open jobs can be cancelled: %w", jobID, job.Status, ErrInvalidInput)
		}
		if err = s.models.Jobs.UpdateStatus(ctx, dbTx, jobID, data.CancelledJobStatus); err != nil {
			return nil, fmt.Errorf("cancelling job %s: %w", jobID, err)
		}
		return s.models.Jobs.Get(ctx, dbTx, jobID)
	})
}

func (s *JobService) GetJob(ctx context.Context, jobID string) (*data.Job, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.JobKey(jobID), cache.JobTTL, func() (*data.Job, error) {
		return s.models.Jobs.Get(ctx, s.models.DBConnectionPool, jobID)
	})
}
