package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/db/dbtest"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/escrow"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

type jobServiceFixture struct {
	ctx        context.Context
	pool       db.DBConnectionPool
	models     *data.Models
	ledger     *ledger.Service
	dispatcher *message.MessageDispatcherMock
	service    *JobService
	disputes   *DisputeService
	escrow     *data.User
	revenue    *data.User
}

func setupJobServiceTest(t *testing.T) *jobServiceFixture {
	t.Helper()

	testDB := dbtest.Open(t)
	conn := testDB.Open(t)
	t.Cleanup(func() { conn.Close() })

	pool := &db.DBConnectionPoolImplementation{DB: conn}
	models, err := data.NewModels(pool)
	require.NoError(t, err)

	ctx := context.Background()
	ledgerService := ledger.NewService(models)
	dispatcher := &message.MessageDispatcherMock{}
	dispatcher.On("SendMessage", ctx, mock.AnythingOfType("message.Message"), mock.Anything).
		Return(message.MessengerTypeDryRun, nil).Maybe()

	f := &jobServiceFixture{ctx: ctx, pool: pool, models: models, ledger: ledgerService, dispatcher: dispatcher}
	f.escrow = f.createUser(t, "escrow@platform.internal", data.AdminUserRole)
	f.revenue = f.createUser(t, "revenue@platform.internal", data.AdminUserRole)

	engine := escrow.NewEngine(models, ledgerService, f.escrow.ID, f.revenue.ID)
	f.service = NewJobService(models, engine, nil, dispatcher)
	f.disputes = NewDisputeService(models, engine, nil, dispatcher)
	return f
}

func (f *jobServiceFixture) createUser(t *testing.T, email string, role data.UserRole) *data.User {
	t.Helper()
	user, err := f.models.Users.Insert(f.ctx, f.pool, data.UserInsert{Email: email, FullName: "Fixture", Role: role})
	require.NoError(t, err)
	_, err = f.models.Wallets.Insert(f.ctx, f.pool, user.ID)
	require.NoError(t, err)
	return user
}

func (f *jobServiceFixture) fund(t *testing.T, userID string, amount int64, reference string) {
	t.Helper()
	err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		_, err := f.ledger.Credit(f.ctx, dbTx, userID, ledger.EntryInput{
			Type: data.DepositTransactionType, Amount: amount, Reference: reference,
		})
		return err
	})
	require.NoError(t, err)
}

func (f *jobServiceFixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	wallet, err := f.models.Wallets.GetByOwner(f.ctx, f.pool, userID)
	require.NoError(t, err)
	return wallet.Balance
}

func Test_JobService_lifecycle(t *testing.T) {
	f := setupJobServiceTest(t)
	employer := f.createUser(t, "employer@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker@example.com", data.WorkerUserRole)
	f.fund(t, employer.ID, 200_000_00, "DEP_J1")

	partialPct := 40
	job, err := f.service.CreateJob(f.ctx, employer.ID, CreateJobRequest{
		Category:                 "plumbing",
		Title:                    "Re-pipe bathroom",
		Budget:                   100_000_00,
		EstimatedDurationDays:    7,
		PlatformFee:              3_000_00,
		PartialPaymentAllowed:    true,
		PartialPaymentPercentage: &partialPct,
	})
	require.NoError(t, err)
	require.Equal(t, data.OpenJobStatus, job.Status)

	t.Run("only the employer can assign", func(t *testing.T) {
		_, err := f.service.AssignWorker(f.ctx, job.ID, worker.ID, worker.ID)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	job, err = f.service.AssignWorker(f.ctx, job.ID, employer.ID, worker.ID)
	require.NoError(t, err)
	require.Equal(t, data.InProgressJobStatus, job.Status)
	require.Equal(t, worker.ID, *job.AssignedWorkerID)
	require.Equal(t, int64(97_000_00), f.balance(t, employer.ID))

	t.Run("completion before review is a state conflict", func(t *testing.T) {
		_, err := f.service.CompleteJob(f.ctx, job.ID, employer.ID, 5, "too early")
		require.ErrorIs(t, err, data.ErrInvalidStateTransition)
	})

	// Crossing the partial threshold releases the milestone payment once.
	_, err = f.service.SubmitProgress(f.ctx, job.ID, worker.ID, 50, "pipes laid", nil)
	require.NoError(t, err)
	require.Equal(t, int64(40_000_00), f.balance(t, worker.ID))

	_, err = f.service.SubmitProgress(f.ctx, job.ID, worker.ID, 60, "fittings in", nil)
	require.NoError(t, err)
	require.Equal(t, int64(40_000_00), f.balance(t, worker.ID))

	_, err = f.service.SubmitProgress(f.ctx, job.ID, worker.ID, 100, "done", nil)
	require.NoError(t, err)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.UnderReviewJobStatus, job.Status)

	job, err = f.service.CompleteJob(f.ctx, job.ID, employer.ID, 5, "clean work")
	require.NoError(t, err)
	require.Equal(t, data.CompletedJobStatus, job.Status)
	require.Equal(t, int64(100_000_00), f.balance(t, worker.ID))
	require.Equal(t, int64(3_000_00), f.balance(t, f.revenue.ID))
}

func Test_JobService_dispute_refund(t *testing.T) {
	f := setupJobServiceTest(t)
	employer := f.createUser(t, "employer2@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker2@example.com", data.WorkerUserRole)
	moderator := f.createUser(t, "moderator@example.com", data.ModeratorUserRole)
	f.fund(t, employer.ID, 150_000_00, "DEP_J2")

	job, err := f.service.CreateJob(f.ctx, employer.ID, CreateJobRequest{
		Category: "painting", Title: "Paint flat", Budget: 80_000_00, EstimatedDurationDays: 3, PlatformFee: 2_000_00,
	})
	require.NoError(t, err)
	_, err = f.service.AssignWorker(f.ctx, job.ID, employer.ID, worker.ID)
	require.NoError(t, err)

	dispute, err := f.service.OpenDispute(f.ctx, job.ID, employer.ID, "abandoned", "worker stopped showing up", nil)
	require.NoError(t, err)

	t.Run("worker cannot submit progress on a disputed job", func(t *testing.T) {
		_, err := f.service.SubmitProgress(f.ctx, job.ID, worker.ID, 10, "started", nil)
		require.ErrorIs(t, err, data.ErrInvalidStateTransition)
	})

	t.Run("only platform authority can resolve", func(t *testing.T) {
		_, err := f.disputes.Resolve(f.ctx, dispute.ID, employer.ID, ResolveDisputeRequest{
			Decision: data.RefundDisputeDecision, Resolution: "refund",
		})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	_, err = f.disputes.Resolve(f.ctx, dispute.ID, moderator.ID, ResolveDisputeRequest{
		Decision: data.RefundDisputeDecision, Resolution: "worker abandoned the job",
	})
	require.NoError(t, err)

	// Budget and fee come back; the worker gets nothing.
	require.Equal(t, int64(150_000_00), f.balance(t, employer.ID))
	require.Equal(t, int64(0), f.balance(t, worker.ID))

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.CancelledJobStatus, job.Status)

	t.Run("resolving twice fails", func(t *testing.T) {
		_, err := f.disputes.Resolve(f.ctx, dispute.ID, moderator.ID, ResolveDisputeRequest{
			Decision: data.RefundDisputeDecision, Resolution: "again",
		})
		require.ErrorIs(t, err, ErrDisputeNotOpen)
	})
}
