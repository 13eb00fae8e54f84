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

type chatServiceFixture struct {
	ctx        context.Context
	pool       db.DBConnectionPool
	models     *data.Models
	ledger     *ledger.Service
	dispatcher *message.MessageDispatcherMock
	jobs       *JobService
	service    *ChatService
}

func setupChatServiceTest(t *testing.T) *chatServiceFixture {
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

	f := &chatServiceFixture{ctx: ctx, pool: pool, models: models, ledger: ledgerService, dispatcher: dispatcher}
	escrowUser := f.createUser(t, "escrow@platform.internal", data.AdminUserRole)
	revenueUser := f.createUser(t, "revenue@platform.internal", data.AdminUserRole)

	engine := escrow.NewEngine(models, ledgerService, escrowUser.ID, revenueUser.ID)
	f.jobs = NewJobService(models, engine, nil, dispatcher)
	f.service = NewChatService(models, nil, f.jobs, dispatcher)
	return f
}

func (f *chatServiceFixture) createUser(t *testing.T, email string, role data.UserRole) *data.User {
	t.Helper()
	user, err := f.models.Users.Insert(f.ctx, f.pool, data.UserInsert{Email: email, FullName: "Fixture", Role: role})
	require.NoError(t, err)
	_, err = f.models.Wallets.Insert(f.ctx, f.pool, user.ID)
	require.NoError(t, err)
	return user
}

func (f *chatServiceFixture) fund(t *testing.T, userID string, amount int64, reference string) {
	t.Helper()
	err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		_, err := f.ledger.Credit(f.ctx, dbTx, userID, ledger.EntryInput{
			Type: data.DepositTransactionType, Amount: amount, Reference: reference,
		})
		return err
	})
	require.NoError(t, err)
}

func Test_ChatService_messaging(t *testing.T) {
	f := setupChatServiceTest(t)
	employer := f.createUser(t, "employer@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker@example.com", data.WorkerUserRole)
	outsider := f.createUser(t, "outsider@example.com", data.BuyerUserRole)

	t.Run("cannot chat with yourself", func(t *testing.T) {
		_, err := f.service.StartChat(f.ctx, employer.ID, employer.ID, nil)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	chat, err := f.service.StartChat(f.ctx, employer.ID, worker.ID, nil)
	require.NoError(t, err)

	t.Run("starting the same chat again returns the existing one", func(t *testing.T) {
		again, err := f.service.StartChat(f.ctx, worker.ID, employer.ID, nil)
		require.NoError(t, err)
		require.Equal(t, chat.ID, again.ID)
	})

	_, err = f.service.SendMessage(f.ctx, chat.ID, employer.ID, SendMessageRequest{
		Type: data.TextMessageType, Content: "When can you start?",
	})
	require.NoError(t, err)

	t.Run("empty text is rejected", func(t *testing.T) {
		_, err := f.service.SendMessage(f.ctx, chat.ID, employer.ID, SendMessageRequest{Type: data.TextMessageType})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non-participants cannot post", func(t *testing.T) {
		_, err := f.service.SendMessage(f.ctx, chat.ID, outsider.ID, SendMessageRequest{
			Type: data.TextMessageType, Content: "hello",
		})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("non-participants cannot read", func(t *testing.T) {
		_, err := f.service.ListMessages(f.ctx, chat.ID, outsider.ID, 1, 20)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	messages, err := f.service.ListMessages(f.ctx, chat.ID, worker.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// A second conversation: the unread badge totals across every chat the
	// user participates in, while the per-chat count stays scoped.
	otherChat, err := f.service.StartChat(f.ctx, outsider.ID, worker.ID, nil)
	require.NoError(t, err)
	for _, content := range []string{"Is the generator still available?", "I can pick it up today"} {
		_, err = f.service.SendMessage(f.ctx, otherChat.ID, outsider.ID, SendMessageRequest{
			Type: data.TextMessageType, Content: content,
		})
		require.NoError(t, err)
	}

	unread, err := f.service.UnreadCount(f.ctx, worker.ID)
	require.NoError(t, err)
	require.Equal(t, 3, unread)

	perChat, err := f.models.Messages.CountUnread(f.ctx, f.pool, chat.ID, worker.ID)
	require.NoError(t, err)
	require.Equal(t, 1, perChat)

	marked, err := f.service.MarkRead(f.ctx, chat.ID, worker.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	t.Run("reading one chat leaves the other chat's messages unread", func(t *testing.T) {
		unread, err := f.service.UnreadCount(f.ctx, worker.ID)
		require.NoError(t, err)
		require.Equal(t, 2, unread)
	})

	t.Run("marking read again finds nothing", func(t *testing.T) {
		marked, err := f.service.MarkRead(f.ctx, chat.ID, worker.ID)
		require.NoError(t, err)
		require.Equal(t, int64(0), marked)
	})
}

func Test_ChatService_proposals(t *testing.T) {
	f := setupChatServiceTest(t)
	employer := f.createUser(t, "employer2@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker2@example.com", data.WorkerUserRole)
	f.fund(t, employer.ID, 100_000_00, "DEP_C1")

	job, err := f.jobs.CreateJob(f.ctx, employer.ID, CreateJobRequest{
		Category: "carpentry", Title: "Build shelves", Budget: 50_000_00, EstimatedDurationDays: 5, PlatformFee: 1_000_00,
	})
	require.NoError(t, err)

	chat, err := f.service.StartChat(f.ctx, worker.ID, employer.ID, &job.ID)
	require.NoError(t, err)

	proposal, err := f.service.SendProposal(f.ctx, chat.ID, worker.ID, SendProposalRequest{
		JobID: job.ID, ProposedRate: 50_000_00, TimelineDays: 5, Terms: "materials included",
	})
	require.NoError(t, err)
	require.Equal(t, data.PendingProposalStatus, proposal.Status)

	// The proposal also lands in the chat as a typed message.
	messages, err := f.service.ListMessages(f.ctx, chat.ID, employer.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, data.ProposalMessageType, messages[0].Type)

	t.Run("proposer cannot accept their own proposal", func(t *testing.T) {
		_, err := f.service.RespondProposal(f.ctx, proposal.ID, worker.ID, data.AcceptedProposalStatus)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("only the proposer can withdraw", func(t *testing.T) {
		_, err := f.service.RespondProposal(f.ctx, proposal.ID, employer.ID, data.WithdrawnProposalStatus)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	// Accepting escrows the budget and assigns the worker in the same flow.
	accepted, err := f.service.RespondProposal(f.ctx, proposal.ID, employer.ID, data.AcceptedProposalStatus)
	require.NoError(t, err)
	require.Equal(t, data.AcceptedProposalStatus, accepted.Status)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.InProgressJobStatus, job.Status)
	require.Equal(t, worker.ID, *job.AssignedWorkerID)

	wallet, err := f.models.Wallets.GetByOwner(f.ctx, f.pool, employer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(49_000_00), wallet.Balance)

	t.Run("responding twice fails", func(t *testing.T) {
		_, err := f.service.RespondProposal(f.ctx, proposal.ID, employer.ID, data.RejectedProposalStatus)
		require.ErrorIs(t, err, ErrAlreadyResponded)
	})

	t.Run("no proposals on a job that is no longer open", func(t *testing.T) {
		_, err := f.service.SendProposal(f.ctx, chat.ID, worker.ID, SendProposalRequest{
			JobID: job.ID, ProposedRate: 40_000_00, TimelineDays: 3,
		})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	proposals, err := f.service.ListProposals(f.ctx, chat.ID, employer.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
}

func Test_ChatService_failed_acceptance_reopens_proposal(t *testing.T) {
	f := setupChatServiceTest(t)
	employer := f.createUser(t, "employer3@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker3@example.com", data.WorkerUserRole)
	f.fund(t, employer.ID, 10_000_00, "DEP_C2")

	job, err := f.jobs.CreateJob(f.ctx, employer.ID, CreateJobRequest{
		Category: "welding", Title: "Repair gate", Budget: 50_000_00, EstimatedDurationDays: 2, PlatformFee: 1_000_00,
	})
	require.NoError(t, err)

	chat, err := f.service.StartChat(f.ctx, worker.ID, employer.ID, &job.ID)
	require.NoError(t, err)
	proposal, err := f.service.SendProposal(f.ctx, chat.ID, worker.ID, SendProposalRequest{
		JobID: job.ID, ProposedRate: 50_000_00, TimelineDays: 2,
	})
	require.NoError(t, err)

	// Escrow funding fails, so the acceptance must roll the proposal back to
	// pending instead of stranding it as accepted-without-worker.
	_, err = f.service.RespondProposal(f.ctx, proposal.ID, employer.ID, data.AcceptedProposalStatus)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	proposal, err = f.models.ContractProposals.Get(f.ctx, f.pool, proposal.ID)
	require.NoError(t, err)
	require.Equal(t, data.PendingProposalStatus, proposal.Status)
	require.Nil(t, proposal.RespondedAt)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.OpenJobStatus, job.Status)
	require.Nil(t, job.AssignedWorkerID)

	// Once the employer tops up, the same proposal can be accepted.
	f.fund(t, employer.ID, 100_000_00, "DEP_C3")
	accepted, err := f.service.RespondProposal(f.ctx, proposal.ID, employer.ID, data.AcceptedProposalStatus)
	require.NoError(t, err)
	require.Equal(t, data.AcceptedProposalStatus, accepted.Status)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.InProgressJobStatus, job.Status)
	require.Equal(t, worker.ID, *job.AssignedWorkerID)
}
