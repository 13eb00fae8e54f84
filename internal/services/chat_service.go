package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/cache"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

// ChatService handles one-to-one conversations and the in-chat contract
// proposals that negotiate job terms. Accepting a proposal hands off to the
// job service, which escrows the budget and assigns the worker.
type ChatService struct {
	models   *data.Models
	cache    *cache.Cache
	jobs     *JobService
	notifier *notifier
}

func NewChatService(models *data.Models, c *cache.Cache, jobs *JobService, dispatcher message.MessageDispatcherInterface) *ChatService {
	return &ChatService{
		models:   models,
		cache:    c,
		jobs:     jobs,
		notifier: &notifier{models: models, dispatcher: dispatcher},
	}
}

// StartChat opens (or returns) the conversation between two users.
func (s *ChatService) StartChat(ctx context.Context, userID, otherUserID string, jobID *string) (*data.Chat, error) {
	if userID == otherUserID {
		return nil, fmt.Errorf("%w: cannot open a chat with yourself", ErrInvalidInput)
	}
	if _, err := s.models.Users.Get(ctx, s.models.DBConnectionPool, otherUserID); err != nil {
		return nil, fmt.Errorf("loading user %s: %w", otherUserID, err)
	}

	chat, err := s.models.Chats.GetOrCreate(ctx, s.models.DBConnectionPool, userID, otherUserID, jobID)
	if err != nil {
		return nil, fmt.Errorf("opening chat: %w", err)
	}
	s.cache.InvalidateUserChats(ctx, chat.ParticipantOneID)
	s.cache.InvalidateUserChats(ctx, chat.ParticipantTwoID)
	return chat, nil
}

type SendMessageRequest struct {
	Type     data.MessageType
	Content  string
	ImageURL *string
}

func (r SendMessageRequest) validate() error {
	switch r.Type {
	case data.TextMessageType:
		if r.Content == "" {
			return fmt.Errorf("%w: message content is required", ErrInvalidInput)
		}
	case data.ImageMessageType:
		if r.ImageURL == nil || *r.ImageURL == "" {
			return fmt.Errorf("%w: image URL is required", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported message type %q", ErrInvalidInput, r.Type)
	}
	return nil
}

// SendMessage appends a message to a chat the sender participates in.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID string, req SendMessageRequest) (*data.Message, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Message, []db.PostCommitFn, error) {
		chat, err := s.models.Chats.Get(ctx, dbTx, chatID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading chat %s: %w", chatID, err)
		}
		if !chat.HasParticipant(senderID) {
			return nil, nil, fmt.Errorf("user %s is not in chat %s: %w", senderID, chatID, ErrUnauthorized)
		}

		msg, err := s.models.Messages.Insert(ctx, dbTx, data.MessageInsert{
			ChatID:   chatID,
			SenderID: senderID,
			Type:     req.Type,
			Content:  req.Content,
			ImageURL: req.ImageURL,
		})
		if err != nil {
			return nil, nil, err
		}
		if err = s.models.Chats.TouchLastMessage(ctx, dbTx, chatID, time.Now()); err != nil {
			return nil, nil, err
		}

		recipientID := chat.OtherParticipant(senderID)
		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.InvalidateChat(ctx, chatID, chat.ParticipantOneID, chat.ParticipantTwoID)
			s.cache.InvalidateUnread(ctx, recipientID)
		}}
		return msg, postCommit, nil
	})
}

// ListMessages pages a chat's messages, newest first, through the cache.
func (s *ChatService) ListMessages(ctx context.Context, chatID, callerID string, page, pageSize int) ([]data.Message, error) {
	if _, err := s.GetChat(ctx, chatID, callerID); err != nil {
		return nil, err
	}

	return cache.GetOrLoad(ctx, s.cache, cache.MessagesKey(chatID, page), cache.MessagesTTL, func() ([]data.Message, error) {
		return s.models.Messages.ListByChat(ctx, chatID, pageSize, (page-1)*pageSize)
	})
}

// GetChat returns a chat after checking the caller participates in it.
func (s *ChatService) GetChat(ctx context.Context, chatID, callerID string) (*data.Chat, error) {
	chat, err := cache.GetOrLoad(ctx, s.cache, cache.ChatKey(chatID), cache.ChatTTL, func() (*data.Chat, error) {
		return s.models.Chats.Get(ctx, s.models.DBConnectionPool, chatID)
	})
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(callerID) {
		return nil, fmt.Errorf("user %s is not in chat %s: %w", callerID, chatID, ErrUnauthorized)
	}
	return chat, nil
}

func (s *ChatService) ListChats(ctx context.Context, userID string, page, pageSize int) ([]data.Chat, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.UserChatsKey(userID, page), cache.ChatTTL, func() ([]data.Chat, error) {
		return s.models.Chats.ListByParticipant(ctx, userID, pageSize, (page-1)*pageSize)
	})
}

// MarkRead flags the counterpart's messages as read and returns the count.
func (s *ChatService) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	chat, err := s.GetChat(ctx, chatID, readerID)
	if err != nil {
		return 0, err
	}

	marked, err := s.models.Messages.MarkRead(ctx, s.models.DBConnectionPool, chatID, readerID)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.cache.DeletePattern(ctx, cache.MessagesPattern(chatID))
		s.cache.InvalidateUnread(ctx, readerID)
		s.cache.InvalidateUnread(ctx, chat.OtherParticipant(readerID))
	}
	return marked, nil
}

// UnreadCount returns the user's total unread messages across all their
// chats, matching the per-user cache key it is stored under.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.UnreadCountKey(userID), cache.UnreadCountTTL, func() (int, error) {
		return s.models.Messages.CountUnreadTotal(ctx, s.models.DBConnectionPool, userID)
	})
}

type SendProposalRequest struct {
	JobID        string
	ProposedRate int64
	TimelineDays int
	Terms        string
}

func (r SendProposalRequest) validate() error {
	if r.JobID == "" {
		return fmt.Errorf("%w: job ID is required", ErrInvalidInput)
	}
	if r.ProposedRate <= 0 {
		return fmt.Errorf("%w: proposed rate must be positive", ErrInvalidInput)
	}
	if r.TimelineDays <= 0 {
		return fmt.Errorf("%w: timeline must be positive", ErrInvalidInput)
	}
	return nil
}

// SendProposal posts an offer of terms into the chat. The proposal row and
// its proposal-typed message commit together.
func (s *ChatService) SendProposal(ctx context.Context, chatID, proposerID string, req SendProposalRequest) (*data.ContractProposal, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.ContractProposal, []db.PostCommitFn, error) {
		chat, err := s.models.Chats.Get(ctx, dbTx, chatID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading chat %s: %w", chatID, err)
		}
		if !chat.HasParticipant(proposerID) {
			return nil, nil, fmt.Errorf("user %s is not in chat %s: %w", proposerID, chatID, ErrUnauthorized)
		}

		job, err := s.models.Jobs.Get(ctx, dbTx, req.JobID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading job %s: %w", req.JobID, err)
		}
		if job.Status != data.OpenJobStatus {
			return nil, nil, fmt.Errorf("job %s is no longer open: %w", req.JobID, ErrInvalidInput)
		}

		proposal, err := s.models.ContractProposals.Insert(ctx, dbTx, data.ContractProposalInsert{
			ChatID:       chatID,
			JobID:        req.JobID,
			ProposerID:   proposerID,
			ProposedRate: req.ProposedRate,
			TimelineDays: req.TimelineDays,
			Terms:        req.Terms,
		})
		if err != nil {
			return nil, nil, err
		}

		if _, err = s.models.Messages.Insert(ctx, dbTx, data.MessageInsert{
			ChatID:     chatID,
			SenderID:   proposerID,
			Type:       data.ProposalMessageType,
			Content:    fmt.Sprintf("Proposed %d over %d days", proposal.ProposedRate, proposal.TimelineDays),
			ProposalID: &proposal.ID,
		}); err != nil {
			return nil, nil, err
		}
		if err = s.models.Chats.TouchLastMessage(ctx, dbTx, chatID, time.Now()); err != nil {
			return nil, nil, err
		}

		recipientID := chat.OtherParticipant(proposerID)
		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.InvalidateChat(ctx, chatID, chat.ParticipantOneID, chat.ParticipantTwoID)
			s.notifier.notifyUser(ctx, recipientID, "New contract proposal",
				"You have received a contract proposal. Review it in the chat.")
		}}
		return proposal, postCommit, nil
	})
}

// RespondProposal accepts, rejects or withdraws a pending proposal. Only the
// counterparty may accept or reject; only the proposer may withdraw. Accepting
// escrows the job budget and assigns the worker in the same flow.
func (s *ChatService) RespondProposal(ctx context.Context, proposalID, responderID string, status data.ProposalStatus) (*data.ContractProposal, error) {
	proposal, err := s.models.ContractProposals.Get(ctx, s.models.DBConnectionPool, proposalID)
	if err != nil {
		return nil, fmt.Errorf("loading proposal %s: %w", proposalID, err)
	}
	chat, err := s.models.Chats.Get(ctx, s.models.DBConnectionPool, proposal.ChatID)
	if err != nil {
		return nil, fmt.Errorf("loading chat %s: %w", proposal.ChatID, err)
	}
	if !chat.HasParticipant(responderID) {
		return nil, fmt.Errorf("user %s is not in chat %s: %w", responderID, proposal.ChatID, ErrUnauthorized)
	}

	switch status {
	case data.AcceptedProposalStatus, data.RejectedProposalStatus:
		if responderID == proposal.ProposerID {
			return nil, fmt.Errorf("proposer cannot respond to their own proposal: %w", ErrUnauthorized)
		}
	case data.WithdrawnProposalStatus:
		if responderID != proposal.ProposerID {
			return nil, fmt.Errorf("only the proposer can withdraw a proposal: %w", ErrUnauthorized)
		}
	default:
		return nil, fmt.Errorf("%w: invalid proposal response %q", ErrInvalidInput, status)
	}

	// The pending guard on the response is the one-shot anchor: it must win
	// before any side effect runs.
	proposal, err = s.models.ContractProposals.Respond(ctx, s.models.DBConnectionPool, proposalID, status)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrAlreadyResponded)
		}
		return nil, fmt.Errorf("responding to proposal %s: %w", proposalID, err)
	}

	if status == data.AcceptedProposalStatus {
		if err = s.assignFromProposal(ctx, chat, proposal); err != nil {
			// The response already consumed the pending state, so a failed
			// assignment (escrow funding, job no longer open) would strand
			// the proposal as accepted-without-worker. Put it back so the
			// acceptance can be retried.
			if reopenErr := s.models.ContractProposals.Reopen(ctx, s.models.DBConnectionPool, proposalID); reopenErr != nil {
				log.WithContext(ctx).Errorf("reopening proposal %s after failed assignment: %v", proposalID, reopenErr)
			}
			return nil, err
		}
	}

	s.cache.Delete(ctx, cache.ContractProposalKey(proposalID))
	s.cache.InvalidateChat(ctx, chat.ID, chat.ParticipantOneID, chat.ParticipantTwoID)
	if status != data.WithdrawnProposalStatus {
		s.notifier.notifyUser(ctx, proposal.ProposerID, "Proposal update",
			fmt.Sprintf("Your contract proposal was %s.", status))
	}
	return proposal, nil
}

func (s *ChatService) assignFromProposal(ctx context.Context, chat *data.Chat, proposal *data.ContractProposal) error {
	job, err := s.models.Jobs.Get(ctx, s.models.DBConnectionPool, proposal.JobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", proposal.JobID, err)
	}
	workerID := chat.OtherParticipant(job.EmployerID)
	if _, err = s.jobs.AssignWorker(ctx, proposal.JobID, job.EmployerID, workerID); err != nil {
		return fmt.Errorf("assigning worker from proposal %s: %w", proposal.ID, err)
	}
	return nil
}

func (s *ChatService) ListProposals(ctx context.Context, chatID, callerID string) ([]data.ContractProposal, error) {
	if _, err := s.GetChat(ctx, chatID, callerID); err != nil {
		return nil, err
	}
	return s.models.ContractProposals.ListByChat(ctx, chatID)
}
