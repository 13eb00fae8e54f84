package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type ProposalStatus string

const (
	PendingProposalStatus   ProposalStatus = "pending"
	AcceptedProposalStatus  ProposalStatus = "accepted"
	RejectedProposalStatus  ProposalStatus = "rejected"
	WithdrawnProposalStatus ProposalStatus = "withdrawn"
)

// ContractProposal is an in-chat offer of terms for a job. Accepting one is
// what creates the job contract and assigns the worker.
type ContractProposal struct {
	ID           string         `json:"id" db:"id"`
	ChatID       string         `json:"chat_id" db:"chat_id"`
	JobID        string         `json:"job_id" db:"job_id"`
	ProposerID   string         `json:"proposer_id" db:"proposer_id"`
	ProposedRate int64          `json:"proposed_rate" db:"proposed_rate"`
	TimelineDays int            `json:"timeline_days" db:"timeline_days"`
	Terms        string         `json:"terms" db:"terms"`
	Status       ProposalStatus `json:"status" db:"status"`
	RespondedAt  *time.Time     `json:"responded_at,omitempty" db:"responded_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

type ContractProposalInsert struct {
	ChatID       string
	JobID        string
	ProposerID   string
	ProposedRate int64
	TimelineDays int
	Terms        string
}

type ContractProposalModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *ContractProposalModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert ContractProposalInsert) (*ContractProposal, error) {
	var proposal ContractProposal
	query := `
		INSERT INTO contract_proposals (chat_id, job_id, proposer_id, proposed_rate, timeline_days, terms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &proposal, query,
		insert.ChatID, insert.JobID, insert.ProposerID, insert.ProposedRate, insert.TimelineDays, insert.Terms)
	if err != nil {
		return nil, fmt.Errorf("inserting proposal for job %s: %w", insert.JobID, err)
	}
	return &proposal, nil
}

func (m *ContractProposalModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*ContractProposal, error) {
	var proposal ContractProposal
	query := `SELECT * FROM contract_proposals WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &proposal, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying proposal %s: %w", id, err)
	}
	return &proposal, nil
}

// Respond moves a pending proposal to its final status. The pending guard
// makes the response a one-shot operation.
func (m *ContractProposalModel) Respond(ctx context.Context, sqlExec db.SQLExecuter, proposalID string, status ProposalStatus) (*ContractProposal, error) {
	var proposal ContractProposal
	query := `
		UPDATE contract_proposals
		SET status = $1, responded_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &proposal, query, status, proposalID, PendingProposalStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("responding to proposal %s: %w", proposalID, err)
	}
	return &proposal, nil
}

// Reopen puts an accepted proposal back to pending. Used as compensation when
// the side effects of acceptance (escrow funding, worker assignment) fail
// after the one-shot response already consumed the pending state.
func (m *ContractProposalModel) Reopen(ctx context.Context, sqlExec db.SQLExecuter, proposalID string) error {
	query := `
		UPDATE contract_proposals
		SET status = $1, responded_at = NULL
		WHERE id = $2 AND status = $3
	`
	result, err := sqlExec.ExecContext(ctx, query, PendingProposalStatus, proposalID, AcceptedProposalStatus)
	if err != nil {
		return fmt.Errorf("reopening proposal %s: %w", proposalID, err)
	}
	return checkSingleRowAffected(result)
}

func (m *ContractProposalModel) ListByChat(ctx context.Context, chatID string) ([]ContractProposal, error) {
	proposals := []ContractProposal{}
	query := `SELECT * FROM contract_proposals WHERE chat_id = $1 ORDER BY created_at DESC`
	if err := m.dbConnectionPool.SelectContext(ctx, &proposals, query, chatID); err != nil {
		return nil, fmt.Errorf("listing proposals for chat %s: %w", chatID, err)
	}
	return proposals, nil
}
