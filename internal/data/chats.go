package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

// Chat is a one-to-one conversation. Participants are stored in canonical
// order (participant_one_id < participant_two_id) so each pair maps to
// exactly one row regardless of who opened it.
type Chat struct {
	ID               string     `json:"id" db:"id"`
	ParticipantOneID string     `json:"participant_one_id" db:"participant_one_id"`
	ParticipantTwoID string     `json:"participant_two_id" db:"participant_two_id"`
	JobID            *string    `json:"job_id,omitempty" db:"job_id"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// HasParticipant reports whether the user is one of the two participants.
func (c *Chat) HasParticipant(userID string) bool {
	return c.ParticipantOneID == userID || c.ParticipantTwoID == userID
}

// OtherParticipant returns the counterpart of the given participant.
func (c *Chat) OtherParticipant(userID string) string {
	if c.ParticipantOneID == userID {
		return c.ParticipantTwoID
	}
	return c.ParticipantOneID
}

// CanonicalParticipants orders a pair of user IDs the way the chats table
// stores them.
func CanonicalParticipants(userA, userB string) (string, string) {
	if userA < userB {
		return userA, userB
	}
	return userB, userA
}

type ChatModel struct {
	dbConnectionPool db.DBConnectionPool
}

// GetOrCreate returns the chat between two users, creating it on first
// contact. The ON CONFLICT clause makes concurrent first messages converge on
// the same row.
func (m *ChatModel) GetOrCreate(ctx context.Context, sqlExec db.SQLExecuter, userA, userB string, jobID *string) (*Chat, error) {
	if userA == userB {
		return nil, fmt.Errorf("validating chat participants: %w", ErrMissingInput)
	}
	participantOne, participantTwo := CanonicalParticipants(userA, userB)

	var chat Chat
	query := `
		INSERT INTO chats (participant_one_id, participant_two_id, job_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_one_id, participant_two_id) DO UPDATE SET participant_one_id = EXCLUDED.participant_one_id
		RETURNING *
	`
	if err := sqlExec.GetContext(ctx, &chat, query, participantOne, participantTwo, jobID); err != nil {
		return nil, fmt.Errorf("getting or creating chat: %w", err)
	}
	return &chat, nil
}

func (m *ChatModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Chat, error) {
	var chat Chat
	query := `SELECT * FROM chats WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &chat, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying chat %s: %w", id, err)
	}
	return &chat, nil
}

// TouchLastMessage bumps the ordering timestamp used by chat lists.
func (m *ChatModel) TouchLastMessage(ctx context.Context, sqlExec db.SQLExecuter, chatID string, at time.Time) error {
	query := `UPDATE chats SET last_message_at = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, at, chatID)
	if err != nil {
		return fmt.Errorf("touching chat %s: %w", chatID, err)
	}
	return checkSingleRowAffected(result)
}

// ListByParticipant returns a user's chats, most recently active first.
func (m *ChatModel) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]Chat, error) {
	chats := []Chat{}
	query := `
		SELECT * FROM chats
		WHERE participant_one_id = $1 OR participant_two_id = $1
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &chats, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing chats for user %s: %w", userID, err)
	}
	return chats, nil
}
