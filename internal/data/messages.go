package data

import (
	"context"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type MessageType string

const (
	TextMessageType     MessageType = "text"
	ImageMessageType    MessageType = "image"
	ProposalMessageType MessageType = "proposal"
	SystemMessageType   MessageType = "system"
)

type Message struct {
	ID         string      `json:"id" db:"id"`
	ChatID     string      `json:"chat_id" db:"chat_id"`
	SenderID   string      `json:"sender_id" db:"sender_id"`
	Type       MessageType `json:"message_type" db:"message_type"`
	Content    string      `json:"content" db:"content"`
	ImageURL   *string     `json:"image_url,omitempty" db:"image_url"`
	ProposalID *string     `json:"proposal_id,omitempty" db:"proposal_id"`
	IsRead     bool        `json:"is_read" db:"is_read"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

type MessageInsert struct {
	ChatID     string
	SenderID   string
	Type       MessageType
	Content    string
	ImageURL   *string
	ProposalID *string
}

type MessageModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *MessageModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert MessageInsert) (*Message, error) {
	var message Message
	query := `
		INSERT INTO messages (chat_id, sender_id, message_type, content, image_url, proposal_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &message, query,
		insert.ChatID, insert.SenderID, insert.Type, insert.Content, insert.ImageURL, insert.ProposalID)
	if err != nil {
		return nil, fmt.Errorf("inserting message in chat %s: %w", insert.ChatID, err)
	}
	return &message, nil
}

// ListByChat returns a page of messages, newest first.
func (m *MessageModel) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]Message, error) {
	messages := []Message{}
	query := `
		SELECT * FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &messages, query, chatID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing messages for chat %s: %w", chatID, err)
	}
	return messages, nil
}

// MarkRead flags every unread message sent by the counterpart as read and
// returns how many it flagged.
func (m *MessageModel) MarkRead(ctx context.Context, sqlExec db.SQLExecuter, chatID, readerID string) (int64, error) {
	query := `
		UPDATE messages
		SET is_read = TRUE
		WHERE chat_id = $1 AND sender_id != $2 AND is_read = FALSE
	`
	result, err := sqlExec.ExecContext(ctx, query, chatID, readerID)
	if err != nil {
		return 0, fmt.Errorf("marking messages read in chat %s: %w", chatID, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting number of rows affected: %w", err)
	}
	return numRowsAffected, nil
}

// CountUnread counts messages addressed to the reader that are still unread.
func (m *MessageModel) CountUnread(ctx context.Context, sqlExec db.SQLExecuter, chatID, readerID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM messages
		WHERE chat_id = $1 AND sender_id != $2 AND is_read = FALSE
	`
	if err := sqlExec.GetContext(ctx, &count, query, chatID, readerID); err != nil {
		return 0, fmt.Errorf("counting unread messages in chat %s: %w", chatID, err)
	}
	return count, nil
}

// CountUnreadTotal counts the user's unread messages across every chat they
// participate in. This is the figure behind the per-user unread badge.
func (m *MessageModel) CountUnreadTotal(ctx context.Context, sqlExec db.SQLExecuter, userID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE (c.participant_one_id = $1 OR c.participant_two_id = $1)
			AND m.sender_id != $1
			AND m.is_read = FALSE
	`
	if err := sqlExec.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("counting unread messages for user %s: %w", userID, err)
	}
	return count, nil
}
