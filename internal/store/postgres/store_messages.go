package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
)

const listMessages = `-- name: ListMessages :many
SELECT m.id, m.session_id, m.content, m.sender, m.timestamp_ms, m.created_at
FROM messages m
JOIN sessions s ON s.id = m.session_id
WHERE m.session_id = $1 AND s.user_id = $2
ORDER BY m.timestamp_ms ASC, m.created_at ASC;
`

// ListMessages returns a session's history. A session the user does not own,
// or one that no longer exists, yields store.ErrNotFound.
func (s *PostgresStore) ListMessages(ctx context.Context, sessionID, userID uuid.UUID) ([]models.Message, error) {
	if _, err := s.GetSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, listMessages, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("database error listing messages: %w", err)
	}
	defer rows.Close()

	items := []models.Message{}
	for rows.Next() {
		var i models.Message
		if err := rows.Scan(&i.ID, &i.SessionID, &i.Content, &i.Sender, &i.Timestamp, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return items, nil
}

const touchSession = `-- name: TouchSession :execrows
UPDATE sessions
SET updated_at = NOW()
WHERE id = $1 AND user_id = $2;
`

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (id, session_id, content, sender, timestamp_ms)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, session_id, content, sender, timestamp_ms, created_at;
`

// CreateMessage appends a message and bumps the owning session's activity
// time in one transaction.
func (s *PostgresStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*models.Message, error) {
	if arg.ID == uuid.Nil {
		arg.ID = uuid.New()
	}
	if arg.Timestamp == 0 {
		arg.Timestamp = time.Now().UnixMilli()
	}

	var msg models.Message
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, touchSession, arg.SessionID, arg.UserID)
		if err != nil {
			return fmt.Errorf("database error touching session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		err = tx.QueryRow(ctx, createMessage, arg.ID, arg.SessionID, arg.Content, arg.Sender, arg.Timestamp).
			Scan(&msg.ID, &msg.SessionID, &msg.Content, &msg.Sender, &msg.Timestamp, &msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("database error creating message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
