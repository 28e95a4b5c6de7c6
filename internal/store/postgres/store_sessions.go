package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
)

const sessionColumns = `id, user_id, title, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var i models.Session
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Title,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning session: %w", err)
	}
	return &i, nil
}

const listSessions = `-- name: ListSessions :many
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1
ORDER BY updated_at DESC, created_at DESC;
`

func (s *PostgresStore) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	rows, err := s.db.Query(ctx, listSessions, userID)
	if err != nil {
		return nil, fmt.Errorf("database error listing sessions: %w", err)
	}
	defer rows.Close()

	items := []models.Session{}
	for rows.Next() {
		i, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return items, nil
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + `
FROM sessions
WHERE id = $1 AND user_id = $2;
`

func (s *PostgresStore) GetSession(ctx context.Context, id, userID uuid.UUID) (*models.Session, error) {
	return scanSession(s.db.QueryRow(ctx, getSession, id, userID))
}

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (id, user_id, title)
VALUES ($1, $2, $3)
RETURNING ` + sessionColumns + `;
`

func (s *PostgresStore) CreateSession(ctx context.Context, arg store.CreateSessionParams) (*models.Session, error) {
	if arg.ID == uuid.Nil {
		arg.ID = uuid.New()
	}
	sess, err := scanSession(s.db.QueryRow(ctx, createSession, arg.ID, arg.UserID, arg.Title))
	if err != nil && isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	return sess, err
}

const renameSession = `-- name: RenameSession :one
UPDATE sessions
SET title = $3, updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING ` + sessionColumns + `;
`

func (s *PostgresStore) RenameSession(ctx context.Context, id, userID uuid.UUID, title string) (*models.Session, error) {
	return scanSession(s.db.QueryRow(ctx, renameSession, id, userID, title))
}

const deleteSession = `-- name: DeleteSession :exec
DELETE FROM sessions
WHERE id = $1 AND user_id = $2;
`

// DeleteSession removes a session; its messages go with it through ON DELETE CASCADE.
func (s *PostgresStore) DeleteSession(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteSession, id, userID)
	if err != nil {
		return fmt.Errorf("database error deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const deleteSessions = `-- name: DeleteSessions :execrows
DELETE FROM sessions
WHERE user_id = $1 AND id = ANY($2::uuid[]);
`

func (s *PostgresStore) DeleteSessions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	tag, err := s.db.Exec(ctx, deleteSessions, userID, strIDs)
	if err != nil {
		return 0, fmt.Errorf("database error deleting sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
