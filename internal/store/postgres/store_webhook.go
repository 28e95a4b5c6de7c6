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

const getWebhookSettings = `-- name: GetWebhookSettings :one
SELECT id, user_id, webhook_url, variables, created_at, updated_at
FROM webhook_settings
WHERE user_id = $1;
`

// GetWebhookSettings returns the user's settings row, store.ErrNotFound if never saved.
func (s *PostgresStore) GetWebhookSettings(ctx context.Context, userID uuid.UUID) (*models.WebhookSettings, error) {
	return scanWebhookSettings(s.db.QueryRow(ctx, getWebhookSettings, userID))
}

const upsertWebhookSettings = `-- name: UpsertWebhookSettings :one
INSERT INTO webhook_settings (id, user_id, webhook_url, variables)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET webhook_url = EXCLUDED.webhook_url,
    variables = EXCLUDED.variables,
    updated_at = NOW()
RETURNING id, user_id, webhook_url, variables, created_at, updated_at;
`

// UpsertWebhookSettings writes the singleton settings row; the last write wins.
func (s *PostgresStore) UpsertWebhookSettings(ctx context.Context, arg store.UpsertWebhookSettingsParams) (*models.WebhookSettings, error) {
	vars := arg.EncryptedVariables
	if len(vars) == 0 {
		vars = []byte(`{}`)
	}
	return scanWebhookSettings(s.db.QueryRow(ctx, upsertWebhookSettings, uuid.New(), arg.UserID, arg.WebhookURL, vars))
}

func scanWebhookSettings(row pgx.Row) (*models.WebhookSettings, error) {
	var i models.WebhookSettings
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.WebhookURL,
		&i.EncryptedVariables, // raw JSONB envelope
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning webhook settings: %w", err)
	}
	return &i, nil
}
