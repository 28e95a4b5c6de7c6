package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"relaychat-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a unique constraint would be violated.
var ErrConflict = errors.New("record already exists")

// CreateSessionParams contains parameters for creating a session.
type CreateSessionParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Title  string
}

// CreateMessageParams contains parameters for appending a message.
// Timestamp is unix milliseconds; zero means now.
type CreateMessageParams struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	UserID    uuid.UUID // owner check on the session
	Content   string
	Sender    string
	Timestamp int64
}

// UpsertWebhookSettingsParams contains parameters for saving the per-user webhook settings.
// EncryptedVariables is the sealed {"encrypted": "..."} envelope.
type UpsertWebhookSettingsParams struct {
	UserID             uuid.UUID
	WebhookURL         string
	EncryptedVariables []byte
}

// Store defines the interface for database operations.
// Every session and message call is scoped to its owning user; rows of
// another user behave as missing.
type Store interface {
	// User operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Session operations
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) // most recently updated first
	GetSession(ctx context.Context, id, userID uuid.UUID) (*models.Session, error)
	CreateSession(ctx context.Context, arg CreateSessionParams) (*models.Session, error)
	RenameSession(ctx context.Context, id, userID uuid.UUID, title string) (*models.Session, error)
	DeleteSession(ctx context.Context, id, userID uuid.UUID) error
	DeleteSessions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)

	// Message operations
	ListMessages(ctx context.Context, sessionID, userID uuid.UUID) ([]models.Message, error) // timestamp ascending
	CreateMessage(ctx context.Context, arg CreateMessageParams) (*models.Message, error)

	// Webhook settings operations
	GetWebhookSettings(ctx context.Context, userID uuid.UUID) (*models.WebhookSettings, error)
	UpsertWebhookSettings(ctx context.Context, arg UpsertWebhookSettingsParams) (*models.WebhookSettings, error)

	Close() error
}
