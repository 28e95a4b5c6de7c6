package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the database.
type User struct {
	ID             uuid.UUID `db:"id" gorm:"type:uuid;primaryKey"`
	Email          string    `db:"email" gorm:"uniqueIndex;not null"`
	HashedPassword string    `db:"hashed_password" gorm:"not null"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Session is a named conversation thread owned by one user.
type Session struct {
	ID        uuid.UUID `db:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `db:"user_id" gorm:"type:uuid;index;not null"`
	Title     string    `db:"title" gorm:"not null"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at" gorm:"index"`
}

// WebhookSettings is the per-user relay configuration. The variable map is
// kept encrypted; EncryptedVariables holds the {"encrypted": "..."} envelope.
type WebhookSettings struct {
	ID                 uuid.UUID `db:"id" gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID `db:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	WebhookURL         string    `db:"webhook_url"`
	EncryptedVariables []byte    `db:"variables"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}
