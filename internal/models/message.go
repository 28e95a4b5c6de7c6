package models

import (
	"time"

	"github.com/google/uuid"
)

// Message senders.
const (
	SenderUser   = "user"
	SenderSystem = "system"
)

// Message is one chat turn. Content is stored as received; system replies
// may hold a JSON document that is only interpreted for display.
type Message struct {
	ID        uuid.UUID `db:"id" gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID `db:"session_id" gorm:"type:uuid;index;not null"`
	Content   string    `db:"content" gorm:"not null"`
	Sender    string    `db:"sender" gorm:"not null"`
	Timestamp int64     `db:"timestamp" gorm:"index"` // unix milliseconds
	CreatedAt time.Time `db:"created_at"`
}

// IsValidSender reports whether s is one of the two message senders.
func IsValidSender(s string) bool {
	return s == SenderUser || s == SenderSystem
}
