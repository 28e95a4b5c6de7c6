package models

import (
	"time"

	"github.com/google/uuid"

	"relaychat-backend/internal/validate"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
// Fields carries per-field validation messages for forms.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// --- Session DTOs ---

// CreateSessionRequest defines the body for creating a session. An absent
// title gets the default one.
type CreateSessionRequest struct {
	Title *string `json:"title,omitempty"`
}

// RenameSessionRequest defines the body for renaming a session.
type RenameSessionRequest struct {
	Title string `json:"title"`
}

// BatchDeleteSessionsRequest defines the body for deleting several sessions at once.
type BatchDeleteSessionsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// BatchDeleteSessionsResponse reports how many sessions were removed.
type BatchDeleteSessionsResponse struct {
	Deleted int64 `json:"deleted"`
}

// SessionResponse defines the data returned for a session.
type SessionResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListSessionsResponse wraps a session list, most recently active first.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// --- Message DTOs ---

// AddMessageRequest defines the body for appending a message to a session.
type AddMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageRequest defines the body for the send-and-relay endpoint.
// Without a session id the active session is used, or one is created.
type SendMessageRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Content   string     `json:"content"`
}

// MessageResponse defines the data returned for a message. DisplayText is
// the content as a chat bubble should show it.
type MessageResponse struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Content     string    `json:"content"`
	DisplayText string    `json:"display_text"`
	Sender      string    `json:"sender"`
	Timestamp   int64     `json:"timestamp"`
}

// ListMessagesResponse wraps a message history in timestamp order.
type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// RelayErrorResponse describes a failed webhook round trip.
type RelayErrorResponse struct {
	Kind    string `json:"kind"` // config, request or timeout
	Message string `json:"message"`
}

// SendMessageResponse is returned by the send-and-relay endpoint. The user
// message is always present; Reply and RelayError are mutually exclusive.
type SendMessageResponse struct {
	Session     SessionResponse     `json:"session"`
	UserMessage MessageResponse     `json:"user_message"`
	Reply       *MessageResponse    `json:"reply,omitempty"`
	RelayError  *RelayErrorResponse `json:"relay_error,omitempty"`
}

// ChatStateResponse is a snapshot of the caller's cached chat state.
type ChatStateResponse struct {
	Sessions        []SessionResponse `json:"sessions"`
	ActiveSessionID *uuid.UUID        `json:"active_session_id,omitempty"`
	Messages        []MessageResponse `json:"messages"`
}

// --- Webhook Settings DTOs ---

// WebhookSettingsResponse is the caller's webhook draft. Dirty is set when
// the draft has edits that were not saved yet.
type WebhookSettingsResponse struct {
	WebhookURL string            `json:"webhook_url"`
	Variables  map[string]string `json:"variables"`
	Dirty      bool              `json:"dirty"`
	SavedAt    *time.Time        `json:"saved_at,omitempty"`
}

// ReplaceWebhookSettingsRequest is a whole settings form submission.
type ReplaceWebhookSettingsRequest struct {
	WebhookURL string                 `json:"webhook_url"`
	Variables  []validate.VariableRow `json:"variables"`
	Save       bool                   `json:"save"`
}

// UpdateWebhookURLRequest edits the draft URL.
type UpdateWebhookURLRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// SetVariableRequest edits one draft variable.
type SetVariableRequest struct {
	Value string `json:"value"`
}

// WebhookTestRequest starts a connectivity test. Without a session id the
// active session is used.
type WebhookTestRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}
