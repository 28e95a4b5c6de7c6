package services

import (
	"relaychat-backend/internal/models"
	"relaychat-backend/internal/webhook"
)

// SessionToResponse maps a stored session to its API shape.
func SessionToResponse(s *models.Session) models.SessionResponse {
	return models.SessionResponse{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

// SessionsToResponse maps a session list.
func SessionsToResponse(sessions []models.Session) []models.SessionResponse {
	out := make([]models.SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = SessionToResponse(&sessions[i])
	}
	return out
}

// MessageToResponse maps a stored message and fills in its display text.
func MessageToResponse(m *models.Message) models.MessageResponse {
	return models.MessageResponse{
		ID:          m.ID,
		SessionID:   m.SessionID,
		Content:     m.Content,
		DisplayText: webhook.FormatContent(m.Sender, m.Content),
		Sender:      m.Sender,
		Timestamp:   m.Timestamp,
	}
}

// MessagesToResponse maps a message list.
func MessagesToResponse(msgs []models.Message) []models.MessageResponse {
	out := make([]models.MessageResponse, len(msgs))
	for i := range msgs {
		out[i] = MessageToResponse(&msgs[i])
	}
	return out
}
