package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/services"
	"relaychat-backend/pkg/httputil"
)

// SessionService is the part of the chat service the session routes use.
type SessionService interface {
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	CreateSession(ctx context.Context, userID uuid.UUID, title *string) (*models.Session, error)
	RenameSession(ctx context.Context, userID, sessionID uuid.UUID, title string) (*models.Session, error)
	DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error
	DeleteSessions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type SessionHandler struct {
	service SessionService
	log     *zap.Logger
}

func NewSessionHandler(svc SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{service: svc, log: logger.Named("session_handler")}
}

// HandleListSessions handles GET /v1/sessions.
func (h *SessionHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessions, err := h.service.ListSessions(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.log, err, "load chat sessions")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.ListSessionsResponse{Sessions: services.SessionsToResponse(sessions)})
}

// HandleCreateSession handles POST /v1/sessions. The body is optional.
func (h *SessionHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.CreateSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	sess, err := h.service.CreateSession(r.Context(), userID, req.Title)
	if err != nil {
		respondServiceError(w, h.log, err, "create chat session")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, services.SessionToResponse(sess))
}

// HandleRenameSession handles PATCH /v1/sessions/{sessionID}.
func (h *SessionHandler) HandleRenameSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	var req models.RenameSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	sess, err := h.service.RenameSession(r.Context(), userID, sessionID, req.Title)
	if err != nil {
		respondServiceError(w, h.log, err, "rename chat session")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, services.SessionToResponse(sess))
}

// HandleDeleteSession handles DELETE /v1/sessions/{sessionID}.
func (h *SessionHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(r.Context(), userID, sessionID); err != nil {
		respondServiceError(w, h.log, err, "delete chat session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBatchDeleteSessions handles POST /v1/sessions/batch-delete.
func (h *SessionHandler) HandleBatchDeleteSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.BatchDeleteSessionsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	deleted, err := h.service.DeleteSessions(r.Context(), userID, req.IDs)
	if err != nil {
		respondServiceError(w, h.log, err, "delete chat sessions")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.BatchDeleteSessionsResponse{Deleted: deleted})
}
