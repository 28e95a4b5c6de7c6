package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/auth"
	"relaychat-backend/internal/services"
	"relaychat-backend/internal/validate"
	"relaychat-backend/pkg/httputil"
)

// respondServiceError maps service errors to HTTP status codes. Anything it
// does not recognise is logged and answered with a generic 500 banner.
func respondServiceError(w http.ResponseWriter, log *zap.Logger, err error, action string) {
	var fields validate.FieldErrors
	switch {
	case errors.As(err, &fields):
		httputil.RespondFieldErrors(w, "Validation failed", fields)
	case errors.Is(err, services.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error()) // 400
	case errors.Is(err, services.ErrInvalidCredentials):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error()) // 401
	case errors.Is(err, services.ErrSessionNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Session not found") // 404
	case errors.Is(err, services.ErrUserNotFound):
		httputil.RespondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrUserAlreadyExists), errors.Is(err, services.ErrTestInProgress):
		httputil.RespondError(w, http.StatusConflict, err.Error()) // 409
	case errors.Is(err, services.ErrNoWebhookConfigured):
		httputil.RespondError(w, http.StatusUnprocessableEntity, "No webhook configured. Set a webhook URL in settings first.") // 422
	default:
		log.Error(action+" failed", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to "+action+". Please try again.")
	}
}

// requireUser reads the authenticated user id placed in the context by the
// JWT middleware.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}
