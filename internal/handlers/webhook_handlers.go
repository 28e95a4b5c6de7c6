package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
	"relaychat-backend/pkg/httputil"
)

// WebhookService is what the webhook settings routes need.
type WebhookService interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.WebhookSettingsResponse, error)
	UpdateURL(ctx context.Context, userID uuid.UUID, url string) (*models.WebhookSettingsResponse, error)
	SetVariable(ctx context.Context, userID uuid.UUID, key, value string) (*models.WebhookSettingsResponse, error)
	RemoveVariable(ctx context.Context, userID uuid.UUID, key string) (*models.WebhookSettingsResponse, error)
	ReplaceDraft(ctx context.Context, userID uuid.UUID, url string, rows []validate.VariableRow) (*models.WebhookSettingsResponse, error)
	Save(ctx context.Context, userID uuid.UUID) (*models.WebhookSettingsResponse, error)
	Test(ctx context.Context, userID uuid.UUID, sessionID string, wait bool) (webhook.TestStatus, error)
	TestStatus(userID uuid.UUID) webhook.TestStatus
	ResetTest(userID uuid.UUID) (webhook.TestStatus, error)
}

// ActiveSessionLookup resolves the session a test PING should carry.
type ActiveSessionLookup interface {
	ActiveSessionID(userID uuid.UUID) (uuid.UUID, bool)
}

type WebhookHandler struct {
	service  WebhookService
	sessions ActiveSessionLookup
	log      *zap.Logger
}

// NewWebhookHandler creates a handler. sessions may be nil, in which case
// tests without an explicit session id use the placeholder test session.
func NewWebhookHandler(svc WebhookService, sessions ActiveSessionLookup, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: svc, sessions: sessions, log: logger.Named("webhook_handler")}
}

// HandleGetSettings handles GET /v1/webhook-settings.
func (h *WebhookHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	settings, err := h.service.Get(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.log, err, "load webhook settings")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, settings)
}

// HandleReplaceSettings handles PUT /v1/webhook-settings: the whole form at
// once, optionally saved in the same call.
func (h *WebhookHandler) HandleReplaceSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.ReplaceWebhookSettingsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	settings, err := h.service.ReplaceDraft(r.Context(), userID, req.WebhookURL, req.Variables)
	if err == nil && req.Save {
		settings, err = h.service.Save(r.Context(), userID)
	}
	if err != nil {
		respondServiceError(w, h.log, err, "save webhook settings")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, settings)
}

// HandleUpdateURL handles PUT /v1/webhook-settings/url.
func (h *WebhookHandler) HandleUpdateURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateWebhookURLRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	settings, err := h.service.UpdateURL(r.Context(), userID, req.WebhookURL)
	if err != nil {
		respondServiceError(w, h.log, err, "update webhook URL")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, settings)
}

// HandleSetVariable handles PUT /v1/webhook-settings/variables/{key}.
func (h *WebhookHandler) HandleSetVariable(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.SetVariableRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	settings, err := h.service.SetVariable(r.Context(), userID, chi.URLParam(r, "key"), req.Value)
	if err != nil {
		respondServiceError(w, h.log, err, "update variable")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, settings)
}

// HandleRemoveVariable handles DELETE /v1/webhook-settings/variables/{key}.
func (h *WebhookHandler) HandleRemoveVariable(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	settings, err := h.service.RemoveVariable(r.Context(), userID, chi.URLParam(r, "key"))
	if err != nil {
		respondServiceError(w, h.log, err, "remove variable")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, settings)
}

// HandleSave handles POST /v1/webhook-settings/save.
func (h *WebhookHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	settings, err := h.service.Save(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.log, err, "save webhook settings")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, settings)
}

// HandleStartTest handles POST /v1/webhook-settings/test. It answers 202 with
// the testing status unless ?wait=true, in which case it blocks for the verdict.
func (h *WebhookHandler) HandleStartTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.WebhookTestRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	sessionID := ""
	switch {
	case req.SessionID != nil:
		sessionID = req.SessionID.String()
	case h.sessions != nil:
		if active, ok := h.sessions.ActiveSessionID(userID); ok {
			sessionID = active.String()
		}
	}

	status, err := h.service.Test(r.Context(), userID, sessionID, wait)
	if err != nil {
		respondServiceError(w, h.log, err, "test webhook")
		return
	}
	code := http.StatusAccepted
	if wait {
		code = http.StatusOK
	}
	httputil.RespondJSON(w, code, status)
}

// HandleTestStatus handles GET /v1/webhook-settings/test.
func (h *WebhookHandler) HandleTestStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, h.service.TestStatus(userID))
}

// HandleResetTest handles DELETE /v1/webhook-settings/test.
func (h *WebhookHandler) HandleResetTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	status, err := h.service.ResetTest(userID)
	if err != nil {
		respondServiceError(w, h.log, err, "reset webhook test")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, status)
}
