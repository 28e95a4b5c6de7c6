package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/services"
	"relaychat-backend/internal/webhook"
	"relaychat-backend/pkg/httputil"
)

// MessageService is the part of the chat service the message routes use.
type MessageService interface {
	LoadHistory(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Message, error)
	AddMessage(ctx context.Context, userID, sessionID uuid.UUID, sender, content string) (*models.Message, error)
	SendMessage(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, content string) (*services.SendResult, error)
	State(ctx context.Context, userID uuid.UUID) (*services.ChatState, error)
}

type MessageHandler struct {
	service MessageService
	log     *zap.Logger
}

func NewMessageHandler(svc MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{service: svc, log: logger.Named("message_handler")}
}

// HandleListMessages handles GET /v1/sessions/{sessionID}/messages. It also
// makes the session the caller's active one.
func (h *MessageHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	msgs, err := h.service.LoadHistory(r.Context(), userID, sessionID)
	if err != nil {
		respondServiceError(w, h.log, err, "load chat history")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.ListMessagesResponse{Messages: services.MessagesToResponse(msgs)})
}

// HandleAddUserMessage handles POST /v1/sessions/{sessionID}/messages.
func (h *MessageHandler) HandleAddUserMessage(w http.ResponseWriter, r *http.Request) {
	h.addMessage(w, r, models.SenderUser)
}

// HandleAddSystemMessage handles POST /v1/sessions/{sessionID}/messages/system.
func (h *MessageHandler) HandleAddSystemMessage(w http.ResponseWriter, r *http.Request) {
	h.addMessage(w, r, models.SenderSystem)
}

func (h *MessageHandler) addMessage(w http.ResponseWriter, r *http.Request, sender string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	var req models.AddMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	msg, err := h.service.AddMessage(r.Context(), userID, sessionID, sender, req.Content)
	if err != nil {
		respondServiceError(w, h.log, err, "save message")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, services.MessageToResponse(msg))
}

// HandleSendMessage handles POST /v1/messages: store the user message, relay
// it to the webhook and store the reply. A relay failure is not an HTTP
// error; it comes back in relay_error next to the stored user message.
func (h *MessageHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := h.service.SendMessage(r.Context(), userID, req.SessionID, req.Content)
	if err != nil && result == nil {
		respondServiceError(w, h.log, err, "send message")
		return
	}
	if err != nil {
		// user message stored, reply could not be
		h.log.Error("storing webhook reply failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	resp := models.SendMessageResponse{
		Session:     services.SessionToResponse(&result.Session),
		UserMessage: services.MessageToResponse(&result.UserMessage),
	}
	if result.Reply != nil {
		reply := services.MessageToResponse(result.Reply)
		resp.Reply = &reply
	}
	if result.RelayErr != nil {
		resp.RelayError = relayErrorResponse(result.RelayErr)
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleChatState handles GET /v1/chat/state.
func (h *MessageHandler) HandleChatState(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	st, err := h.service.State(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.log, err, "load chat sessions")
		return
	}
	resp := models.ChatStateResponse{
		Sessions: services.SessionsToResponse(st.Sessions),
		Messages: services.MessagesToResponse(st.Messages),
	}
	if st.ActiveSessionID != uuid.Nil {
		active := st.ActiveSessionID
		resp.ActiveSessionID = &active
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

func relayErrorResponse(err error) *models.RelayErrorResponse {
	out := &models.RelayErrorResponse{Kind: string(webhook.KindRequest), Message: err.Error()}
	var relayErr *webhook.RelayError
	if errors.As(err, &relayErr) {
		out.Kind = string(relayErr.Kind)
	}
	return out
}
