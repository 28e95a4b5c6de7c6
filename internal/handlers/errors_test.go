package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"relaychat-backend/internal/services"
	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"field errors", validate.FieldErrors{"title": "Title cannot be empty"}, http.StatusBadRequest,
			`{"error":"Validation failed","fields":{"title":"Title cannot be empty"}}`},
		{"invalid sender", services.ErrInvalidSender, http.StatusBadRequest, ""},
		{"bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, ""},
		{"missing session", fmt.Errorf("wrapped: %w", services.ErrSessionNotFound), http.StatusNotFound,
			`{"error":"Session not found"}`},
		{"duplicate user", services.ErrUserAlreadyExists, http.StatusConflict, ""},
		{"test running", webhook.ErrTestInProgress, http.StatusConflict, ""},
		{"no webhook", &webhook.RelayError{Kind: webhook.KindConfig}, http.StatusUnprocessableEntity, ""},
		{"backend", errors.New("connection reset"), http.StatusInternalServerError,
			`{"error":"Failed to load chat sessions. Please try again."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondServiceError(rec, zap.NewNop(), tt.err, "load chat sessions")
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRelayErrorResponse(t *testing.T) {
	resp := relayErrorResponse(&webhook.RelayError{Kind: webhook.KindTimeout, Timeout: webhook.DefaultTimeout})
	assert.Equal(t, "timeout", resp.Kind)
	assert.Equal(t, "timed out after 10 seconds", resp.Message)

	resp = relayErrorResponse(errors.New("boom"))
	assert.Equal(t, "request", resp.Kind)
}
