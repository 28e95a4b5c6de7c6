// Package client is a typed HTTP client for the relaychat API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to one server on behalf of one user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client. A nil httpClient gets a 30 second timeout, which is
// longer than any webhook round trip the server waits for.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

// --- Auth ---

func (c *Client) Signup(ctx context.Context, email, password, confirm string) (*models.UserResponse, error) {
	var out models.UserResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/signup", models.SignupRequest{Email: email, Password: password, ConfirmPassword: confirm}, &out)
	return &out, err
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", models.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.token = out.AccessToken
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*models.UserResponse, error) {
	var out models.UserResponse
	err := c.do(ctx, http.MethodGet, "/v1/me", nil, &out)
	return &out, err
}

// --- Sessions ---

func (c *Client) ListSessions(ctx context.Context) ([]models.SessionResponse, error) {
	var out models.ListSessionsResponse
	err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &out)
	return out.Sessions, err
}

func (c *Client) CreateSession(ctx context.Context, title *string) (*models.SessionResponse, error) {
	var out models.SessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/sessions", models.CreateSessionRequest{Title: title}, &out)
	return &out, err
}

func (c *Client) RenameSession(ctx context.Context, id uuid.UUID, title string) (*models.SessionResponse, error) {
	var out models.SessionResponse
	err := c.do(ctx, http.MethodPatch, "/v1/sessions/"+id.String(), models.RenameSessionRequest{Title: title}, &out)
	return &out, err
}

func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+id.String(), nil, nil)
}

// DeleteSessions removes several sessions. An empty selection returns
// without calling the server.
func (c *Client) DeleteSessions(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var out models.BatchDeleteSessionsResponse
	err := c.do(ctx, http.MethodPost, "/v1/sessions/batch-delete", models.BatchDeleteSessionsRequest{IDs: ids}, &out)
	return out.Deleted, err
}

// --- Messages ---

func (c *Client) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.MessageResponse, error) {
	var out models.ListMessagesResponse
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID.String()+"/messages", nil, &out)
	return out.Messages, err
}

func (c *Client) AddSystemMessage(ctx context.Context, sessionID uuid.UUID, content string) (*models.MessageResponse, error) {
	var out models.MessageResponse
	err := c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID.String()+"/messages/system", models.AddMessageRequest{Content: content}, &out)
	return &out, err
}

// SendMessage stores a user message and relays it. A nil sessionID uses the
// server side active session.
func (c *Client) SendMessage(ctx context.Context, sessionID *uuid.UUID, content string) (*models.SendMessageResponse, error) {
	var out models.SendMessageResponse
	err := c.do(ctx, http.MethodPost, "/v1/messages", models.SendMessageRequest{SessionID: sessionID, Content: content}, &out)
	return &out, err
}

func (c *Client) ChatState(ctx context.Context) (*models.ChatStateResponse, error) {
	var out models.ChatStateResponse
	err := c.do(ctx, http.MethodGet, "/v1/chat/state", nil, &out)
	return &out, err
}

// --- Webhook settings ---

func (c *Client) WebhookSettings(ctx context.Context) (*models.WebhookSettingsResponse, error) {
	var out models.WebhookSettingsResponse
	err := c.do(ctx, http.MethodGet, "/v1/webhook-settings", nil, &out)
	return &out, err
}

func (c *Client) ReplaceWebhookSettings(ctx context.Context, webhookURL string, rows []validate.VariableRow, save bool) (*models.WebhookSettingsResponse, error) {
	var out models.WebhookSettingsResponse
	req := models.ReplaceWebhookSettingsRequest{WebhookURL: webhookURL, Variables: rows, Save: save}
	err := c.do(ctx, http.MethodPut, "/v1/webhook-settings", req, &out)
	return &out, err
}

func (c *Client) UpdateWebhookURL(ctx context.Context, webhookURL string) (*models.WebhookSettingsResponse, error) {
	var out models.WebhookSettingsResponse
	err := c.do(ctx, http.MethodPut, "/v1/webhook-settings/url", models.UpdateWebhookURLRequest{WebhookURL: webhookURL}, &out)
	return &out, err
}

func (c *Client) SetVariable(ctx context.Context, key, value string) (*models.WebhookSettingsResponse, error) {
	var out models.WebhookSettingsResponse
	err := c.do(ctx, http.MethodPut, "/v1/webhook-settings/variables/"+url.PathEscape(key), models.SetVariableRequest{Value: value}, &out)
	return &out, err
}

func (c *Client) RemoveVariable(ctx context.Context, key string) (*models.WebhookSettingsResponse, error) {
	var out models.WebhookSettingsResponse
	err := c.do(ctx, http.MethodDelete, "/v1/webhook-settings/variables/"+url.PathEscape(key), nil, &out)
	return &out, err
}

func (c *Client) SaveWebhookSettings(ctx context.Context) (*models.WebhookSettingsResponse, error) {
	var out models.WebhookSettingsResponse
	err := c.do(ctx, http.MethodPost, "/v1/webhook-settings/save", nil, &out)
	return &out, err
}

// StartWebhookTest PINGs the webhook. Without wait it returns the testing
// status at once and the verdict is read with WebhookTestStatus.
func (c *Client) StartWebhookTest(ctx context.Context, sessionID *uuid.UUID, wait bool) (*webhook.TestStatus, error) {
	var out webhook.TestStatus
	path := "/v1/webhook-settings/test"
	if wait {
		path += "?wait=true"
	}
	err := c.do(ctx, http.MethodPost, path, models.WebhookTestRequest{SessionID: sessionID}, &out)
	return &out, err
}

func (c *Client) WebhookTestStatus(ctx context.Context) (*webhook.TestStatus, error) {
	var out webhook.TestStatus
	err := c.do(ctx, http.MethodGet, "/v1/webhook-settings/test", nil, &out)
	return &out, err
}

func (c *Client) ResetWebhookTest(ctx context.Context) (*webhook.TestStatus, error) {
	var out webhook.TestStatus
	err := c.do(ctx, http.MethodDelete, "/v1/webhook-settings/test", nil, &out)
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil {
			apiErr.Message = er.Error
			apiErr.Fields = er.Fields
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
