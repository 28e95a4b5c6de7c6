package api

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relaychat-backend/internal/config"
	"relaychat-backend/internal/crypto"
	"relaychat-backend/internal/events"
	"relaychat-backend/internal/handlers"
	"relaychat-backend/internal/models"
	"relaychat-backend/internal/services"
	"relaychat-backend/internal/store/memstore"
	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:       "test-secret",
		TokenExpiration: time.Hour,
		AllowedOrigins:  []string{"http://localhost:5173"},
	}
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	aead, err := crypto.NewAESGCM(key)
	require.NoError(t, err)

	logger := zap.NewNop()
	st := memstore.New()
	hub := events.NewHub(16, logger)
	relay := webhook.NewRelay(nil, time.Second, logger)
	tester := webhook.NewTester(relay, relay.Timeout(), 0, logger)

	authSvc := services.NewAuthService(st, cfg, logger)
	webhookSvc := services.NewWebhookService(st, aead, relay, tester, hub, logger)
	chatSvc := services.NewChatService(st, webhookSvc, hub, logger)

	router := NewRouter(RouterDependencies{
		AuthHandler:    handlers.NewAuthHandler(authSvc, logger),
		SessionHandler: handlers.NewSessionHandler(chatSvc, logger),
		MessageHandler: handlers.NewMessageHandler(chatSvc, logger),
		WebhookHandler: handlers.NewWebhookHandler(webhookSvc, chatSvc, logger),
		WSHandler:      handlers.NewWSHandler(hub, nil, logger),
		Config:         cfg,
		Logger:         logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t}
}

func (s *testServer) do(method, path, token string, body any) (int, []byte) {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, out
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	code, _ := s.do(http.MethodPost, "/v1/auth/signup", "", models.SignupRequest{Email: email, Password: "secret1", ConfirmPassword: "secret1"})
	require.Equal(s.t, http.StatusCreated, code)
	code, body := s.do(http.MethodPost, "/v1/auth/login", "", models.LoginRequest{Email: email, Password: "secret1"})
	require.Equal(s.t, http.StatusOK, code)
	var auth models.AuthResponse
	require.NoError(s.t, json.Unmarshal(body, &auth))
	require.NotEmpty(s.t, auth.AccessToken)
	return auth.AccessToken
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	code, body := srv.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", string(body))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	code, body := srv.do(http.MethodGet, "/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"error":"Authorization header required"}`, string(body))

	code, _ = srv.do(http.MethodGet, "/v1/sessions", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignupAndLogin(t *testing.T) {
	srv := newTestServer(t)

	code, body := srv.do(http.MethodPost, "/v1/auth/signup", "", models.SignupRequest{Email: "bad", Password: "123", ConfirmPassword: "456"})
	require.Equal(t, http.StatusBadRequest, code)
	errResp := decode[models.ErrorResponse](t, body)
	assert.Equal(t, "Email is invalid", errResp.Fields["email"])
	assert.Equal(t, "Password must be at least 6 characters", errResp.Fields["password"])
	assert.Equal(t, "Passwords do not match", errResp.Fields["confirm_password"])

	token := srv.login("Ada@Example.com")

	code, _ = srv.do(http.MethodPost, "/v1/auth/signup", "", models.SignupRequest{Email: "ada@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = srv.do(http.MethodPost, "/v1/auth/login", "", models.LoginRequest{Email: "ada@example.com", Password: "wrong!!"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = srv.do(http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ada@example.com", decode[models.UserResponse](t, body).Email)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("sessions@example.com")

	code, body := srv.do(http.MethodPost, "/v1/sessions", token, nil)
	require.Equal(t, http.StatusCreated, code)
	first := decode[models.SessionResponse](t, body)
	assert.Equal(t, services.DefaultSessionTitle, first.Title)

	title := "Planning"
	code, body = srv.do(http.MethodPost, "/v1/sessions", token, models.CreateSessionRequest{Title: &title})
	require.Equal(t, http.StatusCreated, code)
	second := decode[models.SessionResponse](t, body)

	code, body = srv.do(http.MethodPatch, "/v1/sessions/"+first.ID.String(), token, models.RenameSessionRequest{Title: "  "})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Title cannot be empty", decode[models.ErrorResponse](t, body).Fields["title"])

	code, body = srv.do(http.MethodPatch, "/v1/sessions/"+first.ID.String(), token, models.RenameSessionRequest{Title: "Renamed"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Renamed", decode[models.SessionResponse](t, body).Title)

	code, body = srv.do(http.MethodGet, "/v1/sessions", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[models.ListSessionsResponse](t, body).Sessions, 2)

	code, body = srv.do(http.MethodPost, "/v1/sessions/batch-delete", token, models.BatchDeleteSessionsRequest{})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), decode[models.BatchDeleteSessionsResponse](t, body).Deleted)

	code, _ = srv.do(http.MethodDelete, "/v1/sessions/"+second.ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = srv.do(http.MethodDelete, "/v1/sessions/"+second.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = srv.do(http.MethodGet, "/v1/sessions/not-a-uuid/messages", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	other := srv.login("other@example.com")
	code, _ = srv.do(http.MethodGet, "/v1/sessions/"+first.ID.String()+"/messages", other, nil)
	assert.Equal(t, http.StatusNotFound, code, "sessions of other users are invisible")
}

func TestSendMessageRelaysToWebhook(t *testing.T) {
	var got webhook.Payload
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":"hello back"}`))
	}))
	defer hook.Close()

	srv := newTestServer(t)
	token := srv.login("relay@example.com")

	code, body := srv.do(http.MethodPut, "/v1/webhook-settings", token, models.ReplaceWebhookSettingsRequest{
		WebhookURL: hook.URL,
		Variables:  []validate.VariableRow{{Key: "apiKey", Value: "k1"}},
		Save:       true,
	})
	require.Equal(t, http.StatusOK, code, string(body))
	settings := decode[models.WebhookSettingsResponse](t, body)
	assert.False(t, settings.Dirty)
	assert.Equal(t, map[string]string{"apiKey": "k1"}, settings.Variables)

	code, body = srv.do(http.MethodPost, "/v1/messages", token, models.SendMessageRequest{Content: "hi"})
	require.Equal(t, http.StatusCreated, code, string(body))
	resp := decode[models.SendMessageResponse](t, body)
	require.NotNil(t, resp.Reply)
	assert.Nil(t, resp.RelayError)
	assert.Equal(t, "hi", resp.UserMessage.Content)
	assert.Equal(t, models.SenderSystem, resp.Reply.Sender)
	assert.Equal(t, "hello back", resp.Reply.DisplayText)
	assert.Equal(t, webhook.Payload{Message: "hi", SessionID: resp.Session.ID.String(), Variables: map[string]string{"apiKey": "k1"}}, got)

	code, body = srv.do(http.MethodGet, "/v1/sessions/"+resp.Session.ID.String()+"/messages", token, nil)
	require.Equal(t, http.StatusOK, code)
	msgs := decode[models.ListMessagesResponse](t, body).Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.Equal(t, models.SenderSystem, msgs[1].Sender)

	code, body = srv.do(http.MethodGet, "/v1/chat/state", token, nil)
	require.Equal(t, http.StatusOK, code)
	state := decode[models.ChatStateResponse](t, body)
	require.NotNil(t, state.ActiveSessionID)
	assert.Equal(t, resp.Session.ID, *state.ActiveSessionID)
}

func TestSendMessageWithoutWebhookKeepsUserMessage(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("nohook@example.com")

	code, body := srv.do(http.MethodPost, "/v1/messages", token, models.SendMessageRequest{Content: "anyone there?"})
	require.Equal(t, http.StatusCreated, code)
	resp := decode[models.SendMessageResponse](t, body)
	require.NotNil(t, resp.RelayError)
	assert.Equal(t, "config", resp.RelayError.Kind)
	assert.Equal(t, "no webhook configured", resp.RelayError.Message)
	assert.Nil(t, resp.Reply)

	code, body = srv.do(http.MethodPost, "/v1/messages", token, models.SendMessageRequest{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, decode[models.ErrorResponse](t, body).Fields, "content")
}

func TestWebhookTestEndpoints(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	defer hook.Close()

	srv := newTestServer(t)
	token := srv.login("tester@example.com")

	code, _ := srv.do(http.MethodPost, "/v1/webhook-settings/test?wait=true", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body := srv.do(http.MethodPut, "/v1/webhook-settings/url", token, models.UpdateWebhookURLRequest{WebhookURL: "ftp://nope"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[models.WebhookSettingsResponse](t, body).Dirty)

	code, body = srv.do(http.MethodPost, "/v1/webhook-settings/save", token, nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Webhook URL must be a valid http(s) URL", decode[models.ErrorResponse](t, body).Fields["webhook_url"])

	code, _ = srv.do(http.MethodPut, "/v1/webhook-settings/url", token, models.UpdateWebhookURLRequest{WebhookURL: hook.URL})
	require.Equal(t, http.StatusOK, code)

	code, body = srv.do(http.MethodPost, "/v1/webhook-settings/test?wait=true", token, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	status := decode[webhook.TestStatus](t, body)
	assert.Equal(t, webhook.TestSuccess, status.State)
	assert.Equal(t, "pong", status.Reply)

	code, body = srv.do(http.MethodGet, "/v1/webhook-settings", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[models.WebhookSettingsResponse](t, body).Dirty, "testing saves pending edits")

	code, body = srv.do(http.MethodDelete, "/v1/webhook-settings/test", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, webhook.TestIdle, decode[webhook.TestStatus](t, body).State)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("ws@example.com")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	code, body := srv.do(http.MethodPost, "/v1/sessions", token, nil)
	require.Equal(t, http.StatusCreated, code)
	created := decode[models.SessionResponse](t, body)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var evt struct {
		Type string                 `json:"type"`
		Data models.SessionResponse `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, events.SessionCreated, evt.Type)
	assert.Equal(t, created.ID, evt.Data.ID)
}
