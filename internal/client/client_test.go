package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat-backend/internal/models"
)

func TestLoginStoresToken(t *testing.T) {
	var authHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/auth/login":
			var req models.LoginRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ada@example.com", req.Email)
			json.NewEncoder(w).Encode(models.AuthResponse{AccessToken: "tok"})
		case "/v1/sessions":
			json.NewEncoder(w).Encode(models.ListSessionsResponse{Sessions: []models.SessionResponse{{Title: "New Chat"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", srv.Client())
	_, err := c.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok", c.Token())

	sessions, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"", "Bearer tok"}, authHeaders)
}

func TestAPIErrorCarriesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Validation failed","fields":{"email":"Email is invalid"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", srv.Client()).Signup(context.Background(), "x", "secret1", "secret1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Validation failed", apiErr.Error())
	assert.Equal(t, "Email is invalid", apiErr.Fields["email"])
}

func TestDeleteSessions_EmptySelectionSkipsServer(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(models.BatchDeleteSessionsResponse{Deleted: 2})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", srv.Client())
	n, err := c.DeleteSessions(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, calls)

	n, err = c.DeleteSessions(context.Background(), []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, calls)
}

func TestDeleteSession_NoContent(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/sessions/"+id.String(), r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL, "tok", srv.Client()).DeleteSession(context.Background(), id))
}

func TestStartWebhookTest_WaitQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		w.Write([]byte(`{"state":"success","message":"ok"}`))
	}))
	defer srv.Close()

	status, err := New(srv.URL, "tok", srv.Client()).StartWebhookTest(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, "success", string(status.State))
}
