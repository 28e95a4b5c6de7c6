package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hangingServer accepts requests and never answers until the client goes away.
func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func TestRelay_NoWebhookConfigured(t *testing.T) {
	relay := NewRelay(nil, time.Second, zap.NewNop())

	_, err := relay.Send(context.Background(), Target{}, "hello", "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoWebhookConfigured)
	assert.Equal(t, "no webhook configured", err.Error())
}

func TestRelay_SuccessBeforeTimeout(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":"hi"}`))
	}))
	defer srv.Close()

	relay := NewRelay(srv.Client(), time.Second, zap.NewNop())
	start := time.Now()
	reply, err := relay.Send(context.Background(), Target{
		URL:       srv.URL,
		Variables: map[string]string{"apiKey": "k"},
	}, "hello", "s1")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "hi", reply.Text)
	assert.Equal(t, `{"output":"hi"}`, reply.Body)
	assert.Equal(t, http.StatusOK, reply.StatusCode)
	assert.Equal(t, Payload{Message: "hello", SessionID: "s1", Variables: map[string]string{"apiKey": "k"}}, got)
}

func TestRelay_EmptyVariablesSentAsObject(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	relay := NewRelay(srv.Client(), time.Second, nil)
	reply, err := relay.Send(context.Background(), Target{URL: srv.URL}, PingMessage, "test-session")
	require.NoError(t, err)

	assert.Equal(t, "ok", reply.Text)
	assert.JSONEq(t, `{}`, string(raw["variables"]))
	assert.JSONEq(t, `"PING"`, string(raw["message"]))
}

func TestRelay_Timeout(t *testing.T) {
	srv := hangingServer(t)
	const timeout = 150 * time.Millisecond
	relay := NewRelay(srv.Client(), timeout, zap.NewNop())

	start := time.Now()
	_, err := relay.Send(context.Background(), Target{URL: srv.URL}, "hello", "s1")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, "timed out after 150ms", err.Error())
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+time.Second)
}

func TestRelay_HTTPErrorIsRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	relay := NewRelay(srv.Client(), time.Second, zap.NewNop())
	_, err := relay.Send(context.Background(), Target{URL: srv.URL}, "hello", "s1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, "request failed: HTTP 500 Internal Server Error", err.Error())

	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, KindRequest, relayErr.Kind)
}

func TestRelay_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	relay := NewRelay(nil, time.Second, zap.NewNop())
	_, err := relay.Send(context.Background(), Target{URL: url}, "hello", "s1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "request failed: ")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "10 seconds", humanDuration(10*time.Second))
	assert.Equal(t, "1 second", humanDuration(time.Second))
	assert.Equal(t, "1.5s", humanDuration(1500*time.Millisecond))
	assert.Equal(t, "timed out after 10 seconds", (&RelayError{Kind: KindTimeout, Timeout: DefaultTimeout}).Error())
}
