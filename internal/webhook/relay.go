// Package webhook delivers chat messages to the user's configured automation
// endpoint and turns its replies into display text.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"relaychat-backend/internal/race"
)

// PingMessage is the message body used by connectivity tests.
const PingMessage = "PING"

// DefaultTimeout is the client-side deadline applied to every relay call.
const DefaultTimeout = 10 * time.Second

const maxReplyBytes = 1 << 20

// Sentinels matched by *RelayError through errors.Is.
var (
	ErrNoWebhookConfigured = errors.New("no webhook configured")
	ErrRequestFailed       = errors.New("request failed")
	ErrTimeout             = errors.New("webhook timed out")
)

// ErrorKind classifies a relay failure.
type ErrorKind string

const (
	KindConfig  ErrorKind = "config"
	KindRequest ErrorKind = "request"
	KindTimeout ErrorKind = "timeout"
)

// RelayError is the single error type returned by Relay.Send.
type RelayError struct {
	Kind    ErrorKind
	Timeout time.Duration // set for KindTimeout
	Err     error         // underlying cause for KindRequest
}

func (e *RelayError) Error() string {
	switch e.Kind {
	case KindConfig:
		return ErrNoWebhookConfigured.Error()
	case KindTimeout:
		return "timed out after " + humanDuration(e.Timeout)
	default:
		return fmt.Sprintf("request failed: %v", e.Err)
	}
}

func (e *RelayError) Unwrap() error { return e.Err }

func (e *RelayError) Is(target error) bool {
	switch target {
	case ErrNoWebhookConfigured:
		return e.Kind == KindConfig
	case ErrRequestFailed:
		return e.Kind == KindRequest
	case ErrTimeout:
		return e.Kind == KindTimeout
	}
	return false
}

// Target is a snapshot of the user's webhook settings taken at send time.
type Target struct {
	URL       string
	Variables map[string]string
}

// Payload is the JSON body POSTed to the webhook.
type Payload struct {
	Message   string            `json:"message"`
	SessionID string            `json:"sessionId"`
	Variables map[string]string `json:"variables"`
}

// Reply is a webhook response that arrived before the deadline.
type Reply struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
	Text       string `json:"text"`
}

// Sender is the behaviour the chat and test flows need from a relay.
type Sender interface {
	Send(ctx context.Context, target Target, message, sessionID string) (*Reply, error)
}

// Relay sends one request per call, with no retry, and never waits longer
// than its timeout.
type Relay struct {
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger
}

var _ Sender = (*Relay)(nil)

// NewRelay returns a Relay. A nil client uses a fresh http.Client without its
// own timeout; a non-positive timeout uses DefaultTimeout.
func NewRelay(client *http.Client, timeout time.Duration, logger *zap.Logger) *Relay {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{client: client, timeout: timeout, log: logger.Named("relay")}
}

// Timeout reports the deadline applied to each Send.
func (r *Relay) Timeout() time.Duration { return r.timeout }

// Send delivers message to target.URL. A missing URL fails locally with
// KindConfig. Otherwise the request races the relay timeout: the first of
// response, transport error or deadline decides the result, and a response
// that arrives after the deadline is dropped.
func (r *Relay) Send(ctx context.Context, target Target, message, sessionID string) (*Reply, error) {
	if target.URL == "" {
		return nil, &RelayError{Kind: KindConfig}
	}

	vars := make(map[string]string, len(target.Variables))
	for k, v := range target.Variables {
		vars[k] = v
	}
	body, err := json.Marshal(Payload{Message: message, SessionID: sessionID, Variables: vars})
	if err != nil {
		return nil, &RelayError{Kind: KindRequest, Err: err}
	}

	out := race.WithTimeout(ctx, r.timeout, func(ctx context.Context) (*Reply, error) {
		return r.post(ctx, target.URL, body)
	})

	if out.Kind == race.TimedOut {
		r.log.Warn("webhook timed out", zap.String("session_id", sessionID), zap.Duration("timeout", r.timeout))
		return nil, &RelayError{Kind: KindTimeout, Timeout: r.timeout}
	}
	if out.Err != nil {
		r.log.Warn("webhook request failed", zap.String("session_id", sessionID), zap.Error(out.Err))
		return nil, &RelayError{Kind: KindRequest, Err: out.Err}
	}

	r.log.Debug("webhook replied",
		zap.String("session_id", sessionID),
		zap.Int("status", out.Value.StatusCode),
		zap.Duration("elapsed", out.Elapsed))
	return out.Value, nil
}

func (r *Relay) post(ctx context.Context, url string, body []byte) (*Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP %s", resp.Status)
	}

	return &Reply{StatusCode: resp.StatusCode, Body: string(raw), Text: NormalizeReply(raw)}, nil
}

// humanDuration prints whole seconds the way users read them ("10 seconds")
// and falls back to Go notation for sub-second values.
func humanDuration(d time.Duration) string {
	if d >= time.Second && d%time.Second == 0 {
		n := int(d / time.Second)
		if n == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", n)
	}
	return d.String()
}
