package services

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/crypto"
	"relaychat-backend/internal/events"
	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
)

// TestSessionID is sent with a PING when the user has no active session.
const TestSessionID = "test-session"

// Custom errors for Webhook service
var (
	ErrNoWebhookConfigured = webhook.ErrNoWebhookConfigured
	ErrTestInProgress      = webhook.ErrTestInProgress
	ErrWebhookEncryption   = errors.New("webhook variables encryption failed")
	ErrWebhookDecryption   = errors.New("webhook variables decryption failed")
)

type webhookDraft struct {
	url     string
	vars    map[string]string
	dirty   bool
	savedAt *time.Time
}

func (d *webhookDraft) response() *models.WebhookSettingsResponse {
	vars := make(map[string]string, len(d.vars))
	for k, v := range d.vars {
		vars[k] = v
	}
	return &models.WebhookSettingsResponse{
		WebhookURL: d.url,
		Variables:  vars,
		Dirty:      d.dirty,
		SavedAt:    d.savedAt,
	}
}

// WebhookService holds each user's webhook settings draft, persists it
// encrypted, and drives relays and connectivity tests against it.
type WebhookService struct {
	store  store.Store
	aead   cipher.AEAD
	relay  webhook.Sender
	tester *webhook.Tester
	events events.Publisher
	log    *zap.Logger

	mu     sync.Mutex
	drafts map[uuid.UUID]*webhookDraft
}

// NewWebhookService creates a WebhookService. Test state changes are
// published as events.WebhookTest.
func NewWebhookService(s store.Store, aead cipher.AEAD, relay webhook.Sender, tester *webhook.Tester, pub events.Publisher, logger *zap.Logger) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	svc := &WebhookService{
		store:  s,
		aead:   aead,
		relay:  relay,
		tester: tester,
		events: pub,
		log:    logger.Named("webhook_service"),
		drafts: make(map[uuid.UUID]*webhookDraft),
	}
	tester.OnChange(func(userID uuid.UUID, status webhook.TestStatus) {
		pub.Publish(userID, events.WebhookTest, status)
	})
	return svc
}

// Load fetches the saved settings and replaces the draft with them. A user
// who never saved gets an empty URL and no variables.
func (s *WebhookService) Load(ctx context.Context, userID uuid.UUID) (*models.WebhookSettingsResponse, error) {
	d := &webhookDraft{vars: map[string]string{}}

	row, err := s.store.GetWebhookSettings(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.log.Error("loading webhook settings", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to load webhook settings: %w", err)
	default:
		d.url = row.WebhookURL
		if err := crypto.OpenJSON(s.aead, row.EncryptedVariables, &d.vars); err != nil {
			s.log.Error("decrypting webhook variables", zap.String("user_id", userID.String()), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrWebhookDecryption, err)
		}
		if d.vars == nil {
			d.vars = map[string]string{}
		}
		savedAt := row.UpdatedAt
		d.savedAt = &savedAt
	}

	s.mu.Lock()
	s.drafts[userID] = d
	resp := d.response()
	s.mu.Unlock()
	return resp, nil
}

// Get returns the current draft, loading it on first use.
func (s *WebhookService) Get(ctx context.Context, userID uuid.UUID) (*models.WebhookSettingsResponse, error) {
	var resp *models.WebhookSettingsResponse
	err := s.withDraft(ctx, userID, func(d *webhookDraft) error {
		resp = d.response()
		return nil
	})
	return resp, err
}

// UpdateURL edits the draft URL without saving.
func (s *WebhookService) UpdateURL(ctx context.Context, userID uuid.UUID, url string) (*models.WebhookSettingsResponse, error) {
	return s.edit(ctx, userID, func(d *webhookDraft) error {
		d.url = strings.TrimSpace(url)
		return nil
	})
}

// SetVariable adds or replaces one draft variable without saving.
func (s *WebhookService) SetVariable(ctx context.Context, userID uuid.UUID, key, value string) (*models.WebhookSettingsResponse, error) {
	key = strings.TrimSpace(key)
	if msg := validate.VariableKey(key); msg != "" {
		return nil, validate.FieldErrors{validate.FieldVariables: msg}
	}
	return s.edit(ctx, userID, func(d *webhookDraft) error {
		d.vars[key] = value
		return nil
	})
}

// RemoveVariable drops one draft variable without saving. Removing a
// missing key is not an error.
func (s *WebhookService) RemoveVariable(ctx context.Context, userID uuid.UUID, key string) (*models.WebhookSettingsResponse, error) {
	key = strings.TrimSpace(key)
	return s.edit(ctx, userID, func(d *webhookDraft) error {
		delete(d.vars, key)
		return nil
	})
}

// ReplaceDraft applies a whole settings form: the URL plus variable rows.
func (s *WebhookService) ReplaceDraft(ctx context.Context, userID uuid.UUID, url string, rows []validate.VariableRow) (*models.WebhookSettingsResponse, error) {
	vars, msg := validate.VariableRows(rows)
	if msg != "" {
		return nil, validate.FieldErrors{validate.FieldVariables: msg}
	}
	return s.edit(ctx, userID, func(d *webhookDraft) error {
		d.url = strings.TrimSpace(url)
		d.vars = vars
		return nil
	})
}

// Save upserts the draft. The URL must be an absolute http(s) URL.
func (s *WebhookService) Save(ctx context.Context, userID uuid.UUID) (*models.WebhookSettingsResponse, error) {
	var url string
	var vars map[string]string
	if err := s.withDraft(ctx, userID, func(d *webhookDraft) error {
		url = d.url
		vars = d.response().Variables
		return nil
	}); err != nil {
		return nil, err
	}

	if msg := validate.WebhookURL(url); msg != "" {
		return nil, validate.FieldErrors{validate.FieldWebhookURL: msg}
	}

	sealed, err := crypto.SealJSON(s.aead, vars)
	if err != nil {
		s.log.Error("encrypting webhook variables", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrWebhookEncryption, err)
	}

	row, err := s.store.UpsertWebhookSettings(ctx, store.UpsertWebhookSettingsParams{
		UserID:             userID,
		WebhookURL:         url,
		EncryptedVariables: sealed,
	})
	if err != nil {
		s.log.Error("saving webhook settings", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to save webhook settings: %w", err)
	}

	var resp *models.WebhookSettingsResponse
	s.mu.Lock()
	if d, ok := s.drafts[userID]; ok {
		d.dirty = false
		savedAt := row.UpdatedAt
		d.savedAt = &savedAt
		resp = d.response()
	}
	s.mu.Unlock()

	s.log.Info("webhook settings saved", zap.String("user_id", userID.String()), zap.Int("variables", len(vars)))
	s.events.Publish(userID, events.WebhookSaved, resp)
	return resp, nil
}

// Target snapshots the draft for a relay call.
func (s *WebhookService) Target(ctx context.Context, userID uuid.UUID) (webhook.Target, error) {
	var target webhook.Target
	err := s.withDraft(ctx, userID, func(d *webhookDraft) error {
		target = webhook.Target{URL: d.url, Variables: d.response().Variables}
		return nil
	})
	return target, err
}

// Relay sends message to the user's webhook and returns the normalized reply.
func (s *WebhookService) Relay(ctx context.Context, userID uuid.UUID, message, sessionID string) (*webhook.Reply, error) {
	target, err := s.Target(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.relay.Send(ctx, target, message, sessionID)
}

// Test saves pending edits and PINGs the webhook. With wait it blocks until
// the verdict; otherwise it returns the testing status at once. An empty
// sessionID is sent as TestSessionID.
func (s *WebhookService) Test(ctx context.Context, userID uuid.UUID, sessionID string, wait bool) (webhook.TestStatus, error) {
	if status := s.tester.Status(userID); status.State == webhook.TestTesting {
		return status, ErrTestInProgress
	}

	draft, err := s.Get(ctx, userID)
	if err != nil {
		return webhook.TestStatus{}, err
	}
	if draft.WebhookURL == "" {
		return s.tester.Status(userID), &webhook.RelayError{Kind: webhook.KindConfig}
	}
	if draft.Dirty {
		if _, err := s.Save(ctx, userID); err != nil {
			return s.tester.Status(userID), err
		}
	}

	target, err := s.Target(ctx, userID)
	if err != nil {
		return webhook.TestStatus{}, err
	}
	if sessionID == "" {
		sessionID = TestSessionID
	}
	if wait {
		return s.tester.Run(ctx, userID, target, sessionID)
	}
	return s.tester.Start(context.WithoutCancel(ctx), userID, target, sessionID)
}

// TestStatus reports the user's test state with the countdown while testing.
func (s *WebhookService) TestStatus(userID uuid.UUID) webhook.TestStatus {
	return s.tester.Status(userID)
}

// ResetTest returns a finished test to idle.
func (s *WebhookService) ResetTest(userID uuid.UUID) (webhook.TestStatus, error) {
	return s.tester.Reset(userID)
}

func (s *WebhookService) withDraft(ctx context.Context, userID uuid.UUID, fn func(d *webhookDraft) error) error {
	s.mu.Lock()
	_, ok := s.drafts[userID]
	s.mu.Unlock()
	if !ok {
		if _, err := s.Load(ctx, userID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.drafts[userID])
}

func (s *WebhookService) edit(ctx context.Context, userID uuid.UUID, fn func(d *webhookDraft) error) (*models.WebhookSettingsResponse, error) {
	var resp *models.WebhookSettingsResponse
	err := s.withDraft(ctx, userID, func(d *webhookDraft) error {
		if err := fn(d); err != nil {
			return err
		}
		d.dirty = true
		resp = d.response()
		return nil
	})
	return resp, err
}
