package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chat.db"), zap.NewNop())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	user := &models.User{ID: uuid.New(), Email: "a@b.co", HashedPassword: "h"}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{ID: uuid.New(), Email: "a@b.co", HashedPassword: "h"}), store.ErrConflict)

	sess, err := s.CreateSession(ctx, store.CreateSessionParams{UserID: user.ID, Title: "New Chat"})
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, store.CreateMessageParams{SessionID: sess.ID, UserID: user.ID, Content: "second", Sender: models.SenderSystem, Timestamp: 20})
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, store.CreateMessageParams{SessionID: sess.ID, UserID: user.ID, Content: "first", Sender: models.SenderUser, Timestamp: 10})
	require.NoError(t, err)

	msgs, err := s.ListMessages(ctx, sess.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)

	_, err = s.CreateMessage(ctx, store.CreateMessageParams{SessionID: sess.ID, UserID: uuid.New(), Content: "x", Sender: models.SenderUser})
	assert.ErrorIs(t, err, store.ErrNotFound)

	renamed, err := s.RenameSession(ctx, sess.ID, user.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	require.NoError(t, s.DeleteSession(ctx, sess.ID, user.ID))
	_, err = s.ListMessages(ctx, sess.ID, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var orphans int64
	require.NoError(t, s.db.Model(&models.Message{}).Where("session_id = ?", sess.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestSQLiteStore_WebhookSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	userID := uuid.New()

	_, err := s.GetWebhookSettings(ctx, userID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	first, err := s.UpsertWebhookSettings(ctx, store.UpsertWebhookSettingsParams{UserID: userID, WebhookURL: "http://a"})
	require.NoError(t, err)
	second, err := s.UpsertWebhookSettings(ctx, store.UpsertWebhookSettingsParams{UserID: userID, WebhookURL: "http://b", EncryptedVariables: []byte(`{"encrypted":"x"}`)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := s.GetWebhookSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "http://b", got.WebhookURL)
	assert.JSONEq(t, `{"encrypted":"x"}`, string(got.EncryptedVariables))
}
