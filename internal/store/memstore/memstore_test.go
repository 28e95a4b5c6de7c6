package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
)

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestMemStore_Users(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &models.User{ID: uuid.New(), Email: "a@b.co", HashedPassword: "h"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.GetUserByEmail(ctx, "A@B.co")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = s.CreateUser(ctx, &models.User{ID: uuid.New(), Email: "a@b.co"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemStore_SessionOrderingAndOwnership(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.now = steppingClock()
	user, other := uuid.New(), uuid.New()

	first, err := s.CreateSession(ctx, store.CreateSessionParams{UserID: user, Title: "first"})
	require.NoError(t, err)
	second, err := s.CreateSession(ctx, store.CreateSessionParams{UserID: user, Title: "second"})
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, store.CreateSessionParams{UserID: other, Title: "theirs"})
	require.NoError(t, err)

	list, err := s.ListSessions(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = s.CreateMessage(ctx, store.CreateMessageParams{SessionID: first.ID, UserID: user, Content: "hi", Sender: models.SenderUser})
	require.NoError(t, err)

	list, err = s.ListSessions(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID, "new message bumps session activity")

	_, err = s.GetSession(ctx, first.ID, other)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.RenameSession(ctx, first.ID, other, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)

	renamed, err := s.RenameSession(ctx, first.ID, user, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Title)
}

func TestMemStore_MessagesOrderedByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := uuid.New()
	sess, err := s.CreateSession(ctx, store.CreateSessionParams{UserID: user, Title: "t"})
	require.NoError(t, err)

	for _, ts := range []int64{300, 100, 200} {
		_, err := s.CreateMessage(ctx, store.CreateMessageParams{SessionID: sess.ID, UserID: user, Content: "m", Sender: models.SenderUser, Timestamp: ts})
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, sess.ID, user)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{msgs[0].Timestamp, msgs[1].Timestamp, msgs[2].Timestamp})
}

func TestMemStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := uuid.New()

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		sess, err := s.CreateSession(ctx, store.CreateSessionParams{UserID: user, Title: "t"})
		require.NoError(t, err)
		ids[i] = sess.ID
		_, err = s.CreateMessage(ctx, store.CreateMessageParams{SessionID: sess.ID, UserID: user, Content: "m", Sender: models.SenderUser})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteSession(ctx, ids[0], user))
	_, err := s.ListMessages(ctx, ids[0], user)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, ids[0], user), store.ErrNotFound)

	n, err := s.DeleteSessions(ctx, user, []uuid.UUID{ids[1], ids[2], uuid.New()})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err := s.ListSessions(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemStore_WebhookSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := uuid.New()

	_, err := s.GetWebhookSettings(ctx, user)
	assert.ErrorIs(t, err, store.ErrNotFound)

	first, err := s.UpsertWebhookSettings(ctx, store.UpsertWebhookSettingsParams{UserID: user, WebhookURL: "http://a"})
	require.NoError(t, err)
	second, err := s.UpsertWebhookSettings(ctx, store.UpsertWebhookSettingsParams{UserID: user, WebhookURL: "http://b", EncryptedVariables: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one row per user")

	got, err := s.GetWebhookSettings(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "http://b", got.WebhookURL)
	assert.Equal(t, []byte(`{}`), got.EncryptedVariables)
}
