package services

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"relaychat-backend/internal/config"
	"relaychat-backend/internal/crypto"
	"relaychat-backend/internal/store"
	"relaychat-backend/internal/store/memstore"
	"relaychat-backend/internal/webhook"
)

// spyStore counts the batch deletes that reach the backend.
type spyStore struct {
	*memstore.MemStore
	mu           sync.Mutex
	batchDeletes int
}

func (s *spyStore) DeleteSessions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	s.batchDeletes++
	s.mu.Unlock()
	return s.MemStore.DeleteSessions(ctx, userID, ids)
}

var _ store.Store = (*spyStore)(nil)

// fakeRelayer answers every relay with reply or err.
type fakeRelayer struct {
	mu       sync.Mutex
	reply    *webhook.Reply
	err      error
	messages []string
	sessions []string
}

func (f *fakeRelayer) Relay(ctx context.Context, userID uuid.UUID, message, sessionID string) (*webhook.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	f.sessions = append(f.sessions, sessionID)
	return f.reply, f.err
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", TokenExpiration: time.Hour}
}

func testAEAD(t *testing.T) cipher.AEAD {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	aead, err := crypto.NewAESGCM(key)
	require.NoError(t, err)
	return aead
}
