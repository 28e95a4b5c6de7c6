// Package memstore is an in-process store.Store backed by maps. It serves the
// "memory" backend and gives services a real store in tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
)

var _ store.Store = (*MemStore)(nil)

type sessionRow struct {
	models.Session
	seq uint64 // bumped with UpdatedAt, breaks ordering ties
}

type MemStore struct {
	mu       sync.RWMutex
	seq      uint64
	users    map[uuid.UUID]models.User
	sessions map[uuid.UUID]*sessionRow
	messages map[uuid.UUID][]models.Message // by session id, insertion order
	webhooks map[uuid.UUID]models.WebhookSettings
	now      func() time.Time
}

func New() *MemStore {
	return &MemStore{
		users:    make(map[uuid.UUID]models.User),
		sessions: make(map[uuid.UUID]*sessionRow),
		messages: make(map[uuid.UUID][]models.Message),
		webhooks: make(map[uuid.UUID]models.WebhookSettings),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *MemStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrConflict
		}
	}
	if _, ok := m.users[user.ID]; ok {
		return store.ErrConflict
	}
	now := m.now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = *user
	return nil
}

func (m *MemStore) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]*sessionRow, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]models.Session, len(rows))
	for i, r := range rows {
		out[i] = r.Session
	}
	return out, nil
}

func (m *MemStore) GetSession(ctx context.Context, id, userID uuid.UUID) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, err := m.ownedLocked(id, userID)
	if err != nil {
		return nil, err
	}
	s := row.Session
	return &s, nil
}

func (m *MemStore) CreateSession(ctx context.Context, arg store.CreateSessionParams) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if arg.ID == uuid.Nil {
		arg.ID = uuid.New()
	}
	if _, ok := m.sessions[arg.ID]; ok {
		return nil, store.ErrConflict
	}
	now := m.now()
	m.seq++
	row := &sessionRow{
		Session: models.Session{ID: arg.ID, UserID: arg.UserID, Title: arg.Title, CreatedAt: now, UpdatedAt: now},
		seq:     m.seq,
	}
	m.sessions[arg.ID] = row
	s := row.Session
	return &s, nil
}

func (m *MemStore) RenameSession(ctx context.Context, id, userID uuid.UUID, title string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.ownedLocked(id, userID)
	if err != nil {
		return nil, err
	}
	row.Title = title
	m.touchLocked(row)
	s := row.Session
	return &s, nil
}

func (m *MemStore) DeleteSession(ctx context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.ownedLocked(id, userID); err != nil {
		return err
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *MemStore) DeleteSessions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, err := m.ownedLocked(id, userID); err != nil {
			continue
		}
		delete(m.sessions, id)
		delete(m.messages, id)
		n++
	}
	return n, nil
}

func (m *MemStore) ListMessages(ctx context.Context, sessionID, userID uuid.UUID) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.ownedLocked(sessionID, userID); err != nil {
		return nil, err
	}
	out := append([]models.Message(nil), m.messages[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *MemStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.ownedLocked(arg.SessionID, arg.UserID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if arg.ID == uuid.Nil {
		arg.ID = uuid.New()
	}
	if arg.Timestamp == 0 {
		arg.Timestamp = now.UnixMilli()
	}
	msg := models.Message{
		ID:        arg.ID,
		SessionID: arg.SessionID,
		Content:   arg.Content,
		Sender:    arg.Sender,
		Timestamp: arg.Timestamp,
		CreatedAt: now,
	}
	m.messages[arg.SessionID] = append(m.messages[arg.SessionID], msg)
	m.touchLocked(row)
	return &msg, nil
}

func (m *MemStore) GetWebhookSettings(ctx context.Context, userID uuid.UUID) (*models.WebhookSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.webhooks[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ws.EncryptedVariables = append([]byte(nil), ws.EncryptedVariables...)
	return &ws, nil
}

func (m *MemStore) UpsertWebhookSettings(ctx context.Context, arg store.UpsertWebhookSettingsParams) (*models.WebhookSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	ws, ok := m.webhooks[arg.UserID]
	if !ok {
		ws = models.WebhookSettings{ID: uuid.New(), UserID: arg.UserID, CreatedAt: now}
	}
	ws.WebhookURL = arg.WebhookURL
	ws.EncryptedVariables = append([]byte(nil), arg.EncryptedVariables...)
	ws.UpdatedAt = now
	m.webhooks[arg.UserID] = ws
	out := ws
	return &out, nil
}

func (m *MemStore) ownedLocked(id, userID uuid.UUID) (*sessionRow, error) {
	row, ok := m.sessions[id]
	if !ok || row.UserID != userID {
		return nil, store.ErrNotFound
	}
	return row, nil
}

func (m *MemStore) touchLocked(row *sessionRow) {
	m.seq++
	row.seq = m.seq
	row.UpdatedAt = m.now()
}
