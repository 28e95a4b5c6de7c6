package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/events"
	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
)

// DefaultSessionTitle is given to sessions created without a title.
const DefaultSessionTitle = "New Chat"

// Custom errors for Chat service
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSender   = fmt.Errorf("%w: sender must be %q or %q", ErrValidation, models.SenderUser, models.SenderSystem)
)

// Relayer forwards a chat message to the user's webhook.
type Relayer interface {
	Relay(ctx context.Context, userID uuid.UUID, message, sessionID string) (*webhook.Reply, error)
}

// chatState is one user's cached view: the session list, the active session
// and its loaded history.
type chatState struct {
	loaded   bool
	sessions []models.Session
	activeID uuid.UUID
	messages []models.Message
}

// ChatState is a copy of a user's cached state.
type ChatState struct {
	Sessions        []models.Session
	ActiveSessionID uuid.UUID // uuid.Nil when none
	Messages        []models.Message
}

// SendResult is the outcome of SendMessage. The user message is always
// stored; Reply is set when the webhook answered with text, RelayErr when
// the relay failed.
type SendResult struct {
	Session     models.Session
	UserMessage models.Message
	Reply       *models.Message
	RelayErr    error
}

type ChatService struct {
	store  store.Store
	relay  Relayer
	events events.Publisher
	log    *zap.Logger

	mu     sync.Mutex
	states map[uuid.UUID]*chatState
}

func NewChatService(s store.Store, relay Relayer, pub events.Publisher, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &ChatService{
		store:  s,
		relay:  relay,
		events: pub,
		log:    logger.Named("chat_service"),
		states: make(map[uuid.UUID]*chatState),
	}
}

// ListSessions reloads the user's sessions, most recently active first.
func (s *ChatService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		s.log.Error("listing sessions", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	s.mu.Lock()
	st := s.stateLocked(userID)
	st.sessions = append([]models.Session(nil), sessions...)
	st.loaded = true
	s.mu.Unlock()
	return sessions, nil
}

// CreateSession starts a new session and makes it active. A nil title gets
// DefaultSessionTitle.
func (s *ChatService) CreateSession(ctx context.Context, userID uuid.UUID, title *string) (*models.Session, error) {
	name := DefaultSessionTitle
	if title != nil {
		name = strings.TrimSpace(*title)
		if msg := validate.Title(name); msg != "" {
			return nil, validate.FieldErrors{validate.FieldTitle: msg}
		}
	}

	sess, err := s.store.CreateSession(ctx, store.CreateSessionParams{ID: uuid.New(), UserID: userID, Title: name})
	if err != nil {
		s.log.Error("creating session", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.mu.Lock()
	st := s.stateLocked(userID)
	st.sessions = moveToFront(st.sessions, *sess)
	st.activeID = sess.ID
	st.messages = []models.Message{}
	s.mu.Unlock()

	s.log.Info("session created", zap.String("user_id", userID.String()), zap.String("session_id", sess.ID.String()))
	s.events.Publish(userID, events.SessionCreated, SessionToResponse(sess))
	return sess, nil
}

// RenameSession gives a session a new non-blank title.
func (s *ChatService) RenameSession(ctx context.Context, userID, sessionID uuid.UUID, title string) (*models.Session, error) {
	title = strings.TrimSpace(title)
	if msg := validate.Title(title); msg != "" {
		return nil, validate.FieldErrors{validate.FieldTitle: msg}
	}

	sess, err := s.store.RenameSession(ctx, sessionID, userID, title)
	if err != nil {
		return nil, s.sessionErr(err, "renaming session", userID, sessionID)
	}

	s.mu.Lock()
	st := s.stateLocked(userID)
	st.sessions = moveToFront(st.sessions, *sess)
	s.mu.Unlock()

	s.events.Publish(userID, events.SessionRenamed, SessionToResponse(sess))
	return sess, nil
}

// DeleteSession removes one session and its messages.
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.store.DeleteSession(ctx, sessionID, userID); err != nil {
		return s.sessionErr(err, "deleting session", userID, sessionID)
	}
	s.forget(userID, []uuid.UUID{sessionID})
	s.events.Publish(userID, events.SessionDeleted, map[string][]uuid.UUID{"ids": {sessionID}})
	return nil
}

// DeleteSessions removes a batch of sessions and returns how many existed.
// An empty selection does nothing and never reaches the store.
func (s *ChatService) DeleteSessions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.store.DeleteSessions(ctx, userID, ids)
	if err != nil {
		s.log.Error("batch deleting sessions", zap.String("user_id", userID.String()), zap.Int("count", len(ids)), zap.Error(err))
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	s.forget(userID, ids)

	s.log.Info("sessions deleted", zap.String("user_id", userID.String()), zap.Int64("deleted", n))
	s.events.Publish(userID, events.SessionDeleted, map[string][]uuid.UUID{"ids": ids})
	return n, nil
}

// LoadHistory makes sessionID active and replaces the cached message list
// with its history in timestamp order.
func (s *ChatService) LoadHistory(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Message, error) {
	msgs, err := s.store.ListMessages(ctx, sessionID, userID)
	if err != nil {
		return nil, s.sessionErr(err, "loading history", userID, sessionID)
	}

	s.mu.Lock()
	st := s.stateLocked(userID)
	st.activeID = sessionID
	st.messages = append([]models.Message(nil), msgs...)
	s.mu.Unlock()
	return msgs, nil
}

// AddMessage appends a message from sender to a session. User text is
// trimmed; system text is stored as received.
func (s *ChatService) AddMessage(ctx context.Context, userID, sessionID uuid.UUID, sender, content string) (*models.Message, error) {
	if !models.IsValidSender(sender) {
		return nil, ErrInvalidSender
	}
	if sender == models.SenderUser {
		content = strings.TrimSpace(content)
	}
	if strings.TrimSpace(content) == "" {
		return nil, validate.FieldErrors{validate.FieldContent: "Message cannot be empty"}
	}

	msg, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, s.sessionErr(err, "adding message", userID, sessionID)
	}

	s.mu.Lock()
	st := s.stateLocked(userID)
	if st.activeID == sessionID {
		st.messages = append(st.messages, *msg)
	}
	for _, sess := range st.sessions {
		if sess.ID == sessionID {
			sess.UpdatedAt = msg.CreatedAt
			st.sessions = moveToFront(st.sessions, sess)
			break
		}
	}
	s.mu.Unlock()

	s.events.Publish(userID, events.MessageCreated, MessageToResponse(msg))
	return msg, nil
}

// SendMessage stores a user message and relays it to the webhook. Without
// a session id it uses the active session, creating one if there is none.
// A relay failure leaves the user message in place and is reported in
// SendResult.RelayErr rather than as the returned error.
func (s *ChatService) SendMessage(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validate.FieldErrors{validate.FieldContent: "Message cannot be empty"}
	}

	sess, err := s.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.AddMessage(ctx, userID, sess.ID, models.SenderUser, content)
	if err != nil {
		return nil, err
	}
	result := &SendResult{Session: *sess, UserMessage: *userMsg}

	reply, err := s.relay.Relay(ctx, userID, content, sess.ID.String())
	if err != nil {
		s.log.Warn("relay failed", zap.String("user_id", userID.String()), zap.String("session_id", sess.ID.String()), zap.Error(err))
		result.RelayErr = err
		s.refreshSession(userID, result)
		return result, nil
	}

	if strings.TrimSpace(reply.Text) != "" {
		sysMsg, err := s.AddMessage(ctx, userID, sess.ID, models.SenderSystem, reply.Text)
		if err != nil {
			return result, fmt.Errorf("storing webhook reply: %w", err)
		}
		result.Reply = sysMsg
	}
	s.refreshSession(userID, result)
	return result, nil
}

// ActiveSessionID returns the user's active session, if any.
func (s *ChatService) ActiveSessionID(userID uuid.UUID) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok || st.activeID == uuid.Nil {
		return uuid.Nil, false
	}
	return st.activeID, true
}

// State returns a copy of the user's cached state, loading the session list
// on first use.
func (s *ChatService) State(ctx context.Context, userID uuid.UUID) (*ChatState, error) {
	s.mu.Lock()
	loaded := s.stateLocked(userID).loaded
	s.mu.Unlock()
	if !loaded {
		if _, err := s.ListSessions(ctx, userID); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(userID)
	return &ChatState{
		Sessions:        append([]models.Session{}, st.sessions...),
		ActiveSessionID: st.activeID,
		Messages:        append([]models.Message{}, st.messages...),
	}, nil
}

func (s *ChatService) resolveSession(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) (*models.Session, error) {
	fromCache := false
	if sessionID == nil {
		if active, ok := s.ActiveSessionID(userID); ok {
			sessionID, fromCache = &active, true
		}
	}
	if sessionID == nil {
		return s.CreateSession(ctx, userID, nil)
	}

	sess, err := s.store.GetSession(ctx, *sessionID, userID)
	if err != nil {
		if fromCache && errors.Is(err, store.ErrNotFound) {
			// active session was deleted elsewhere
			s.forget(userID, []uuid.UUID{*sessionID})
			return s.CreateSession(ctx, userID, nil)
		}
		return nil, s.sessionErr(err, "resolving session", userID, *sessionID)
	}
	if active, _ := s.ActiveSessionID(userID); active != sess.ID {
		if _, err := s.LoadHistory(ctx, userID, sess.ID); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func (s *ChatService) refreshSession(userID uuid.UUID, result *SendResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.stateLocked(userID).sessions {
		if sess.ID == result.Session.ID {
			result.Session = sess
			return
		}
	}
}

func (s *ChatService) forget(userID uuid.UUID, ids []uuid.UUID) {
	gone := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(userID)
	kept := st.sessions[:0]
	for _, sess := range st.sessions {
		if _, ok := gone[sess.ID]; !ok {
			kept = append(kept, sess)
		}
	}
	st.sessions = kept
	if _, ok := gone[st.activeID]; ok {
		st.activeID = uuid.Nil
		st.messages = []models.Message{}
	}
}

func (s *ChatService) sessionErr(err error, action string, userID, sessionID uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	s.log.Error(action, zap.String("user_id", userID.String()), zap.String("session_id", sessionID.String()), zap.Error(err))
	return fmt.Errorf("%s: %w", action, err)
}

func (s *ChatService) stateLocked(userID uuid.UUID) *chatState {
	st, ok := s.states[userID]
	if !ok {
		st = &chatState{messages: []models.Message{}}
		s.states[userID] = st
	}
	return st
}

func moveToFront(sessions []models.Session, sess models.Session) []models.Session {
	out := make([]models.Session, 0, len(sessions)+1)
	out = append(out, sess)
	for _, existing := range sessions {
		if existing.ID != sess.ID {
			out = append(out, existing)
		}
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
