// Package sqlite is a single-file store.Store built on gorm, for local runs
// without a Postgres server.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
)

var _ store.Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Session{}, &models.Message{}, &models.WebhookSettings{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	log.Named("sqlite").Info("database initialized", zap.String("path", path))
	return &SQLiteStore{db: db, log: log.Named("sqlite")}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("lower(email) = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions := []models.Session{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id, userID uuid.UUID) (*models.Session, error) {
	return getSession(s.db.WithContext(ctx), id, userID)
}

func getSession(db *gorm.DB, id, userID uuid.UUID) (*models.Session, error) {
	var sess models.Session
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&sess).Error; err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, arg store.CreateSessionParams) (*models.Session, error) {
	if arg.ID == uuid.Nil {
		arg.ID = uuid.New()
	}
	sess := &models.Session{ID: arg.ID, UserID: arg.UserID, Title: arg.Title}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) RenameSession(ctx context.Context, id, userID uuid.UUID, title string) (*models.Session, error) {
	var out *models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := getSession(tx, id, userID)
		if err != nil {
			return err
		}
		sess.Title = title
		if err := tx.Save(sess).Error; err != nil {
			return err
		}
		out = sess
		return nil
	})
	return out, err
}

// DeleteSession removes the session and its messages in one transaction.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id, userID uuid.UUID) error {
	n, err := s.DeleteSessions(ctx, userID, []uuid.UUID{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteSessions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []uuid.UUID
		if err := tx.Model(&models.Session{}).
			Where("user_id = ? AND id IN ?", userID, ids).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}
		if err := tx.Where("session_id IN ?", owned).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", owned).Delete(&models.Session{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return deleted, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID, userID uuid.UUID) ([]models.Message, error) {
	db := s.db.WithContext(ctx)
	if _, err := getSession(db, sessionID, userID); err != nil {
		return nil, err
	}
	messages := []models.Message{}
	err := db.Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// CreateMessage appends a message and updates the session's updated_at, like the postgres store.
func (s *SQLiteStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*models.Message, error) {
	now := time.Now().UTC()
	if arg.ID == uuid.Nil {
		arg.ID = uuid.New()
	}
	if arg.Timestamp == 0 {
		arg.Timestamp = now.UnixMilli()
	}
	msg := &models.Message{
		ID:        arg.ID,
		SessionID: arg.SessionID,
		Content:   arg.Content,
		Sender:    arg.Sender,
		Timestamp: arg.Timestamp,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND user_id = ?", arg.SessionID, arg.UserID).
			Update("updated_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *SQLiteStore) GetWebhookSettings(ctx context.Context, userID uuid.UUID) (*models.WebhookSettings, error) {
	var ws models.WebhookSettings
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&ws).Error; err != nil {
		return nil, notFound(err)
	}
	return &ws, nil
}

func (s *SQLiteStore) UpsertWebhookSettings(ctx context.Context, arg store.UpsertWebhookSettingsParams) (*models.WebhookSettings, error) {
	var out models.WebhookSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", arg.UserID).First(&out).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = models.WebhookSettings{ID: uuid.New(), UserID: arg.UserID}
		case err != nil:
			return err
		}
		out.WebhookURL = arg.WebhookURL
		out.EncryptedVariables = arg.EncryptedVariables
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert webhook settings: %w", err)
	}
	return &out, nil
}
