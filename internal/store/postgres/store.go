package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

const uniqueViolation = "23505"

type PostgresStore struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, log: logger.Named("postgres")}
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, email, hashed_password, created_at, updated_at
FROM users
WHERE lower(email) = lower($1);
`

// GetUserByEmail retrieves a user by their email address.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, getUserByEmail, email), "email")
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, email, hashed_password, created_at, updated_at
FROM users
WHERE id = $1;
`

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, getUserByID, id), "id")
}

func (s *PostgresStore) scanUser(row pgx.Row, by string) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching user by %s: %w", by, err)
	}
	return user, nil
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (id, email, hashed_password)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at;
`

// CreateUser inserts a new user record into the database.
// A duplicate email yields store.ErrConflict.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.QueryRow(ctx, createUser, user.ID, user.Email, user.HashedPassword).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			s.log.Error("create user failed",
				zap.String("code", pgErr.Code),
				zap.String("detail", pgErr.Detail),
				zap.Error(err))
		}
		return fmt.Errorf("database error creating user: %w", err)
	}
	s.log.Debug("user created", zap.String("user_id", user.ID.String()))
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
