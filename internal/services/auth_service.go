package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/auth"
	"relaychat-backend/internal/config"
	"relaychat-backend/internal/models"
	"relaychat-backend/internal/store"
	"relaychat-backend/internal/validate"
)

// Custom errors for auth service
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
	ErrCreatingUser       = errors.New("failed to create user")
	ErrUserNotFound       = errors.New("user not found")
	ErrValidation         = validate.ErrInvalid // matched by validate.FieldErrors too
)

type AuthService struct {
	store store.Store
	cfg   *config.Config
	log   *zap.Logger
}

func NewAuthService(s store.Store, cfg *config.Config, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store: s,
		cfg:   cfg,
		log:   logger.Named("auth_service"),
	}
}

// Signup validates the signup form and creates the user. Field problems come
// back as validate.FieldErrors before the store is touched.
func (s *AuthService) Signup(ctx context.Context, email, password, confirmPassword string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if fe := validate.Signup(email, password, confirmPassword); len(fe) > 0 {
		return nil, fe
	}
	email = strings.ToLower(email)

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.log.Error("checking user existence", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		s.log.Error("hashing password", zap.String("email", email), zap.Error(err))
		return nil, ErrHashingPassword
	}

	user := &models.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		s.log.Error("creating user", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCreatingUser, err)
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login verifies user credentials and returns an access token and user info.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials // Don't reveal if user exists or password is wrong
		}
		s.log.Error("retrieving user during login", zap.String("email", email), zap.Error(err))
		return "", nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	ok, err := auth.CheckPasswordHash(password, user.HashedPassword)
	if err != nil {
		s.log.Warn("comparing password hash", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		s.log.Error("generating token", zap.String("user_id", user.ID.String()), zap.Error(err))
		return "", nil, ErrCreatingToken
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	return token, user, nil
}

// Me returns the authenticated user's record.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// UserToResponse strips the password hash.
func UserToResponse(u *models.User) models.UserResponse {
	return models.UserResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}
