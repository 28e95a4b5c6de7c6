package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/services"
	"relaychat-backend/pkg/httputil"
)

// AuthService defines the interface expected from the auth service.
type AuthService interface {
	Signup(ctx context.Context, email, password, confirmPassword string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type AuthHandler struct {
	authService AuthService
	log         *zap.Logger
}

func NewAuthHandler(authSvc AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authSvc,
		log:         logger.Named("auth_handler"),
	}
}

// HandleSignup handles the POST /v1/auth/signup request.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.authService.Signup(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		h.log.Info("signup rejected", zap.String("email", req.Email), zap.Error(err))
		respondServiceError(w, h.log, err, "sign up")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, services.UserToResponse(user)) // 201 Created
}

// HandleLogin handles the POST /v1/auth/login request.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			httputil.RespondError(w, http.StatusUnauthorized, err.Error()) // 401
			return
		}
		respondServiceError(w, h.log, err, "log in")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.AuthResponse{
		AccessToken: token,
		User:        services.UserToResponse(user),
	})
}

// HandleMe handles GET /v1/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.authService.Me(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.log, err, "load profile")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, services.UserToResponse(user))
}
