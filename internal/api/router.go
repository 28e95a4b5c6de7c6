package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"relaychat-backend/internal/config"
	"relaychat-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler    *handlers.AuthHandler
	SessionHandler *handlers.SessionHandler
	MessageHandler *handlers.MessageHandler
	WebhookHandler *handlers.WebhookHandler
	WSHandler      *handlers.WSHandler
	Config         *config.Config
	Logger         *zap.Logger
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("router")

	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Use(middleware.Timeout(60 * time.Second))
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret, logger))

		// Long-lived; kept outside the request timeout.
		if deps.WSHandler != nil {
			r.Get("/ws", deps.WSHandler.HandleWS)
		} else {
			log.Warn("WSHandler dependency is nil, skipping /v1/ws route")
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/me", deps.AuthHandler.HandleMe)

			// --- Mount Session Routes ---
			if deps.SessionHandler != nil {
				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", deps.SessionHandler.HandleListSessions)
					r.Post("/", deps.SessionHandler.HandleCreateSession)
					r.Post("/batch-delete", deps.SessionHandler.HandleBatchDeleteSessions)
					r.Patch("/{sessionID}", deps.SessionHandler.HandleRenameSession)
					r.Delete("/{sessionID}", deps.SessionHandler.HandleDeleteSession)

					if deps.MessageHandler != nil {
						r.Get("/{sessionID}/messages", deps.MessageHandler.HandleListMessages)
						r.Post("/{sessionID}/messages", deps.MessageHandler.HandleAddUserMessage)
						r.Post("/{sessionID}/messages/system", deps.MessageHandler.HandleAddSystemMessage)
					}
				})
			} else {
				log.Warn("SessionHandler dependency is nil, skipping /v1/sessions routes")
			}

			// --- Mount Chat Routes ---
			if deps.MessageHandler != nil {
				r.Post("/messages", deps.MessageHandler.HandleSendMessage)
				r.Get("/chat/state", deps.MessageHandler.HandleChatState)
			} else {
				log.Warn("MessageHandler dependency is nil, skipping message routes")
			}

			// --- Mount Webhook Settings Routes ---
			if deps.WebhookHandler != nil {
				r.Route("/webhook-settings", func(r chi.Router) {
					r.Get("/", deps.WebhookHandler.HandleGetSettings)
					r.Put("/", deps.WebhookHandler.HandleReplaceSettings)
					r.Put("/url", deps.WebhookHandler.HandleUpdateURL)
					r.Put("/variables/{key}", deps.WebhookHandler.HandleSetVariable)
					r.Delete("/variables/{key}", deps.WebhookHandler.HandleRemoveVariable)
					r.Post("/save", deps.WebhookHandler.HandleSave)
					r.Get("/test", deps.WebhookHandler.HandleTestStatus)
					r.Post("/test", deps.WebhookHandler.HandleStartTest)
					r.Delete("/test", deps.WebhookHandler.HandleResetTest)
				})
			} else {
				log.Warn("WebhookHandler dependency is nil, skipping /v1/webhook-settings routes")
			}
		})
	})

	return r
}
