package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/airtable"
	"github.com/hugh/pipedesk/internal/api/handlers"
	"github.com/hugh/pipedesk/internal/api/middleware"
	"github.com/hugh/pipedesk/internal/apikeys"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/auth"
	"github.com/hugh/pipedesk/internal/billing"
	"github.com/hugh/pipedesk/internal/crm"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/orgs"
	"github.com/hugh/pipedesk/internal/settings"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB            *gorm.DB
	Redis         *redis.Client // optional; enables the shared rate limiter and health check
	Logger        *slog.Logger
	Guard         *access.Guard
	AuthService   *auth.Service
	SessionTTL    time.Duration
	Orgs          *orgs.Service
	APIKeys       *apikeys.Service
	Settings      *settings.Service
	Audit         *audit.Recorder
	CRM           *crm.Service
	Notifications *notify.Service
	Billing       *billing.Service // nil leaves the billing routes unmounted
	Airtable      *airtable.Service

	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	SecureCookies  bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		var limiter middleware.Limiter
		if cfg.Redis != nil {
			limiter = middleware.NewRedisLimiter(cfg.Redis, cfg.RateLimitReqs, cfg.RateLimitSecs, cfg.Logger)
		} else {
			limiter = middleware.NewMemoryLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
		}
		r.Use(middleware.RateLimit(limiter))
	}

	// CORS - restrict to configured origins, localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.CSRFHeaderName, middleware.APIKeyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.SessionTTL, cfg.SecureCookies, cfg.Logger)
	orgHandler := handlers.NewOrganizationHandler(cfg.Orgs, cfg.Audit, cfg.Logger)
	keyHandler := handlers.NewAPIKeyHandler(cfg.APIKeys, cfg.Logger)
	settingsHandler := handlers.NewSettingsHandler(cfg.Settings, cfg.Logger)
	pipelineHandler := handlers.NewPipelineHandler(cfg.CRM, cfg.Logger)
	stageHandler := handlers.NewStageHandler(cfg.CRM, cfg.Logger)
	leadHandler := handlers.NewLeadHandler(cfg.CRM, cfg.Logger)
	notificationHandler := handlers.NewNotificationHandler(cfg.Notifications, cfg.Logger)
	airtableHandler := handlers.NewAirtableHandler(cfg.Airtable, cfg.Logger)

	csrfStore := middleware.NewCSRFStore()

	var billingHandler *handlers.BillingHandler
	if cfg.Billing != nil {
		billingHandler = handlers.NewBillingHandler(cfg.Billing, cfg.Guard, cfg.Logger)
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)
		if billingHandler != nil {
			r.Post("/billing/webhook", billingHandler.Webhook)
		}

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRF(csrfStore))
			r.Use(middleware.Auth(cfg.AuthService, cfg.APIKeys))

			// Account-wide routes need a session.
			r.Group(func(r chi.Router) {
				r.Use(middleware.SessionOnly)

				r.Post("/auth/logout", authHandler.Logout)
				r.Get("/auth/me", authHandler.Me)

				r.Get("/organizations", orgHandler.List)
				r.Post("/organizations", orgHandler.Create)
			})

			if billingHandler != nil {
				r.Post("/billing/create-checkout-session", billingHandler.CreateCheckoutSession)
				r.Post("/billing/create-portal-session", billingHandler.CreatePortalSession)
			}

			r.Route("/organizations/{orgId}", func(r chi.Router) {
				r.Use(middleware.OrgAccess(cfg.Guard, cfg.Logger))

				r.Get("/", orgHandler.Get)
				r.Get("/audit-logs", orgHandler.AuditLogs)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", orgHandler.ListMembers)
					r.Post("/", orgHandler.InviteMember)
					r.Patch("/{userId}", orgHandler.UpdateMember)
					r.Delete("/{userId}", orgHandler.RemoveMember)
				})

				r.Route("/api-keys", func(r chi.Router) {
					r.Get("/", keyHandler.List)
					r.Post("/", keyHandler.Create)
					r.Delete("/{keyId}", keyHandler.Delete)
				})

				r.Route("/settings", func(r chi.Router) {
					r.Get("/", settingsHandler.List)
					r.Get("/{key}", settingsHandler.Get)
					r.Put("/{key}", settingsHandler.Put)
					r.Delete("/{key}", settingsHandler.Delete)
				})

				r.Route("/pipelines", func(r chi.Router) {
					r.Get("/", pipelineHandler.List)
					r.Post("/", pipelineHandler.Create)
					r.Get("/{pipelineId}", pipelineHandler.Get)
					r.Put("/{pipelineId}", pipelineHandler.Update)
					r.Delete("/{pipelineId}", pipelineHandler.Delete)
				})

				r.Route("/stages", func(r chi.Router) {
					r.Get("/", stageHandler.List)
					r.Post("/", stageHandler.Create)
					r.Post("/reorder", stageHandler.Reorder)
					r.Get("/{stageId}", stageHandler.Get)
					r.Put("/{stageId}", stageHandler.Update)
					r.Delete("/{stageId}", stageHandler.Delete)
				})

				r.Route("/leads", func(r chi.Router) {
					r.Get("/", leadHandler.List)
					r.Post("/", leadHandler.Create)
					r.Get("/{leadId}", leadHandler.Get)
					r.Put("/{leadId}", leadHandler.Update)
					r.Delete("/{leadId}", leadHandler.Delete)
					r.Post("/{leadId}/move", leadHandler.Move)
					r.Get("/{leadId}/comments", leadHandler.ListComments)
					r.Post("/{leadId}/comments", leadHandler.CreateComment)
					r.Delete("/{leadId}/comments/{commentId}", leadHandler.DeleteComment)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", notificationHandler.List)
					r.Post("/{notificationId}/read", notificationHandler.MarkRead)
				})

				r.Route("/airtable", func(r chi.Router) {
					r.Post("/test", airtableHandler.Test)
					r.Post("/sync", airtableHandler.Sync)
				})
			})
		})
	})

	return &Router{r}
}
