package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/staffhub/platform/internal/auth"
	"github.com/staffhub/platform/internal/guard"
	"github.com/staffhub/platform/internal/handler"
	"github.com/staffhub/platform/internal/infra"
	"github.com/staffhub/platform/internal/metrics"
	"github.com/staffhub/platform/internal/provider"
	"github.com/staffhub/platform/internal/repository"
	"github.com/staffhub/platform/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	Config *infra.Config
	JWTMgr *auth.JWTManager
	Logger *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	cfg := deps.Config
	logger := deps.Logger

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	// All repository traffic goes through the instrumented wrapper.
	db := repository.NewInstrumentedDB(pool, m)

	// Repositories
	sessionRepo := repository.NewSessionRepository()
	identityRepo := repository.NewIdentityRepository()
	employeeRepo := repository.NewPgEmployeeRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Guards and external providers
	lockout := guard.NewLockout(db, logger)
	idem := guard.NewIdempotencyGuard(guard.DefaultIdempotencyTTL)
	authLimiter := guard.NewRateLimiter(30, time.Minute)
	var geo service.GeoLookup
	if cfg.GeoEnabled {
		breaker := guard.NewCircuitBreaker(5, 30*time.Second)
		geo = provider.NewGeoIPClient(cfg.GeoAPIBaseURL, breaker, logger)
	}

	// Services
	activity := service.NewOutboxActivityRecorder(db, outboxRepo, logger)
	identitySvc := service.NewIdentityService(db, identityRepo, activity, logger)
	sessionMgr := service.NewSessionManager(db, sessionRepo, deps.JWTMgr, identitySvc, activity,
		service.SessionConfig{TTL: cfg.SessionTTL, MaxConcurrent: cfg.MaxSessionsPerUser}, m, logger)
	detector := service.NewSuspiciousLoginDetector(db, identityRepo, logger)
	authSvc := service.NewAuthService(db, employeeRepo, sessionMgr, identitySvc, detector,
		lockout, geo, activity, m, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, sessionMgr, idem)
	sessionHandler := handler.NewSessionHandler(sessionMgr)
	identityAdmin := handler.NewIdentityAdminHandler(identitySvc, sessionMgr)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.Observe(m))
	r.Use(handler.CORS)

	// Health and metrics (no auth, no JSON content-type)
	r.Get("/health", handler.HealthHandler(pool))
	r.Method("GET", "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		// Auth routes (no session required, per-IP rate limited)
		r.Route("/auth", func(r chi.Router) {
			r.Use(handler.RateLimit(authLimiter))
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireSession(sessionMgr))
				r.Post("/logout", authHandler.Logout)
				r.Post("/password", authHandler.ChangePassword)
			})
		})

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(sessionMgr))

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Get("/me", sessionHandler.Current)
				r.Get("/stats", sessionHandler.Stats)
				r.Delete("/", sessionHandler.TerminateAll)
				r.Delete("/{sessionID}", sessionHandler.Terminate)
			})
		})

		// Operator routes, admin role only
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireSession(sessionMgr))
			r.Use(auth.RequireRole(authSvc, auth.RoleAdmin))

			r.Get("/sessions/stats", identityAdmin.SystemStats)

			r.Route("/identities/{identityID}", func(r chi.Router) {
				r.Get("/", identityAdmin.Get)
				r.Post("/block", identityAdmin.Block)
				r.Post("/unblock", identityAdmin.Unblock)
				r.Post("/verify", identityAdmin.Verify)
			})

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/identities", identityAdmin.ListForUser)
				r.Delete("/sessions", identityAdmin.TerminateUserSessions)
			})
		})
	})

	return r
}
