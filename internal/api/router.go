package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/keen-violet-ibis/rfphub/internal/api/auth"
	"github.com/keen-violet-ibis/rfphub/internal/api/companies"
	"github.com/keen-violet-ibis/rfphub/internal/api/documents"
	"github.com/keen-violet-ibis/rfphub/internal/api/grants"
	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/api/notifications"
	"github.com/keen-violet-ibis/rfphub/internal/api/questions"
	"github.com/keen-violet-ibis/rfphub/internal/api/rfps"
	"github.com/keen-violet-ibis/rfphub/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	rfpHandler := rfps.NewHandler(s.storage, s.engine, s.lifecycle)
	docHandler := documents.NewHandler(s.storage, s.engine)
	grantHandler := grants.NewHandler(s.storage, s.engine, s.dispatcher)
	questionHandler := questions.NewHandler(s.storage, s.engine, s.dispatcher)
	notificationHandler := notifications.NewHandler(s.storage, s.engine)
	companyHandler := companies.NewHandler(s.storage, s.engine, s.linker)
	userHandler := users.NewHandler(s.storage, s.engine, s.resolver)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public, IP rate limited)
		r.Route("/auth", func(r chi.Router) {
			authHandler := auth.NewHandler(s.storage, jwtService, s.resolver, s.linker)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/login", authHandler.Login)
				r.Post("/signup", authHandler.Signup)
			})
		})

		// RFP routes. Reads take an optional token: public RFPs are
		// visible anonymously, everything else resolves through policy.
		r.Route("/rfps", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.OptionalAuth(jwtService, s.resolver))
				r.Get("/", rfpHandler.List)
				r.Get("/{id}", rfpHandler.Get)
				r.Get("/{id}/milestones", rfpHandler.GetMilestones)
				r.Get("/{id}/components", rfpHandler.ListComponents)
				r.Get("/{id}/documents", docHandler.ListByRFP)
				r.Get("/{id}/questions", questionHandler.ListByRFP)
			})

			// Authenticated actions on an RFP
			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService, s.resolver))
				r.Use(middleware.RateLimitByUser(userLimiter))

				r.Post("/{id}/nda", grantHandler.SignNDA)
				r.Post("/{id}/access-requests", grantHandler.RequestAccess)
				r.Post("/{id}/questions", questionHandler.Ask)

				// Admin-only writes
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/", rfpHandler.Create)
					r.Put("/{id}", rfpHandler.Update)
					r.Delete("/{id}", rfpHandler.Delete)
					r.Post("/{id}/publish", rfpHandler.Publish)
					r.Post("/{id}/close", rfpHandler.Close)
					r.Put("/{id}/milestones", rfpHandler.ReplaceMilestones)
					r.Post("/{id}/components", rfpHandler.CreateComponent)
					r.Post("/{id}/documents", docHandler.Create)
					r.Get("/{id}/ndas", grantHandler.ListNDAsByRFP)
					r.Get("/{id}/access", grantHandler.ListAccessByRFP)
					r.Post("/{id}/access", grantHandler.GrantAccess)
				})
			})
		})

		// Component and document reads stand alone so deep links work.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(jwtService, s.resolver))
			r.Get("/components/{componentID}", rfpHandler.GetComponent)
			r.Get("/documents/{id}", docHandler.Get)
		})

		// Document and component admin writes
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.resolver))
			r.Use(middleware.RequireAdmin)
			r.Put("/documents/{id}", docHandler.Update)
			r.Delete("/documents/{id}", docHandler.Delete)
			r.Delete("/components/{componentID}", rfpHandler.DeleteComponent)
		})

		// Grant decision routes (admin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.resolver))
			r.Use(middleware.RequireAdmin)
			r.Post("/ndas/{grantID}/approve", grantHandler.ApproveNDA)
			r.Post("/ndas/{grantID}/reject", grantHandler.RejectNDA)
			r.Post("/access/{grantID}/approve", grantHandler.ApproveAccess)
			r.Post("/access/{grantID}/reject", grantHandler.RejectAccess)
			r.Post("/questions/{questionID}/answer", questionHandler.Answer)
		})

		// Caller-owned listings
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.resolver))
			r.Use(middleware.RateLimitByUser(userLimiter))
			r.Get("/ndas/mine", grantHandler.MyNDAs)
			r.Get("/access/mine", grantHandler.MyAccess)
			r.Get("/questions/mine", questionHandler.Mine)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Get("/unread-count", notificationHandler.UnreadCount)
				r.Post("/{id}/read", notificationHandler.MarkRead)
			})
		})

		// Company routes (protected)
		r.Route("/companies", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.resolver))
			r.Use(middleware.RateLimitByUser(userLimiter))

			r.Post("/", companyHandler.Create)
			r.Get("/{id}", companyHandler.Get)
			r.Put("/{id}", companyHandler.Update)
			r.Get("/{id}/member-count", companyHandler.MemberCount)
			r.Post("/{id}/members", companyHandler.AddMember)
			r.Delete("/{id}/members/{userID}", companyHandler.RemoveMember)

			// Admin-only linkage operations
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/reconcile", companyHandler.Reconcile)
				r.Get("/link-audits", companyHandler.LinkAudits)
			})
		})

		// User routes (protected)
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.resolver))
			r.Use(middleware.RateLimitByUser(userLimiter))

			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateMe)
			r.Put("/me/password", userHandler.ChangePassword)

			// Admin-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/", userHandler.List)
				r.Put("/{id}/role", userHandler.UpdateRole)
				r.Delete("/{id}", userHandler.Delete)
			})

			// Per-user reads (admin or self)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdminOrSelf)
				r.Get("/{id}", userHandler.GetByID)
			})
		})
	})

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
