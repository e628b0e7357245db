package main

import (
	"net/http"
	"time"

	"screening-platform/internal/app"
	"screening-platform/internal/auth"
	"screening-platform/internal/httpapi"
	"screening-platform/internal/rbac"
	"screening-platform/internal/webhook"
	"screening-platform/pkg/logger"
	"screening-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app.App, m *auth.Manager) {
	h := httpapi.Handlers{
		Auth:        m,
		Screening:   a.Orchestrator,
		Eligibility: a.Admission,
		Calls:       a.Store,
		Apps:        a.Apps,
		Reports:     a.Reports,
		Sweeper:     a.Reaper,
		Validate:    httpapi.NewValidator(),
		AllowLogin:  !a.Cfg.IsProduction(),

		// A call still open after the stale timeout is reaped, so its
		// interrupt token need not outlive it.
		InterruptTTL: a.Cfg.Screening.StaleTimeout,
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), a.DB, 2*time.Second); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public, HMAC-verified when a secret is configured).
	wh := webhook.NewHandler(a.Orchestrator, a.Store, a.Cfg.Voice.WebhookSecret)
	r.POST("/webhooks/voice", wh.Handle)

	r.POST("/v1/auth/login", h.Login)

	// Unload beacons cannot set Authorization; they carry the interrupt
	// token issued by StartScreeningCall in ?token=.
	r.POST("/v1/screening-calls/:id/beacon", auth.RequireInterruptToken(m), h.InterruptBeacon)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(m), rbac.RequireIdentity())
	{
		v1.GET("/me", h.Me)

		apps := v1.Group("/applications/:id")
		apps.Use(rbac.RequireAnyRole(rbac.RoleCandidate, rbac.RoleRecruiter))
		{
			apps.POST("/screening-calls", h.StartScreeningCall)
			apps.GET("/screening-calls", h.ListScreeningCalls)
			apps.GET("/screening-eligibility", h.ScreeningEligibility)
		}

		calls := v1.Group("/screening-calls/:id")
		calls.Use(rbac.RequireAnyRole(rbac.RoleCandidate, rbac.RoleRecruiter))
		{
			calls.GET("", h.GetScreeningCall)
			calls.POST("/stop", h.StopScreeningCall)
			calls.POST("/interrupt", h.InterruptScreeningCall)
		}

		jobs := v1.Group("/jobs/:id")
		jobs.Use(rbac.RequireAnyRole(rbac.RoleRecruiter))
		{
			jobs.GET("/screening-summary", h.JobScreeningSummary)
		}

		// ADMIN routes
		// Only admin and the hidden service role reach these.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleService))
		{
			admin.POST("/screening/sweep", h.SweepStale)
			admin.POST("/screening-calls/:id/resolve", h.ResolveScreeningCall)
		}
	}
}
