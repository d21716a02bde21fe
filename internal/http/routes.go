package http

import (
	"tasksync/internal/config"
	"tasksync/internal/http/handlers"
	"tasksync/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the health probes and the /api/v1 task sync API.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, cfg *config.Config) {
	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.APIRateLimit, cfg.APIRateWindow))
	v1.Use(middleware.JWT())

	v1.GET("/me", h.Me)

	// Sync is the heaviest call, so it also gets a per-user budget.
	syncRL := middleware.UserRateLimit(cfg.SyncRateLimit, cfg.SyncRateWindow)
	sync := v1.Group("/sync")
	{
		sync.POST("", syncRL, h.Sync)
		sync.GET("/diff", h.ServerDiff)
		sync.GET("/watermark", h.Watermark)
	}

	tasks := v1.Group("/tasks")
	{
		tasks.GET("", h.ListTasks)
		tasks.DELETE("", h.DeleteTasks)
		tasks.GET("/changes", h.ListChanges)
		tasks.GET("/:id", h.GetTask)
		tasks.PUT("/:id", h.PutTask)
	}
}
