package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mapscout/api/handler"
	"github.com/use-agent/mapscout/api/middleware"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/jobs"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// Background middleware state (rate limiter eviction) lives until ctx is done.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health sits outside the API chain.
func NewRouter(ctx context.Context, m *jobs.Manager, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health is public.
	v1.GET("/health", handler.Health(m, startTime))

	// Protected group: auth, then rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	d := handler.DefaultsFrom(cfg)

	// Scrape
	protected.POST("/scrape", handler.Scrape(m, d))
	protected.GET("/scrape", handler.Scrape(m, d))

	// Async jobs
	protected.POST("/scrape/async", handler.PostAsync(m, d))
	protected.GET("/jobs/:id", handler.GetJob(m))

	// Batch
	protected.POST("/scrape/batch", handler.PostBatch(m, d))
	protected.GET("/batches/:id", handler.GetBatch(m))

	return r
}
