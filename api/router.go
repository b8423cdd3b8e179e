package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/blotter/api/handler"
	"github.com/use-agent/blotter/api/middleware"
	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/webhook"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring checks always work.
func NewRouter(runner handler.Runner, upload handler.UploadFunc, notifier *webhook.Notifier, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	gate := &handler.Gate{}
	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(gate, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(runner, upload, notifier, gate))

	return r
}
