package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/api/handler"
	"github.com/use-agent/judfetch/api/middleware"
	"github.com/use-agent/judfetch/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:     Recovery → Logger
//	API:        Auth (if enabled)
//	Run starts: RunLimit
//
// Health stays outside auth for monitoring.
// Only the two POSTs that occupy a browser session draw from the run limit;
// status polling, exports and archives are free.
func NewRouter(runner handler.Runner, stats handler.SessionStats, jobs *handler.Jobs, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(stats, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	runLimit := middleware.RunLimit(cfg.RunLimit)

	// Searches
	protected.POST("/searches", runLimit, handler.PostSearch(runner, jobs))
	protected.GET("/searches/:id", handler.GetSearch(jobs))
	protected.GET("/searches/:id/export", handler.GetSearchExport(jobs))

	// Downloads
	protected.POST("/searches/:id/downloads", runLimit, handler.PostDownload(runner, jobs))
	protected.GET("/downloads/:id", handler.GetDownload(jobs))
	protected.GET("/downloads/:id/archive", handler.GetDownloadArchive(jobs))

	return r
}
