package http

import (
	"github.com/gin-gonic/gin"

	"command-center/internal/bootstrap"
	"command-center/internal/metrics"
	"command-center/internal/transport/http/handler"
	"command-center/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(app.Log))
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
		router.Use(middleware.RateLimit(limiter))
	}

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	ragHandler := handler.NewRAGHandler(app.RAG, cfg.MaxUploadBytes(), app.Log)

	ragGroup := router.Group("/api/rag")
	if cfg.Auth.Enabled {
		ragGroup.Use(middleware.AuthJWT(cfg.Auth.JWTSecret))
	}
	ragGroup.POST("/upload", ragHandler.Upload)
	ragGroup.POST("/ingest", ragHandler.Ingest)
	ragGroup.POST("/search", ragHandler.Search)
	ragGroup.GET("/list", ragHandler.List)
	ragGroup.DELETE("/delete/:id", ragHandler.Delete)
	ragGroup.DELETE("/delete_all", ragHandler.DeleteAll)

	return router
}
