package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quizforge/mocktest-backend/internal/config"
	"github.com/quizforge/mocktest-backend/internal/handler"
	"github.com/quizforge/mocktest-backend/internal/middleware"
	"github.com/quizforge/mocktest-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session creation (30 per minute per IP).
	createLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── Session Group ─────────────────────────────────────────────────
	sessions := router.Group("/api/v1/sessions")
	{
		sessions.POST("", createLimiter.Middleware(), handlers.Session.Create)
		sessions.GET("/:id/view", handlers.Session.GetView)
		sessions.POST("/:id/select", handlers.Session.Select)
		sessions.POST("/:id/navigate", handlers.Session.Navigate)
		sessions.POST("/:id/submit", handlers.Session.Submit)
		sessions.GET("/:id/summary", handlers.Session.GetSummary)
	}

	// ─── WebSocket Group ───────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	return router
}
