package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/handler"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Admin         *handler.AdminHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router, such as rate limiter sweeps.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(response.AccessLogMiddleware(log))

	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return strings.HasSuffix(c.Request.URL.Path, "/transcript")
		},
	}))

	// Question images referenced by exam definitions.
	assets := router.Group("/assets")
	assets.Use(middleware.CacheControl(86400))
	{
		assets.Static("/", cfg.AssetsDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute, middleware.ByClientIP)
	// Submissions and autosave connections are limited per user.
	studentLimiter := middleware.NewRateLimiter(ctx, 120, time.Minute, middleware.ByUserOrIP)

	requireJWT := middleware.RequireJWT(authService)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", requireJWT, handlers.Auth.Logout)
		auth.GET("/me", requireJWT, handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		requireJWT,
		middleware.RequireRole(model.RoleStudent),
		middleware.CheckSingleDeviceSession(authService),
		studentLimiter.Middleware(),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.GET("/exams/:exam/paper", handlers.StudentPortal.GetExamPaper)
		studentAPI.GET("/exams/:exam/state", handlers.StudentPortal.GetExamState)
		studentAPI.POST("/exams/:exam/submit", handlers.StudentPortal.SubmitExam)
		studentAPI.GET("/exams/:exam/status", handlers.StudentPortal.GetSubmissionStatus)
		studentAPI.GET("/exams/:exam/solution", handlers.StudentPortal.GetSolution)
		studentAPI.GET("/transcript", handlers.StudentPortal.DownloadTranscript)
	}

	// ─── 3. WebSocket Group (token query param) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		requireJWT,
		middleware.RequireRole(model.RoleStudent),
		middleware.CheckSingleDeviceSession(authService),
		studentLimiter.Middleware(),
	)
	{
		ws.GET("/student/exams/:exam/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 4. Admin Group (JWT + role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(requireJWT, middleware.RequireRole(model.RoleAdmin), middleware.NoStore())
	{
		adminAPI.GET("/exams", handlers.Admin.ListExams)
		adminAPI.POST("/exams/:key/refresh-cache", handlers.Admin.RefreshExamCache)
		adminAPI.GET("/exams/:key/results", handlers.Admin.GetResults)
		adminAPI.GET("/exams/:key/results/export", handlers.Admin.ExportResults)
		adminAPI.DELETE("/exams/:key/submissions/:user_id", handlers.Admin.ResetSubmission)
		adminAPI.DELETE("/sessions/:user_id", handlers.Admin.ResetStudentSession)
	}

	return router
}
