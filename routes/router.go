package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/controllers"
	"github.com/stridehq/stride/middleware"
	"github.com/stridehq/stride/services"
	"github.com/stridehq/stride/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, ledger *services.LedgerService, ranking *services.RankingService, dispatcher *services.Dispatcher, webhook *services.WebhookService) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	projectController := controllers.NewProjectController(db)
	completionController := controllers.NewCompletionController(ledger)
	rankingController := controllers.NewRankingController(ranking)
	dispatchController := controllers.NewDispatchController(dispatcher)
	webhookController := controllers.NewWebhookController(webhook)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Provider callbacks authenticate themselves via payload identity, not JWT
	api.POST("/webhook/:provider", middleware.RateLimitMiddleware(), webhookController.Receive)

	// Public reads
	api.GET("/rankings/users", rankingController.Users)
	api.GET("/rankings/organizations", rankingController.Organizations)
	api.GET("/stats", statsController.GetStats)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/completions", completionController.Submit)
	protected.GET("/projects/:id/completions", completionController.ListMine)
	protected.GET("/projects/:id/templates", projectController.ListTemplates)

	admin := api.Group("")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.RateLimitMiddleware())
	admin.POST("/projects", projectController.CreateProject)
	admin.POST("/projects/:id/templates/import", projectController.ImportTemplates)
	admin.POST("/projects/:id/members", projectController.AddMember)
	admin.POST("/completions/:id/evaluate", completionController.Evaluate)
	admin.POST("/dispatch/tasks", dispatchController.CreateTask)
	admin.GET("/dispatch/tasks/:id/logs", dispatchController.TaskLogs)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
