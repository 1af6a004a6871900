package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/queridometro/config"
	"github.com/cppla/queridometro/controllers"
	"github.com/cppla/queridometro/middleware"
	"github.com/cppla/queridometro/store"
	"github.com/cppla/queridometro/tally"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

// NewService builds the voting workflows over the gorm stores.
func NewService(db *gorm.DB, cfg config.AppConfig) *usecase.Queridometro {
	return usecase.New(store.NewVoteStore(db), store.NewUserStore(db), utils.BcryptHasher{}, usecase.Options{
		Roster:         tally.NewRoster(cfg.Roster),
		Palette:        tally.NewPalette(cfg.Emojis),
		Quorum:         cfg.Quorum,
		Location:       tally.ReferenceZone(cfg.TimezoneOffsetMinutes),
		MinPasswordLen: cfg.MinPasswordLen,
	})
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, svc *usecase.Queridometro) *gin.Engine {
	// Load config and set Gin mode from configuration
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
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		utils.Sugar.Warnf("gin access log disabled: %v", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
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

	users := store.NewUserStore(db)
	votes := store.NewVoteStore(db)
	guard := utils.NewLoginGuard(utils.GetRedis(), cfg.LoginMaxFailuresPerHour, time.Duration(cfg.LoginLockMinutes)*time.Minute)

	authController := controllers.NewAuthController(svc, guard, time.Duration(cfg.TokenTTLHours)*time.Hour, cfg.AdminUsernames)
	ballotController := controllers.NewBallotController(svc)
	resultsController := controllers.NewResultsController(svc, time.Duration(cfg.ResultsCacheSeconds)*time.Second)
	statsController := controllers.NewStatsController(svc, users, votes)
	configController := controllers.NewConfigController(svc)

	api := r.Group("/api/v1")

	api.GET("/config", configController.GetConfig)
	api.GET("/stats", statsController.GetStats)
	api.GET("/results", resultsController.Today)
	api.GET("/results/:day", resultsController.ByDay)
	api.GET("/history", resultsController.History)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), authController.Login)
	authGroup.POST("/register", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), authController.Register)
	authGroup.POST("/logout", middleware.AuthRequired(svc), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(svc), authController.Me)
	authGroup.PATCH("/password", middleware.AuthRequired(svc), authController.ChangePassword)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(svc))
	protected.GET("/ballot/status", ballotController.Status)
	protected.POST("/ballot", ballotController.Submit)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(svc), middleware.AdminRequired(cfg.AdminUsernames))
	admin.POST("/users/:name/reset", authController.ResetPassword)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
