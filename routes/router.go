package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fablenest/rewards/config"
	"github.com/fablenest/rewards/controllers"
	"github.com/fablenest/rewards/middleware"
	"github.com/fablenest/rewards/services"
	"github.com/fablenest/rewards/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
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

	ledger := services.NewLedger(db, services.Config{
		StartingBalance:  cfg.StartingBalance,
		WeeklyBonusCoins: cfg.WeeklyBonusCoins,
		PremiumCostCoins: cfg.PremiumCostCoins,
	}, services.NewRedisNotifier(), services.NewAlerter(cfg.TelegramBotToken, cfg.TelegramAlertChatID)).WithTaskCache()

	rewardsController := controllers.NewRewardsController(ledger)
	walletController := controllers.NewWalletController(ledger)
	subscriptionController := controllers.NewSubscriptionController(ledger)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api/v1")

	// Public stats endpoint
	api.GET("/stats", statsController.GetStats)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	rewards := protected.Group("/rewards")
	rewards.GET("/overview", rewardsController.Overview)
	rewards.POST("/events", rewardsController.RecordEvent)
	rewards.POST("/tasks/:id/claim", rewardsController.ClaimReward)
	rewards.GET("/streak", rewardsController.Streak)
	rewards.GET("/wallet", walletController.GetWallet)
	rewards.GET("/wallet/transactions", walletController.ListTransactions)

	protected.GET("/subscription", subscriptionController.GetStatus)
	protected.POST("/subscription/purchase", subscriptionController.Purchase)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
