package main

import (
	"github.com/fablenest/rewards/config"
	"github.com/fablenest/rewards/models"
	"github.com/fablenest/rewards/routes"
	"github.com/fablenest/rewards/services"
	"github.com/fablenest/rewards/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.CoinAccount{},
		&models.CoinTransaction{},
		&models.DailyTask{},
		&models.TaskProgress{},
		&models.Streak{},
		&models.Subscription{},
	)

	r := routes.SetupRouter(db)

	// Nightly pruning of old per-day task progress rows (best-effort)
	sweeper := services.NewRetentionSweeper(db, cfg.ProgressRetentionDays)
	if err := sweeper.Start(); err != nil {
		utils.Sugar.Warnf("retention sweeper disabled: %v", err)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
	sweeper.Stop()
}
