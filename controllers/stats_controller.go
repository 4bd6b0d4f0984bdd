package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fablenest/rewards/models"
	"github.com/fablenest/rewards/utils"
)

// StatsController provides aggregate reward-economy statistics.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate counters for operators and the public stats widget.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var accountCount int64
	var premiumCount int64
	var claimsToday int64
	var coinsToday int64

	if err := s.db.Model(&models.CoinAccount{}).Count(&accountCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		accountCount = 0
	}

	if err := s.db.Model(&models.Subscription{}).Where("is_premium = ?", true).Count(&premiumCount).Error; err != nil {
		premiumCount = 0
	}

	// Use string date equality to avoid timezone/type mismatches
	today := time.Now().In(time.Local).Format("2006-01-02")
	if err := s.db.Model(&models.TaskProgress{}).
		Where("reset_date = ? AND claimed = ?", today, true).
		Count(&claimsToday).Error; err != nil {
		claimsToday = 0
	}

	startOfDay := time.Date(time.Now().Year(), time.Now().Month(), time.Now().Day(), 0, 0, 0, 0, time.Local)
	if err := s.db.Model(&models.CoinTransaction{}).
		Where("created_at >= ? AND amount > 0", startOfDay).
		Select("COALESCE(SUM(amount),0)").
		Scan(&coinsToday).Error; err != nil {
		coinsToday = 0
	}

	utils.Success(ctx, gin.H{
		"account_count":      accountCount,
		"premium_count":      premiumCount,
		"claims_today":       claimsToday,
		"coins_earned_today": coinsToday,
	})
}
