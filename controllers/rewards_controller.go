package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fablenest/rewards/middleware"
	"github.com/fablenest/rewards/services"
	"github.com/fablenest/rewards/utils"
)

// RewardsController exposes the daily-task board, the progress event hook,
// and the manual claim path.
type RewardsController struct {
	ledger *services.Ledger
}

// NewRewardsController creates a new controller instance.
func NewRewardsController(ledger *services.Ledger) *RewardsController {
	return &RewardsController{ledger: ledger}
}

// Overview returns the balance, streak, and today's task board for the user.
func (r *RewardsController) Overview(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	utils.Success(ctx, r.ledger.Overview(ctx.Request.Context(), userID))
}

// RecordEvent advances tasks matching the raised type tag. The response is
// always a success: the reward pipeline must never break the primary user
// action (sending a message, creating a character, logging in) that raised
// the event.
func (r *RewardsController) RecordEvent(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		TaskType  string `json:"task_type" binding:"required"`
		Increment int    `json:"increment"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	r.ledger.RecordEvent(ctx.Request.Context(), userID, req.TaskType, req.Increment)
	utils.Success(ctx, gin.H{"accepted": true})
}

// ClaimReward converts a completed task into coins via the manual path.
func (r *RewardsController) ClaimReward(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	taskID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid task id")
		return
	}

	reward, err := r.ledger.ClaimReward(ctx.Request.Context(), userID, uint(taskID))
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
	case errors.Is(err, services.ErrTaskNotCompleted):
		utils.Error(ctx, http.StatusBadRequest, 40030, "task not completed")
	case errors.Is(err, services.ErrRewardAlreadyClaimed):
		utils.Error(ctx, http.StatusBadRequest, 40031, "reward already claimed")
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to claim reward")
	default:
		utils.Success(ctx, gin.H{"reward_coins": reward})
	}
}

// Streak returns the user's streak record.
func (r *RewardsController) Streak(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	streak, err := r.ledger.StreakStatus(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load streak")
		return
	}
	utils.Success(ctx, gin.H{"streak": streak})
}
