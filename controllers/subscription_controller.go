package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fablenest/rewards/middleware"
	"github.com/fablenest/rewards/services"
	"github.com/fablenest/rewards/utils"
)

// SubscriptionController handles the coin-funded premium tier.
type SubscriptionController struct {
	ledger *services.Ledger
}

// NewSubscriptionController creates a new controller instance.
func NewSubscriptionController(ledger *services.Ledger) *SubscriptionController {
	return &SubscriptionController{ledger: ledger}
}

// GetStatus returns the user's premium record.
func (s *SubscriptionController) GetStatus(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	sub, err := s.ledger.SubscriptionStatus(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load subscription")
		return
	}
	utils.Success(ctx, gin.H{"subscription": sub})
}

// Purchase buys the premium tier with coins.
func (s *SubscriptionController) Purchase(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	sub, err := s.ledger.PurchasePremium(ctx.Request.Context(), userID)
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.Error(ctx, http.StatusBadRequest, 40050, "insufficient coin balance")
	case errors.Is(err, services.ErrAlreadyPremium):
		utils.Error(ctx, http.StatusBadRequest, 40051, "already premium")
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to purchase premium")
	default:
		utils.Success(ctx, gin.H{"subscription": sub})
	}
}
