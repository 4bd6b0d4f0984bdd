package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fablenest/rewards/middleware"
	"github.com/fablenest/rewards/services"
	"github.com/fablenest/rewards/utils"
)

// WalletController serves balance and transaction history views.
type WalletController struct {
	ledger *services.Ledger
}

// NewWalletController creates a new controller instance.
func NewWalletController(ledger *services.Ledger) *WalletController {
	return &WalletController{ledger: ledger}
}

// GetWallet returns the user's coin account.
func (w *WalletController) GetWallet(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	acct, err := w.ledger.AccountStatus(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load account")
		return
	}
	utils.Success(ctx, gin.H{"account": acct})
}

// ListTransactions returns the user's ledger entries, newest first.
func (w *WalletController) ListTransactions(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	items, total, err := w.ledger.Transactions(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load transactions")
		return
	}
	utils.Paginated(ctx, items, total, page, pageSize)
}

// parsePagination normalizes page/page_size query values.
func parsePagination(pageStr, sizeStr string) (int, int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(sizeStr)
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
