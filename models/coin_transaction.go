package models

import "time"

// Coin transaction type tags.
const (
	TxTypeDailyTask       = "daily_task"
	TxTypeWeeklyBonus     = "weekly_bonus"
	TxTypePremiumPurchase = "premium_purchase"
	TxTypeAdjustment      = "adjustment"
)

// CoinTransaction is an append-only ledger entry. Rows are never updated or
// deleted; negative amounts record spending.
type CoinTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Amount      int       `gorm:"not null" json:"amount"`
	Type        string    `gorm:"size:32;index;not null" json:"type"`
	Description string    `gorm:"size:255" json:"description"`
	Reference   string    `gorm:"size:36;uniqueIndex" json:"reference"`
	CreatedAt   time.Time `json:"created_at"`
}
