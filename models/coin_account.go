package models

import "time"

// CoinAccount holds one user's spendable coin balance.
// TotalEarned only ever grows; Balance moves both ways (rewards and purchases).
type CoinAccount struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance     int       `gorm:"not null;default:0" json:"balance"`
	TotalEarned int       `gorm:"not null;default:0" json:"total_earned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
