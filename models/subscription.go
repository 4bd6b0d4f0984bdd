package models

import "time"

// Subscription marks a user's premium tier, bought once with coins. The
// ledger writes it on purchase; the platform reads it for feature gating.
type Subscription struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	IsPremium   bool       `gorm:"not null;default:false" json:"is_premium"`
	PurchasedAt *time.Time `json:"purchased_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
