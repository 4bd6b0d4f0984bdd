package models

import "time"

// Streak records a user's consecutive-day task completion run. Date fields
// are day keys ("2006-01-02"); nil means never. CurrentStreak restarts at 1
// (never 0) when a completion day follows a gap.
type Streak struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UserID                 uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak          int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak          int       `gorm:"not null;default:0" json:"longest_streak"`
	LastCompletedDate      *string   `gorm:"size:10" json:"last_completed_date"`
	WeeklyBonusClaimedDate *string   `gorm:"size:10" json:"weekly_bonus_claimed_date"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
