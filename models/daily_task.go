package models

import "time"

// Task type tags raised by the platform's pages. Several task definitions
// may share one tag; all of them advance together on a matching event.
const (
	TaskTypeSendMessage     = "send_message"
	TaskTypeNewConversation = "new_conversation"
	TaskTypeCreateCharacter = "create_character"
	TaskTypeDailyLogin      = "daily_login"
)

// DailyTask is a task template shared across all users. The ledger only
// reads these rows; operators manage them out of band.
type DailyTask struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:128;not null" json:"name"`
	Description   string    `gorm:"size:255" json:"description"`
	TaskType      string    `gorm:"size:32;index;not null" json:"task_type"`
	RequiredCount int       `gorm:"not null;default:1" json:"required_count"`
	RewardCoins   int       `gorm:"not null" json:"reward_coins"`
	IsActive      bool      `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
