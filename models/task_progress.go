package models

import "time"

// TaskProgress tracks one user's progress on one task for one calendar day.
// ResetDate is the day key ("2006-01-02"); a new day simply has no row until
// the first progress event, which is the only reset mechanism. The state of
// a row only ever moves forward: in-progress -> completed -> claimed.
type TaskProgress struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index:idx_progress_user_task_day,unique;not null" json:"user_id"`
	TaskID       uint      `gorm:"index:idx_progress_user_task_day,unique;not null" json:"task_id"`
	ResetDate    string    `gorm:"index:idx_progress_user_task_day,unique;size:10;not null" json:"reset_date"`
	CurrentCount int       `gorm:"not null;default:0" json:"current_count"`
	Completed    bool      `gorm:"not null;default:false" json:"completed"`
	Claimed      bool      `gorm:"not null;default:false" json:"claimed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
