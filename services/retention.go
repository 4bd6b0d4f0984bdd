package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/fablenest/rewards/models"
	"github.com/fablenest/rewards/utils"
)

// RetentionSweeper prunes old TaskProgress rows on a nightly schedule.
// Daily resets never depend on it: a new day simply has no row until first
// progress. This is storage housekeeping only, so streaks and balances are
// untouched and the transaction log is never pruned.
type RetentionSweeper struct {
	db            *gorm.DB
	retentionDays int
	cron          *cron.Cron
}

// NewRetentionSweeper creates the sweeper with the configured window.
func NewRetentionSweeper(db *gorm.DB, retentionDays int) *RetentionSweeper {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &RetentionSweeper{
		db:            db,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithLocation(time.Local)),
	}
}

// Start schedules the nightly sweep at 03:10 local time.
func (s *RetentionSweeper) Start() error {
	if _, err := s.cron.AddFunc("10 3 * * *", s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep deletes progress rows older than the retention window.
func (s *RetentionSweeper) Sweep() {
	cutoff := time.Now().In(time.Local).AddDate(0, 0, -s.retentionDays).Format(dayFormat)
	res := s.db.Where("reset_date < ?", cutoff).Delete(&models.TaskProgress{})
	if res.Error != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorf("task progress sweep failed: %v", res.Error)
		}
		return
	}
	if res.RowsAffected > 0 && utils.Sugar != nil {
		utils.Sugar.Infof("task progress sweep removed %d rows before %s", res.RowsAffected, cutoff)
	}
}
