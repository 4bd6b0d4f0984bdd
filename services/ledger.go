package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fablenest/rewards/models"
	"github.com/fablenest/rewards/utils"
)

// Sentinel errors for the manual claim and purchase paths. Callers decide
// whether to surface them; inside the ledger they are ordinary outcomes.
var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskNotCompleted     = errors.New("task not completed")
	ErrRewardAlreadyClaimed = errors.New("reward already claimed")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrAlreadyPremium       = errors.New("already premium")
)

const (
	dayFormat           = "2006-01-02"
	activeTasksCacheKey = "cache:tasks:active"
	taskCacheTTL        = 5 * time.Minute
)

// Config carries the reward economy constants.
type Config struct {
	StartingBalance  int
	WeeklyBonusCoins int
	PremiumCostCoins int
}

// Ledger mediates every coin-earning event: balances, the transaction log,
// per-day task progress, streaks and the weekly bonus, and the premium
// purchase. All mutations run in DB transactions with server-side atomic
// increments, so concurrent events for the same user cannot lose updates.
type Ledger struct {
	db       *gorm.DB
	cfg      Config
	notifier Notifier
	alerter  *Alerter
	useCache bool
	now      func() time.Time
}

// NewLedger wires the ledger over the given database.
func NewLedger(db *gorm.DB, cfg Config, notifier Notifier, alerter *Alerter) *Ledger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Ledger{
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		alerter:  alerter,
		now:      time.Now,
	}
}

// WithTaskCache enables the redis-backed cache of active task definitions.
func (l *Ledger) WithTaskCache() *Ledger {
	l.useCache = true
	return l
}

// TaskStatus pairs a task definition with the user's progress for today.
// Progress is zero-valued when no row exists yet (the implicit daily reset).
type TaskStatus struct {
	Task     models.DailyTask    `json:"task"`
	Progress models.TaskProgress `json:"progress"`
}

// OverviewData is the state snapshot backing the rewards page.
type OverviewData struct {
	Account models.CoinAccount `json:"account"`
	Streak  models.Streak      `json:"streak"`
	Tasks   []TaskStatus       `json:"tasks"`
}

// Overview fetches (lazily creating) the user's account and streak plus
// today's task board. Each section degrades to its zero value on read
// errors; the rewards page is best-effort and must never fail the caller.
func (l *Ledger) Overview(ctx context.Context, userID uint) OverviewData {
	var out OverviewData
	today := l.dayKey(l.now())

	if err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := l.fetchOrCreateAccount(tx, userID)
		if err != nil {
			return err
		}
		out.Account = acct
		return nil
	}); err != nil {
		l.report("load account", userID, err)
	}

	if err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		streak, err := l.fetchOrCreateStreak(tx, userID, false)
		if err != nil {
			return err
		}
		out.Streak = streak
		return nil
	}); err != nil {
		l.report("load streak", userID, err)
	}

	tasks, err := l.activeTasks(ctx)
	if err != nil {
		l.report("load tasks", userID, err)
		return out
	}

	var rows []models.TaskProgress
	if err := l.db.WithContext(ctx).
		Where("user_id = ? AND reset_date = ?", userID, today).
		Find(&rows).Error; err != nil {
		l.report("load task progress", userID, err)
		rows = nil
	}
	byTask := make(map[uint]models.TaskProgress, len(rows))
	for _, row := range rows {
		byTask[row.TaskID] = row
	}

	out.Tasks = make([]TaskStatus, 0, len(tasks))
	for _, task := range tasks {
		prog, ok := byTask[task.ID]
		if !ok {
			prog = models.TaskProgress{UserID: userID, TaskID: task.ID, ResetDate: today}
		}
		out.Tasks = append(out.Tasks, TaskStatus{Task: task, Progress: prog})
	}
	return out
}

// AddCoins applies a signed delta to the user's balance and appends the
// matching ledger entry in one transaction. TotalEarned only tracks
// positive deltas.
func (l *Ledger) AddCoins(ctx context.Context, userID uint, amount int, txType, description string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.addCoinsTx(tx, userID, amount, txType, description)
	})
}

func (l *Ledger) addCoinsTx(tx *gorm.DB, userID uint, amount int, txType, description string) error {
	acct, err := l.fetchOrCreateAccount(tx, userID)
	if err != nil {
		return err
	}

	// Server-side increment: concurrent deltas accumulate instead of
	// overwriting each other.
	updates := map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", amount),
		"updated_at": l.now(),
	}
	if amount > 0 {
		updates["total_earned"] = gorm.Expr("total_earned + ?", amount)
	}
	if err := tx.Model(&models.CoinAccount{}).Where("id = ?", acct.ID).Updates(updates).Error; err != nil {
		return err
	}

	entry := models.CoinTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		Reference:   uuid.NewString(),
	}
	return tx.Create(&entry).Error
}

// RecordEvent advances every active task matching taskType by increment.
// It is the hook the platform's pages call as a side effect of their own
// primary action (a sent message, a created character, a login); it never
// fails that action. Errors are logged and alerted, not returned.
//
// A task whose reward was already claimed today is frozen until the next
// day. When an increment pushes a task over its required count, the reward
// is claimed automatically in the same transaction and the streak is
// re-evaluated afterwards.
func (l *Ledger) RecordEvent(ctx context.Context, userID uint, taskType string, increment int) {
	if increment <= 0 {
		increment = 1
	}

	tasks, err := l.activeTasks(ctx)
	if err != nil {
		l.report("load tasks", userID, err)
		return
	}

	matched := tasks[:0:0]
	for _, task := range tasks {
		if task.TaskType == taskType {
			matched = append(matched, task)
		}
	}
	if len(matched) == 0 {
		if utils.Sugar != nil {
			utils.Sugar.Debugf("no active tasks for type %q", taskType)
		}
		return
	}

	today := l.dayKey(l.now())
	completedAny := false
	for _, task := range matched {
		claimedNow, err := l.applyProgress(ctx, userID, task, increment, today)
		if err != nil {
			l.report(fmt.Sprintf("progress on task %d", task.ID), userID, err)
			continue
		}
		if claimedNow {
			completedAny = true
			l.notifier.Notify(userID, "Daily task complete!",
				fmt.Sprintf("%s: +%d coins", task.Name, task.RewardCoins))
		}
	}

	if completedAny {
		if err := l.evaluateStreak(ctx, userID); err != nil {
			l.report("update streak", userID, err)
		}
	}
}

// applyProgress adds increment to the user's row for (task, day), creating
// it on first touch. Returns whether this call auto-claimed the reward.
func (l *Ledger) applyProgress(ctx context.Context, userID uint, task models.DailyTask, increment int, day string) (bool, error) {
	claimedNow := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prog models.TaskProgress
		err := withRowLock(tx).
			Where("user_id = ? AND task_id = ? AND reset_date = ?", userID, task.ID, day).
			First(&prog).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			prog = models.TaskProgress{UserID: userID, TaskID: task.ID, ResetDate: day}
			if err := tx.Create(&prog).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if prog.Claimed {
			// Frozen for the rest of the day.
			return nil
		}

		prog.CurrentCount += increment
		wasCompleted := prog.Completed
		prog.Completed = prog.CurrentCount >= task.RequiredCount

		if !wasCompleted && prog.Completed {
			prog.Claimed = true
			if err := l.addCoinsTx(tx, userID, task.RewardCoins, models.TxTypeDailyTask, "Daily task: "+task.Name); err != nil {
				return err
			}
			claimedNow = true
		}
		return tx.Save(&prog).Error
	})
	if err != nil {
		return false, err
	}
	return claimedNow, nil
}

// ClaimReward is the manual claim path for clients that render a claim
// button instead of relying on auto-claim. Requires the task to be
// completed and unclaimed today; returns the awarded amount.
func (l *Ledger) ClaimReward(ctx context.Context, userID, taskID uint) (int, error) {
	today := l.dayKey(l.now())
	var reward int
	var taskName string

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.DailyTask
		if err := tx.First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		if !task.IsActive {
			return ErrTaskNotFound
		}

		var prog models.TaskProgress
		err := withRowLock(tx).
			Where("user_id = ? AND task_id = ? AND reset_date = ?", userID, taskID, today).
			First(&prog).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotCompleted
		}
		if err != nil {
			return err
		}
		if prog.Claimed {
			return ErrRewardAlreadyClaimed
		}
		if !prog.Completed {
			return ErrTaskNotCompleted
		}

		prog.Claimed = true
		if err := tx.Save(&prog).Error; err != nil {
			return err
		}
		reward = task.RewardCoins
		taskName = task.Name
		return l.addCoinsTx(tx, userID, task.RewardCoins, models.TxTypeDailyTask, "Daily task: "+task.Name)
	})
	if err != nil {
		return 0, err
	}

	l.notifier.Notify(userID, "Reward claimed!", fmt.Sprintf("%s: +%d coins", taskName, reward))
	if err := l.evaluateStreak(ctx, userID); err != nil {
		l.report("update streak", userID, err)
	}
	return reward, nil
}

// evaluateStreak advances the consecutive-day streak once all active tasks
// for today are completed and claimed. Re-running it on the same day is a
// no-op, which also makes the weekly bonus single-shot per milestone.
func (l *Ledger) evaluateStreak(ctx context.Context, userID uint) error {
	now := l.now()
	today := l.dayKey(now)
	yesterday := l.dayKey(now.AddDate(0, 0, -1))

	var advanced, bonusAwarded bool
	var newStreak int

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []models.DailyTask
		if err := tx.Where("is_active = ?", true).Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		taskIDs := make([]uint, 0, len(tasks))
		for _, t := range tasks {
			taskIDs = append(taskIDs, t.ID)
		}

		var finished int64
		if err := tx.Model(&models.TaskProgress{}).
			Where("user_id = ? AND reset_date = ? AND completed = ? AND claimed = ?", userID, today, true, true).
			Where("task_id IN ?", taskIDs).
			Count(&finished).Error; err != nil {
			return err
		}
		if finished < int64(len(tasks)) {
			return nil
		}

		streak, err := l.fetchOrCreateStreak(tx, userID, true)
		if err != nil {
			return err
		}
		if streak.LastCompletedDate != nil && *streak.LastCompletedDate == today {
			return nil
		}

		newStreak = 1
		if streak.LastCompletedDate != nil && *streak.LastCompletedDate == yesterday {
			newStreak = streak.CurrentStreak + 1
		}

		streak.CurrentStreak = newStreak
		if newStreak > streak.LongestStreak {
			streak.LongestStreak = newStreak
		}
		streak.LastCompletedDate = &today
		advanced = true

		if newStreak%7 == 0 {
			// The 7-day block this milestone closes started six days ago.
			// A bonus stamped before that belongs to an earlier block, so
			// the user is eligible again. Day keys compare lexicographically.
			blockStart := l.dayKey(now.AddDate(0, 0, -6))
			if streak.WeeklyBonusClaimedDate == nil || *streak.WeeklyBonusClaimedDate < blockStart {
				streak.WeeklyBonusClaimedDate = &today
				bonusAwarded = true
			}
		}

		if err := tx.Save(&streak).Error; err != nil {
			return err
		}
		if bonusAwarded {
			return l.addCoinsTx(tx, userID, l.cfg.WeeklyBonusCoins, models.TxTypeWeeklyBonus,
				fmt.Sprintf("%d-day streak bonus", newStreak))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if advanced {
		l.notifier.Notify(userID, "Streak extended!", fmt.Sprintf("You are on a %d-day streak", newStreak))
	}
	if bonusAwarded {
		l.notifier.Notify(userID, "Weekly bonus!",
			fmt.Sprintf("+%d coins for your %d-day streak", l.cfg.WeeklyBonusCoins, newStreak))
	}
	return nil
}

// PurchasePremium deducts the premium cost from the balance and flips the
// subscription flag, both inside one transaction.
func (l *Ledger) PurchasePremium(ctx context.Context, userID uint) (models.Subscription, error) {
	var sub models.Subscription
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).First(&sub).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			sub = models.Subscription{UserID: userID}
		}
		if sub.IsPremium {
			return ErrAlreadyPremium
		}

		acct, err := l.fetchOrCreateAccount(tx, userID)
		if err != nil {
			return err
		}
		if err := withRowLock(tx).First(&acct, acct.ID).Error; err != nil {
			return err
		}
		if acct.Balance < l.cfg.PremiumCostCoins {
			return ErrInsufficientBalance
		}

		if err := l.addCoinsTx(tx, userID, -l.cfg.PremiumCostCoins, models.TxTypePremiumPurchase, "Premium membership"); err != nil {
			return err
		}

		now := l.now()
		sub.IsPremium = true
		sub.PurchasedAt = &now
		return tx.Save(&sub).Error
	})
	if err != nil {
		return models.Subscription{}, err
	}

	l.notifier.Notify(userID, "Welcome to Premium!",
		fmt.Sprintf("-%d coins for your membership", l.cfg.PremiumCostCoins))
	return sub, nil
}

// AccountStatus returns the user's coin account, creating it with the seed
// balance on first read.
func (l *Ledger) AccountStatus(ctx context.Context, userID uint) (models.CoinAccount, error) {
	var acct models.CoinAccount
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		acct, err = l.fetchOrCreateAccount(tx, userID)
		return err
	})
	return acct, err
}

// StreakStatus returns the user's streak record, creating it on first read.
func (l *Ledger) StreakStatus(ctx context.Context, userID uint) (models.Streak, error) {
	var streak models.Streak
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		streak, err = l.fetchOrCreateStreak(tx, userID, false)
		return err
	})
	return streak, err
}

// SubscriptionStatus returns the user's premium record, zero-valued when
// the user never purchased.
func (l *Ledger) SubscriptionStatus(ctx context.Context, userID uint) (models.Subscription, error) {
	var sub models.Subscription
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Subscription{UserID: userID}, nil
	}
	return sub, err
}

// Transactions returns a page of the user's ledger, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uint, page, pageSize int) ([]models.CoinTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := l.db.WithContext(ctx).Model(&models.CoinTransaction{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.CoinTransaction
	err := q.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error
	return items, total, err
}

func (l *Ledger) fetchOrCreateAccount(tx *gorm.DB, userID uint) (models.CoinAccount, error) {
	var acct models.CoinAccount
	err := tx.Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = models.CoinAccount{UserID: userID, Balance: l.cfg.StartingBalance}
		err = tx.Create(&acct).Error
	}
	return acct, err
}

func (l *Ledger) fetchOrCreateStreak(tx *gorm.DB, userID uint, lock bool) (models.Streak, error) {
	q := tx
	if lock {
		q = withRowLock(tx)
	}
	var streak models.Streak
	err := q.Where("user_id = ?", userID).First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		streak = models.Streak{UserID: userID}
		err = tx.Create(&streak).Error
	}
	return streak, err
}

func (l *Ledger) activeTasks(ctx context.Context) ([]models.DailyTask, error) {
	if l.useCache {
		var cached []models.DailyTask
		if utils.CacheGetJSON(activeTasksCacheKey, &cached) {
			return cached, nil
		}
	}
	var tasks []models.DailyTask
	if err := l.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&tasks).Error; err != nil {
		return nil, err
	}
	if l.useCache {
		utils.CacheSetJSON(activeTasksCacheKey, tasks, taskCacheTTL)
	}
	return tasks, nil
}

func (l *Ledger) dayKey(t time.Time) string {
	return t.In(time.Local).Format(dayFormat)
}

// report funnels swallowed errors through the structured log and the ops
// alert channel. The triggering user flow never sees them.
func (l *Ledger) report(op string, userID uint, err error) {
	if l.alerter != nil {
		l.alerter.Alert(op, userID, err)
		return
	}
	if utils.Sugar != nil {
		utils.Sugar.Errorw("ledger operation failed", "op", op, "user_id", userID, "error", err)
	}
}

// withRowLock adds SELECT ... FOR UPDATE where the dialect supports it.
// SQLite serializes writers on its own and rejects the clause.
func withRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
