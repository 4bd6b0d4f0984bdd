package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fablenest/rewards/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.CoinAccount{},
		&models.CoinTransaction{},
		&models.DailyTask{},
		&models.TaskProgress{},
		&models.Streak{},
		&models.Subscription{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// recordingNotifier captures toasts for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	toasts []string
}

func (n *recordingNotifier) Notify(userID uint, title, description string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, title+": "+description)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.toasts)
}

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB, *recordingNotifier) {
	t.Helper()
	db := openTestDB(t)
	notifier := &recordingNotifier{}
	led := NewLedger(db, Config{StartingBalance: 100, WeeklyBonusCoins: 100, PremiumCostCoins: 500}, notifier, nil)
	return led, db, notifier
}

func createTask(t *testing.T, db *gorm.DB, name, taskType string, required, reward int) models.DailyTask {
	t.Helper()
	task := models.DailyTask{Name: name, TaskType: taskType, RequiredCount: required, RewardCoins: reward, IsActive: true}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func mustAccount(t *testing.T, db *gorm.DB, userID uint) models.CoinAccount {
	t.Helper()
	var acct models.CoinAccount
	if err := db.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	return acct
}

func mustProgress(t *testing.T, db *gorm.DB, userID, taskID uint, day string) models.TaskProgress {
	t.Helper()
	var prog models.TaskProgress
	if err := db.Where("user_id = ? AND task_id = ? AND reset_date = ?", userID, taskID, day).First(&prog).Error; err != nil {
		t.Fatalf("load progress: %v", err)
	}
	return prog
}

func txCount(t *testing.T, db *gorm.DB, userID uint, txType string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.CoinTransaction{}).Where("user_id = ? AND type = ?", userID, txType).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func TestAccountLazilyCreatedWithSeedBalance(t *testing.T) {
	led, _, _ := newTestLedger(t)
	ctx := context.Background()

	acct, err := led.AccountStatus(ctx, 7)
	if err != nil {
		t.Fatalf("AccountStatus: %v", err)
	}
	if acct.Balance != 100 {
		t.Errorf("seed balance = %d, want 100", acct.Balance)
	}
	if acct.TotalEarned != 0 {
		t.Errorf("seed total_earned = %d, want 0", acct.TotalEarned)
	}

	// Second read returns the same row, not a new seed.
	again, err := led.AccountStatus(ctx, 7)
	if err != nil {
		t.Fatalf("AccountStatus: %v", err)
	}
	if again.ID != acct.ID {
		t.Errorf("account recreated: id %d != %d", again.ID, acct.ID)
	}
}

func TestAddCoinsAppendsLedgerEntry(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()

	if err := led.AddCoins(ctx, 1, 25, models.TxTypeAdjustment, "support credit"); err != nil {
		t.Fatalf("AddCoins: %v", err)
	}
	if err := led.AddCoins(ctx, 1, -5, models.TxTypeAdjustment, "correction"); err != nil {
		t.Fatalf("AddCoins: %v", err)
	}

	acct := mustAccount(t, db, 1)
	if acct.Balance != 120 {
		t.Errorf("balance = %d, want 120", acct.Balance)
	}
	// Negative deltas must not count toward lifetime earnings.
	if acct.TotalEarned != 25 {
		t.Errorf("total_earned = %d, want 25", acct.TotalEarned)
	}
	if n := txCount(t, db, 1, models.TxTypeAdjustment); n != 2 {
		t.Errorf("transactions = %d, want 2", n)
	}
}

// Scenario: "send 5 messages" advanced one message at a time. After the
// fifth event the task auto-claims and exactly one reward lands.
func TestRecordEventProgressAndAutoClaim(t *testing.T) {
	led, db, notifier := newTestLedger(t)
	ctx := context.Background()
	task := createTask(t, db, "Chatterbox", models.TaskTypeSendMessage, 5, 10)
	day := led.dayKey(led.now())

	for i := 1; i <= 4; i++ {
		led.RecordEvent(ctx, 1, models.TaskTypeSendMessage, 1)
		prog := mustProgress(t, db, 1, task.ID, day)
		if prog.CurrentCount != i {
			t.Fatalf("after %d events count = %d", i, prog.CurrentCount)
		}
		if prog.Completed || prog.Claimed {
			t.Fatalf("task finished early at %d events", i)
		}
	}

	led.RecordEvent(ctx, 1, models.TaskTypeSendMessage, 1)

	prog := mustProgress(t, db, 1, task.ID, day)
	if prog.CurrentCount != 5 || !prog.Completed || !prog.Claimed {
		t.Fatalf("final progress = %+v, want count 5 completed claimed", prog)
	}
	acct := mustAccount(t, db, 1)
	if acct.Balance != 110 {
		t.Errorf("balance = %d, want 110", acct.Balance)
	}
	if n := txCount(t, db, 1, models.TxTypeDailyTask); n != 1 {
		t.Errorf("daily_task transactions = %d, want exactly 1", n)
	}
	if notifier.count() == 0 {
		t.Error("no toast emitted for the completed task")
	}
}

// Once claimed, further events for the day are ignored: the count freezes
// and no second reward can be minted.
func TestRecordEventAfterClaimIsNoop(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	task := createTask(t, db, "Check-in", models.TaskTypeDailyLogin, 1, 5)
	day := led.dayKey(led.now())

	led.RecordEvent(ctx, 1, models.TaskTypeDailyLogin, 1)
	led.RecordEvent(ctx, 1, models.TaskTypeDailyLogin, 1)
	led.RecordEvent(ctx, 1, models.TaskTypeDailyLogin, 3)

	prog := mustProgress(t, db, 1, task.ID, day)
	if prog.CurrentCount != 1 {
		t.Errorf("count = %d, want frozen at 1", prog.CurrentCount)
	}
	if n := txCount(t, db, 1, models.TxTypeDailyTask); n != 1 {
		t.Errorf("daily_task transactions = %d, want 1", n)
	}
	if acct := mustAccount(t, db, 1); acct.Balance != 105 {
		t.Errorf("balance = %d, want 105", acct.Balance)
	}
}

func TestRecordEventLargeIncrementOvershoot(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	task := createTask(t, db, "Chatterbox", models.TaskTypeSendMessage, 5, 10)
	day := led.dayKey(led.now())

	led.RecordEvent(ctx, 1, models.TaskTypeSendMessage, 2)
	led.RecordEvent(ctx, 1, models.TaskTypeSendMessage, 7)

	prog := mustProgress(t, db, 1, task.ID, day)
	if prog.CurrentCount != 9 {
		t.Errorf("count = %d, want 9", prog.CurrentCount)
	}
	if !prog.Completed || !prog.Claimed {
		t.Errorf("progress = %+v, want completed and claimed", prog)
	}
	// completed tracks count >= required at every observed state
	if prog.Completed != (prog.CurrentCount >= task.RequiredCount) {
		t.Error("completed flag out of sync with counts")
	}
}

// Several task definitions sharing one type tag all advance on a single event.
func TestRecordEventFansOutAcrossSharedType(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	quick := createTask(t, db, "First message", models.TaskTypeSendMessage, 1, 5)
	grind := createTask(t, db, "Marathon", models.TaskTypeSendMessage, 10, 50)
	day := led.dayKey(led.now())

	led.RecordEvent(ctx, 1, models.TaskTypeSendMessage, 1)

	quickProg := mustProgress(t, db, 1, quick.ID, day)
	grindProg := mustProgress(t, db, 1, grind.ID, day)
	if !quickProg.Claimed {
		t.Error("quick task should have auto-claimed")
	}
	if grindProg.CurrentCount != 1 || grindProg.Completed {
		t.Errorf("grind progress = %+v, want count 1 not completed", grindProg)
	}
	if acct := mustAccount(t, db, 1); acct.Balance != 105 {
		t.Errorf("balance = %d, want 105", acct.Balance)
	}
}

func TestRecordEventUnknownTypeDoesNothing(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	createTask(t, db, "Creator", models.TaskTypeCreateCharacter, 1, 25)

	led.RecordEvent(ctx, 1, "no_such_type", 1)

	var rows int64
	if err := db.Model(&models.TaskProgress{}).Count(&rows).Error; err != nil {
		t.Fatalf("count progress: %v", err)
	}
	if rows != 0 {
		t.Errorf("progress rows = %d, want 0", rows)
	}
}

// A fresh calendar day has no progress row, which is the reset: counters
// restart from zero without any cleanup step.
func TestProgressResetsAcrossDayRollover(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	task := createTask(t, db, "Check-in", models.TaskTypeDailyLogin, 1, 5)

	day1 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	led.now = func() time.Time { return day1 }
	led.RecordEvent(ctx, 1, models.TaskTypeDailyLogin, 1)

	day2 := day1.AddDate(0, 0, 1)
	led.now = func() time.Time { return day2 }
	led.RecordEvent(ctx, 1, models.TaskTypeDailyLogin, 1)

	first := mustProgress(t, db, 1, task.ID, led.dayKey(day1))
	second := mustProgress(t, db, 1, task.ID, led.dayKey(day2))
	if !first.Claimed || !second.Claimed {
		t.Errorf("both days should have claimed rows: %+v / %+v", first, second)
	}
	if n := txCount(t, db, 1, models.TxTypeDailyTask); n != 2 {
		t.Errorf("daily_task transactions = %d, want 2", n)
	}
}

func TestClaimRewardManualPath(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	task := createTask(t, db, "Chatterbox", models.TaskTypeSendMessage, 5, 10)
	day := led.dayKey(led.now())

	// A completed-but-unclaimed row, as left behind when the auto-claim
	// write was interrupted.
	row := models.TaskProgress{UserID: 1, TaskID: task.ID, ResetDate: day, CurrentCount: 5, Completed: true}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	reward, err := led.ClaimReward(ctx, 1, task.ID)
	if err != nil {
		t.Fatalf("ClaimReward: %v", err)
	}
	if reward != 10 {
		t.Errorf("reward = %d, want 10", reward)
	}
	if acct := mustAccount(t, db, 1); acct.Balance != 110 {
		t.Errorf("balance = %d, want 110", acct.Balance)
	}

	if _, err := led.ClaimReward(ctx, 1, task.ID); !errors.Is(err, ErrRewardAlreadyClaimed) {
		t.Errorf("second claim error = %v, want ErrRewardAlreadyClaimed", err)
	}
}

// Scenario: claiming an incomplete task changes nothing at all.
func TestClaimRewardRejectsIncompleteTask(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	task := createTask(t, db, "Chatterbox", models.TaskTypeSendMessage, 5, 10)

	led.RecordEvent(ctx, 1, models.TaskTypeSendMessage, 2)

	if _, err := led.ClaimReward(ctx, 1, task.ID); !errors.Is(err, ErrTaskNotCompleted) {
		t.Fatalf("claim error = %v, want ErrTaskNotCompleted", err)
	}
	if acct := mustAccount(t, db, 1); acct.Balance != 100 {
		t.Errorf("balance = %d, want unchanged 100", acct.Balance)
	}
	if n := txCount(t, db, 1, models.TxTypeDailyTask); n != 0 {
		t.Errorf("daily_task transactions = %d, want 0", n)
	}

	prog := mustProgress(t, db, 1, task.ID, led.dayKey(led.now()))
	if prog.Claimed || prog.Completed || prog.CurrentCount != 2 {
		t.Errorf("progress mutated by rejected claim: %+v", prog)
	}
}

func TestClaimRewardUnknownTask(t *testing.T) {
	led, _, _ := newTestLedger(t)

	if _, err := led.ClaimReward(context.Background(), 1, 999); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("claim error = %v, want ErrTaskNotFound", err)
	}
}

func TestOverviewSynthesizesEmptyProgress(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()
	task := createTask(t, db, "Chatterbox", models.TaskTypeSendMessage, 5, 10)
	createTask(t, db, "Dormant", models.TaskTypeNewConversation, 1, 5)

	led.RecordEvent(ctx, 1, models.TaskTypeSendMessage, 2)

	out := led.Overview(ctx, 1)
	if out.Account.Balance != 100 {
		t.Errorf("balance = %d, want 100", out.Account.Balance)
	}
	if len(out.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(out.Tasks))
	}
	for _, ts := range out.Tasks {
		if ts.Task.ID == task.ID {
			if ts.Progress.CurrentCount != 2 {
				t.Errorf("chatterbox count = %d, want 2", ts.Progress.CurrentCount)
			}
		} else if ts.Progress.ID != 0 || ts.Progress.CurrentCount != 0 {
			t.Errorf("untouched task should carry zero-value progress, got %+v", ts.Progress)
		}
	}
}

func TestTransactionsPagination(t *testing.T) {
	led, _, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := led.AddCoins(ctx, 1, 1, models.TxTypeAdjustment, fmt.Sprintf("credit %d", i)); err != nil {
			t.Fatalf("AddCoins: %v", err)
		}
	}

	items, total, err := led.Transactions(ctx, 1, 1, 2)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(items) != 2 {
		t.Errorf("page size = %d, want 2", len(items))
	}
	// Newest first
	if len(items) == 2 && items[0].ID < items[1].ID {
		t.Error("transactions not ordered newest first")
	}

	rest, _, err := led.Transactions(ctx, 3, 1, 2)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("other user's page = %d items, want 0", len(rest))
	}
}
