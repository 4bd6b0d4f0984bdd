package services

import (
	"context"
	"errors"
	"testing"

	"github.com/fablenest/rewards/models"
)

func TestPurchasePremiumRejectsInsufficientBalance(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()

	// Seed balance (100) is below the premium cost (500).
	if _, err := led.PurchasePremium(ctx, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("purchase error = %v, want ErrInsufficientBalance", err)
	}

	if acct := mustAccount(t, db, 1); acct.Balance != 100 {
		t.Errorf("balance = %d, want unchanged 100", acct.Balance)
	}
	if n := txCount(t, db, 1, models.TxTypePremiumPurchase); n != 0 {
		t.Errorf("purchase transactions = %d, want 0", n)
	}
	sub, err := led.SubscriptionStatus(ctx, 1)
	if err != nil {
		t.Fatalf("SubscriptionStatus: %v", err)
	}
	if sub.IsPremium {
		t.Error("premium flag set despite rejected purchase")
	}
}

func TestPurchasePremiumDeductsAndFlips(t *testing.T) {
	led, db, notifier := newTestLedger(t)
	ctx := context.Background()

	if err := led.AddCoins(ctx, 1, 400, models.TxTypeAdjustment, "top up"); err != nil {
		t.Fatalf("AddCoins: %v", err)
	}

	sub, err := led.PurchasePremium(ctx, 1)
	if err != nil {
		t.Fatalf("PurchasePremium: %v", err)
	}
	if !sub.IsPremium || sub.PurchasedAt == nil {
		t.Errorf("subscription = %+v, want premium with purchase time", sub)
	}

	acct := mustAccount(t, db, 1)
	if acct.Balance != 0 {
		t.Errorf("balance = %d, want 0", acct.Balance)
	}
	// Spending is not earning.
	if acct.TotalEarned != 400 {
		t.Errorf("total_earned = %d, want 400", acct.TotalEarned)
	}
	if n := txCount(t, db, 1, models.TxTypePremiumPurchase); n != 1 {
		t.Errorf("purchase transactions = %d, want 1", n)
	}

	var entry models.CoinTransaction
	if err := db.Where("user_id = ? AND type = ?", 1, models.TxTypePremiumPurchase).First(&entry).Error; err != nil {
		t.Fatalf("load purchase entry: %v", err)
	}
	if entry.Amount != -500 {
		t.Errorf("purchase amount = %d, want -500", entry.Amount)
	}
	if notifier.count() == 0 {
		t.Error("no toast emitted for the purchase")
	}
}

func TestPurchasePremiumOnlyOnce(t *testing.T) {
	led, db, _ := newTestLedger(t)
	ctx := context.Background()

	if err := led.AddCoins(ctx, 1, 1000, models.TxTypeAdjustment, "top up"); err != nil {
		t.Fatalf("AddCoins: %v", err)
	}
	if _, err := led.PurchasePremium(ctx, 1); err != nil {
		t.Fatalf("first purchase: %v", err)
	}

	if _, err := led.PurchasePremium(ctx, 1); !errors.Is(err, ErrAlreadyPremium) {
		t.Fatalf("second purchase error = %v, want ErrAlreadyPremium", err)
	}
	if acct := mustAccount(t, db, 1); acct.Balance != 600 {
		t.Errorf("balance = %d, want 600 (single deduction)", acct.Balance)
	}
}

func TestSubscriptionStatusDefaultsToFree(t *testing.T) {
	led, _, _ := newTestLedger(t)

	sub, err := led.SubscriptionStatus(context.Background(), 42)
	if err != nil {
		t.Fatalf("SubscriptionStatus: %v", err)
	}
	if sub.IsPremium || sub.ID != 0 {
		t.Errorf("unknown user subscription = %+v, want zero-value free tier", sub)
	}
}
