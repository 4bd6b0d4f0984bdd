package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fablenest/rewards/utils"
)

// Notifier delivers fire-and-forget reward toasts to a user. Delivery
// failures never feed back into ledger logic.
type Notifier interface {
	Notify(userID uint, title, description string)
}

// RedisNotifier publishes toasts on a per-user redis channel; the platform's
// realtime gateway fans them out to connected clients.
type RedisNotifier struct{}

type toastPayload struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SentAt      time.Time `json:"sent_at"`
}

// NewRedisNotifier creates the default notifier backed by the shared redis client.
func NewRedisNotifier() *RedisNotifier {
	return &RedisNotifier{}
}

// Notify publishes the toast payload, best-effort.
func (n *RedisNotifier) Notify(userID uint, title, description string) {
	b, err := json.Marshal(toastPayload{Title: title, Description: description, SentAt: time.Now()})
	if err != nil {
		return
	}

	rc := utils.GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	channel := fmt.Sprintf("rewards:notify:%d", userID)
	if err := rc.Publish(ctx, channel, b).Err(); err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Debugf("toast publish failed user=%d err=%v", userID, err)
		}
	}
}

// NopNotifier discards all toasts.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(uint, string, string) {}
