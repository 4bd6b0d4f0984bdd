package services

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fablenest/rewards/utils"
)

// Alerter forwards swallowed ledger errors to an operator channel. The
// rewards feature must never break the user flow that triggered it, so
// persistence failures are logged and alerted instead of surfaced.
type Alerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewAlerter connects the Telegram bot when a token is configured. With an
// empty token alerts still go to the structured log.
func NewAlerter(token string, chatID int64) *Alerter {
	a := &Alerter{chatID: chatID}
	if token == "" || chatID == 0 {
		return a
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("telegram alerter disabled: %v", err)
		}
		return a
	}
	a.bot = bot
	return a
}

// Alert records a swallowed error for operators.
func (a *Alerter) Alert(op string, userID uint, err error) {
	if utils.Sugar != nil {
		utils.Sugar.Errorw("ledger operation failed",
			"op", op,
			"user_id", userID,
			"error", err,
		)
	}
	if a == nil || a.bot == nil {
		return
	}
	text := fmt.Sprintf("rewards: %s failed for user %d: %v", op, userID, err)
	msg := tgbotapi.NewMessage(a.chatID, text)
	go func() {
		if _, sendErr := a.bot.Send(msg); sendErr != nil && utils.Sugar != nil {
			utils.Sugar.Warnf("telegram alert send failed: %v", sendErr)
		}
	}()
}
