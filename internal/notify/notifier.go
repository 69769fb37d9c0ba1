// Package notify delivers user-facing messages through the Telegram bot.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/go-telegram/bot"

	"github.com/okhunjon/sportpay-bot/internal/messages"
)

const sendTimeout = 10 * time.Second

// BotNotifier implements types.Notifier over the bot API. Sends are
// fire-and-forget: a delivery failure is logged and never propagated, so
// it can never roll back a completed payment state change.
type BotNotifier struct {
	botClient *bot.Bot
}

func NewBotNotifier(botClient *bot.Bot) *BotNotifier {
	return &BotNotifier{botClient: botClient}
}

func (n *BotNotifier) Send(ctx context.Context, telegramID int64, text string) {
	if telegramID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	_, err := n.botClient.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    telegramID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		log.Printf("notify: send to %d failed: %v", telegramID, err)
	}
}
