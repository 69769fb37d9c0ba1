package middleware

import (
	"context"
	"log"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okhunjon/sportpay-bot/internal/contextkeys"
	"github.com/okhunjon/sportpay-bot/internal/messages"
	"github.com/okhunjon/sportpay-bot/types"
)

type Middlewares struct {
	users types.UserStore
}

func NewUserResolver(users types.UserStore) *Middlewares {
	return &Middlewares{users: users}
}

// ResolveUser upserts the sender into the user store and puts the row on
// the context, so handlers never deal with raw Telegram ids.
func (m *Middlewares) ResolveUser(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var (
			telegramID int64
			chatID     int64
			username   string
		)

		switch {
		case update.Message != nil && update.Message.From != nil:
			telegramID = update.Message.From.ID
			chatID = update.Message.Chat.ID
			username = update.Message.From.Username
		case update.CallbackQuery != nil:
			telegramID = update.CallbackQuery.From.ID
			username = update.CallbackQuery.From.Username
			chatID = getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
			if chatID == 0 {
				chatID = telegramID
			}
		default:
			return
		}

		if telegramID == 0 {
			return
		}

		user, err := m.users.UpsertUser(telegramID, username)
		if err != nil {
			log.Printf("middleware: upsert user %d: %v", telegramID, err)
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    chatID,
				Text:      messages.ErrorDefault(),
				ParseMode: messages.ParseModeHTML,
			})
			return
		}

		ctx = contextkeys.WithUser(ctx, user)
		if update.CallbackQuery != nil {
			ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
		}
		next(ctx, b, update)
	}
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}
