package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okhunjon/sportpay-bot/internal/billing"
	"github.com/okhunjon/sportpay-bot/internal/config"
	"github.com/okhunjon/sportpay-bot/internal/contextkeys"
	"github.com/okhunjon/sportpay-bot/internal/messages"
	"github.com/okhunjon/sportpay-bot/internal/providers"
	"github.com/okhunjon/sportpay-bot/store"
	"github.com/okhunjon/sportpay-bot/types"
)

type Handlers struct {
	cfg    *config.Config
	users  types.UserStore
	plans  types.PlanStore
	state  *store.RedisStateStore
	engine *billing.Engine
	vault  *billing.Vault
	cards  types.CardStore

	click  *providers.ClickClient
	payme  *providers.PaymeClient
	uzcard *providers.UzcardClient
}

func NewHandlers(cfg *config.Config, users types.UserStore, plans types.PlanStore, state *store.RedisStateStore, engine *billing.Engine, vault *billing.Vault, cards types.CardStore, click *providers.ClickClient, payme *providers.PaymeClient, uzcard *providers.UzcardClient) *Handlers {
	return &Handlers{
		cfg:    cfg,
		users:  users,
		plans:  plans,
		state:  state,
		engine: engine,
		vault:  vault,
		cards:  cards,
		click:  click,
		payme:  payme,
		uzcard: uzcard,
	}
}

func (h *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := contextkeys.GetUser(ctx)
	if !ok {
		log.Println("handlers: user missing from context")
		return
	}

	switch {
	case update.CallbackQuery != nil:
		h.HandleCallback(ctx, b, update, user)
	case update.Message != nil && strings.HasPrefix(strings.TrimSpace(update.Message.Text), "/"):
		h.HandleCommand(ctx, b, update, user)
	case update.Message != nil:
		h.HandleText(ctx, b, update, user)
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, b *bot.Bot, update *models.Update, user *types.User) {
	chatID := update.Message.Chat.ID
	cmd := strings.Fields(strings.TrimSpace(update.Message.Text))[0]
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		if err := h.state.ClearChatState(user.TelegramID); err != nil {
			log.Printf("handlers: clear chat state for %d: %v", user.TelegramID, err)
		}
		h.sendWelcome(ctx, b, chatID)
	case "/status":
		h.sendStatusAll(ctx, b, chatID, user)
	case "/card":
		h.sendCardInfo(ctx, b, chatID, user)
	default:
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.ErrorUnknownCommand(),
			ParseMode: messages.ParseModeHTML,
		})
	}
}

func (h *Handlers) sendWelcome(ctx context.Context, b *bot.Bot, chatID int64) {
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        messages.StartWelcome(),
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: h.serviceKeyboard(),
	})
}

func (h *Handlers) serviceKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: "⚽️ Futbol Premium", CallbackData: "svc_football"}},
		{{Text: "🤼 Kurash Premium", CallbackData: "svc_wrestling"}},
		{{Text: "ℹ️ Obuna holati", CallbackData: "status_all"}},
	}}
}

func (h *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID})
	if err != nil {
		log.Printf("handlers: answer callback: %v", err)
	}
}

func (h *Handlers) sendError(ctx context.Context, b *bot.Bot, chatID int64) {
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.ErrorDefault(),
		ParseMode: messages.ParseModeHTML,
	})
}

func getChatIDFromUpdate(update *models.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil {
		if update.CallbackQuery.Message.Message != nil {
			return update.CallbackQuery.Message.Message.Chat.ID
		}
		if update.CallbackQuery.Message.InaccessibleMessage != nil {
			return update.CallbackQuery.Message.InaccessibleMessage.Chat.ID
		}
	}
	return 0
}
