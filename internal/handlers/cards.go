package handlers

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okhunjon/sportpay-bot/internal/messages"
	"github.com/okhunjon/sportpay-bot/store"
	"github.com/okhunjon/sportpay-bot/types"
)

// startCardFlow begins the tokenize-then-verify conversation for an
// auto-renew signup. The in-flight state lives in redis, keyed by chat.
func (h *Handlers) startCardFlow(ctx context.Context, b *bot.Bot, chatID int64, user *types.User, data string) {
	parts := strings.SplitN(data, "_", 3)
	if len(parts) != 3 {
		return
	}
	planID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return
	}
	plan, err := h.plans.GetPlan(planID)
	if err != nil {
		log.Printf("handlers: plan %d: %v", planID, err)
		h.sendError(ctx, b, chatID)
		return
	}

	state := &store.ChatState{
		Stage:    store.StageAwaitCard,
		Service:  plan.Service,
		PlanID:   plan.ID,
		Provider: types.Provider(parts[1]),
	}
	if err := h.state.SetChatState(user.TelegramID, state); err != nil {
		log.Printf("handlers: save chat state for %d: %v", user.TelegramID, err)
		h.sendError(ctx, b, chatID)
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.AskCardNumber(),
		ParseMode: messages.ParseModeHTML,
	})
}

// HandleText advances the card conversation; any other free text gets the
// main menu.
func (h *Handlers) HandleText(ctx context.Context, b *bot.Bot, update *models.Update, user *types.User) {
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	state, err := h.state.GetChatState(user.TelegramID)
	if err != nil || state.Stage == "" {
		h.sendWelcome(ctx, b, chatID)
		return
	}

	switch state.Stage {
	case store.StageAwaitCard:
		h.handleCardNumber(ctx, b, chatID, user, state, text)
	case store.StageAwaitExpire:
		h.handleExpire(ctx, b, chatID, user, state, text)
	case store.StageAwaitOTP:
		h.handleOTP(ctx, b, chatID, user, state, text)
	default:
		h.sendWelcome(ctx, b, chatID)
	}
}

func (h *Handlers) handleCardNumber(ctx context.Context, b *bot.Bot, chatID int64, user *types.User, state *store.ChatState, text string) {
	state.CardNumber = text
	state.Stage = store.StageAwaitExpire
	if err := h.state.SetChatState(user.TelegramID, state); err != nil {
		log.Printf("handlers: save chat state for %d: %v", user.TelegramID, err)
		h.sendError(ctx, b, chatID)
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.AskExpire(),
		ParseMode: messages.ParseModeHTML,
	})
}

// handleExpire has the full card details: tokenize with the chosen
// provider, which triggers the cardholder's SMS.
func (h *Handlers) handleExpire(ctx context.Context, b *bot.Bot, chatID int64, user *types.User, state *store.ChatState, expire string) {
	var err error
	switch state.Provider {
	case types.ProviderClick:
		state.CardToken, _, err = h.click.CreateCardToken(ctx, state.CardNumber, expire)
	case types.ProviderPayme:
		state.CardToken, err = h.payme.CreateCardToken(ctx, state.CardNumber, expire)
		if err == nil {
			_, err = h.payme.RequestVerifyCode(ctx, state.CardToken)
		}
	case types.ProviderUzcard:
		state.CardSession, err = h.uzcard.CreateUserCard(ctx, state.CardNumber, expire)
	default:
		err = store.ErrNotFound
	}
	if err != nil {
		log.Printf("handlers: tokenize via %s for user %d: %v", state.Provider, user.ID, err)
		h.clearState(user.TelegramID)
		h.sendError(ctx, b, chatID)
		return
	}

	// Card PAN is not kept once the provider holds the token.
	state.CardNumber = ""
	state.Stage = store.StageAwaitOTP
	if err := h.state.SetChatState(user.TelegramID, state); err != nil {
		log.Printf("handlers: save chat state for %d: %v", user.TelegramID, err)
		h.sendError(ctx, b, chatID)
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.AskOTP(),
		ParseMode: messages.ParseModeHTML,
	})
}

// handleOTP verifies the code, vaults the card and runs the
// auto-subscription (bonus for first-timers, stored-card charge
// otherwise).
func (h *Handlers) handleOTP(ctx context.Context, b *bot.Bot, chatID int64, user *types.User, state *store.ChatState, text string) {
	code, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.AskOTP(),
			ParseMode: messages.ParseModeHTML,
		})
		return
	}

	token := state.CardToken
	var masked string
	switch state.Provider {
	case types.ProviderClick:
		masked, err = h.click.VerifyCardToken(ctx, token, code)
	case types.ProviderPayme:
		masked, err = h.payme.VerifyCardToken(ctx, token, code)
	case types.ProviderUzcard:
		token, masked, err = h.uzcard.ConfirmUserCard(ctx, state.CardSession, strings.TrimSpace(text))
	}
	if err != nil {
		log.Printf("handlers: verify via %s for user %d: %v", state.Provider, user.ID, err)
		h.clearState(user.TelegramID)
		h.sendError(ctx, b, chatID)
		return
	}

	if _, err := h.vault.Save(user.ID, state.Provider, token, masked); err != nil {
		log.Printf("handlers: vault card for user %d: %v", user.ID, err)
		h.clearState(user.TelegramID)
		h.sendError(ctx, b, chatID)
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.CardSaved(masked),
		ParseMode: messages.ParseModeHTML,
	})

	plan, err := h.plans.GetPlan(state.PlanID)
	if err != nil {
		log.Printf("handlers: plan %d: %v", state.PlanID, err)
		h.clearState(user.TelegramID)
		h.sendError(ctx, b, chatID)
		return
	}
	if err := h.engine.AutoSubscribe(ctx, user, plan, state.Provider); err != nil {
		log.Printf("handlers: auto subscribe for user %d: %v", user.ID, err)
		h.sendError(ctx, b, chatID)
	}
	h.clearState(user.TelegramID)
}

func (h *Handlers) clearState(telegramID int64) {
	if err := h.state.ClearChatState(telegramID); err != nil {
		log.Printf("handlers: clear chat state for %d: %v", telegramID, err)
	}
}
