package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okhunjon/sportpay-bot/internal/contextkeys"
	"github.com/okhunjon/sportpay-bot/internal/messages"
	"github.com/okhunjon/sportpay-bot/internal/providers"
	"github.com/okhunjon/sportpay-bot/store"
	"github.com/okhunjon/sportpay-bot/types"
)

func (h *Handlers) HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update, user *types.User) {
	h.answerCallback(ctx, b, update.CallbackQuery.ID)

	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = update.CallbackQuery.Data
	}
	data = strings.TrimSpace(data)
	chatID := getChatIDFromUpdate(update)
	if chatID == 0 {
		chatID = user.TelegramID
	}

	switch {
	case data == "status_all":
		h.sendStatusAll(ctx, b, chatID, user)
	case data == "delcard":
		h.removeCard(ctx, b, chatID, user)
	case strings.HasPrefix(data, "svc_"):
		h.sendPlanMenu(ctx, b, chatID, types.ParseServiceKind(strings.TrimPrefix(data, "svc_")))
	case strings.HasPrefix(data, "pay_"):
		h.sendPayLink(ctx, b, chatID, user, data)
	case strings.HasPrefix(data, "card_"):
		h.startCardFlow(ctx, b, chatID, user, data)
	case strings.HasPrefix(data, "renew_"):
		h.renewFromCard(ctx, b, chatID, user, strings.TrimPrefix(data, "renew_"))
	}
}

// sendPlanMenu shows the service's plan with one-time checkout links and
// the card-linking (auto-renew) options.
func (h *Handlers) sendPlanMenu(ctx context.Context, b *bot.Bot, chatID int64, service types.ServiceKind) {
	plans, err := h.plans.ListPlans(service)
	if err != nil || len(plans) == 0 {
		log.Printf("handlers: list plans for %s: %v", service, err)
		h.sendError(ctx, b, chatID)
		return
	}
	plan := plans[0]

	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: "💳 Click orqali to'lash", CallbackData: fmt.Sprintf("pay_click_%d", plan.ID)}},
		{{Text: "🔄 Click karta (avto-obuna)", CallbackData: fmt.Sprintf("card_click_%d", plan.ID)}},
		{{Text: "🔄 Payme karta (avto-obuna)", CallbackData: fmt.Sprintf("card_payme_%d", plan.ID)}},
		{{Text: "🎁 Uzcard (60 kun bonus)", CallbackData: fmt.Sprintf("card_uzcard_%d", plan.ID)}},
	}}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        messages.ChoosePayment(plan.Name, plan.PriceTiyin),
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: keyboard,
	})
}

// sendPayLink answers a one-time payment selection with the redirect
// checkout URL. One-time checkout settles through the Click merchant
// callback only; Payme and Uzcard participate through card-on-file
// auto-subscription.
func (h *Handlers) sendPayLink(ctx context.Context, b *bot.Bot, chatID int64, user *types.User, data string) {
	parts := strings.SplitN(data, "_", 3)
	if len(parts) != 3 || types.Provider(parts[1]) != types.ProviderClick {
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

	link := providers.ClickPayLink(h.cfg.Click, h.cfg.BotURL, plan.ID, user.ID, plan.PriceTiyin)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.ChoosePayment(plan.Name, plan.PriceTiyin),
		ParseMode: messages.ParseModeHTML,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "➡️ To'lovga o'tish", URL: link}},
		}},
	})
}

func (h *Handlers) sendStatusAll(ctx context.Context, b *bot.Bot, chatID int64, user *types.User) {
	for _, service := range []types.ServiceKind{types.ServiceFootball, types.ServiceWrestling} {
		st, err := h.engine.SubscriptionStatus(user.ID, service)
		if err != nil {
			log.Printf("handlers: status for user %d/%s: %v", user.ID, service, err)
			h.sendError(ctx, b, chatID)
			return
		}
		text := messages.StatusInactive(service)
		if st.Active {
			text = messages.StatusActive(service, st.StartDate, st.EndDate)
		}
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: messages.ParseModeHTML,
		}
		if st.Active {
			plans, err := h.plans.ListPlans(service)
			if err == nil && len(plans) > 0 {
				params.ReplyMarkup = &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
					{{Text: "🔄 Obunani uzaytirish", CallbackData: fmt.Sprintf("renew_%d", plans[0].ID)}},
				}}
			}
		}
		b.SendMessage(ctx, params)
	}
}

func (h *Handlers) sendCardInfo(ctx context.Context, b *bot.Bot, chatID int64, user *types.User) {
	card, err := h.cards.FindAny(user.ID)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.NoCard(),
			ParseMode: messages.ParseModeHTML,
		})
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.CardSaved(card.MaskedNumber),
		ParseMode: messages.ParseModeHTML,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "🗑 Kartani o'chirish", CallbackData: "delcard"}},
		}},
	})
}

// renewFromCard runs the interactive renew-with-existing-card flow: one
// charge attempt, a user-facing failure message, manual retry via the
// same button.
func (h *Handlers) renewFromCard(ctx context.Context, b *bot.Bot, chatID int64, user *types.User, planArg string) {
	planID, err := strconv.ParseInt(planArg, 10, 64)
	if err != nil {
		return
	}
	out, err := h.engine.RenewWithStoredCard(ctx, user.ID, planID)
	if err != nil {
		log.Printf("handlers: renew for user %d: %v", user.ID, err)
		h.sendError(ctx, b, chatID)
		return
	}
	if !out.Success {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      messages.ChargeFailed(),
			ParseMode: messages.ParseModeHTML,
		})
	}
	// Success notifications come from the lifecycle engine.
}

func (h *Handlers) removeCard(ctx context.Context, b *bot.Bot, chatID int64, user *types.User) {
	card, err := h.cards.FindAny(user.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("handlers: find card for user %d: %v", user.ID, err)
		}
		h.sendError(ctx, b, chatID)
		return
	}
	if err := h.vault.Remove(ctx, user.ID, card.Provider); err != nil {
		log.Printf("handlers: remove card for user %d: %v", user.ID, err)
		h.sendError(ctx, b, chatID)
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.CardRemoved(),
		ParseMode: messages.ParseModeHTML,
	})
}
