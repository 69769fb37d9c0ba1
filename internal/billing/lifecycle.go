package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/okhunjon/sportpay-bot/internal/messages"
	"github.com/okhunjon/sportpay-bot/store"
	"github.com/okhunjon/sportpay-bot/types"
)

// CardRemovalOutcome describes what happens to a bonus-window subscription
// when its backing card is deleted. The zero value means the window is
// left alone (only future auto-charges stop).
type CardRemovalOutcome struct {
	Terminate bool
	RollBack  bool
	NewEnd    time.Time
}

// ComputeCardRemoval: the bonus was conditional on keeping the card on
// file, but only for as long as the bonus window itself runs. Once
// bonusGrantedAt + the provider's bonus days has passed, every remaining
// day was paid for and the window stays untouched. Inside the window: no
// paid history before the bonus terminates outright; paid history rolls
// the end back by the bonus-day count, and a rolled-back end already in
// the past also terminates.
func ComputeCardRemoval(now, end time.Time, hadPaidBefore bool, bonusGrantedAt *time.Time, provider types.Provider) CardRemovalOutcome {
	if bonusGrantedAt == nil || !bonusGrantedAt.AddDate(0, 0, provider.BonusDays()).After(now) {
		return CardRemovalOutcome{}
	}
	if !hadPaidBefore {
		return CardRemovalOutcome{Terminate: true, NewEnd: now}
	}
	rolled := end.AddDate(0, 0, -provider.BonusDays())
	if !rolled.After(now) {
		return CardRemovalOutcome{Terminate: true, NewEnd: now}
	}
	return CardRemovalOutcome{RollBack: true, NewEnd: rolled}
}

// RenewOutcome is returned to interactive renew flows.
type RenewOutcome struct {
	Success bool
	NewEnd  time.Time
}

// StatusResult is the status-display projection of a subscription.
type StatusResult struct {
	Active    bool
	StartDate time.Time
	EndDate   time.Time
}

// Engine is the subscription lifecycle state machine. All date mutations
// for a (user, service) pair go through here; ledger writes happen before
// window extensions so a crash between the two is recoverable by replay.
type Engine struct {
	users  types.UserStore
	plans  types.PlanStore
	subs   types.SubscriptionStore
	cards  types.CardStore
	ledger types.LedgerStore
	charge map[types.Provider]types.ChargeClient
	notify types.Notifier

	now func() time.Time
}

func NewEngine(users types.UserStore, plans types.PlanStore, subs types.SubscriptionStore, cards types.CardStore, ledger types.LedgerStore, charge map[types.Provider]types.ChargeClient, notify types.Notifier) *Engine {
	return &Engine{
		users:  users,
		plans:  plans,
		subs:   subs,
		cards:  cards,
		ledger: ledger,
		charge: charge,
		notify: notify,
		now:    time.Now,
	}
}

// activeSubscription returns the current active window or nil.
func (e *Engine) activeSubscription(userID int64, service types.ServiceKind) (*types.Subscription, error) {
	sub, err := e.subs.GetActive(userID, service)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

// extendWindow runs the store's atomic extension for a plan window. The
// read-modify-write lives inside the store transaction so a callback and
// the charge sweep cannot interleave on the same (user, service) pair.
func (e *Engine) extendWindow(user *types.User, plan *types.Plan, provider types.Provider, days int, subType types.SubscriptionType, autoRenew, grantedBonus bool) (*types.Subscription, error) {
	return e.subs.ActivateOrExtend(types.Subscription{
		UserID:           user.ID,
		PlanID:           plan.ID,
		Service:          plan.Service,
		SubscriptionType: subType,
		AutoRenew:        autoRenew,
		PaidBy:           provider,
		SubscribedBy:     provider,
		HasReceivedBonus: grantedBonus,
	}, days, e.now())
}

// ApplyPurchase records a confirmed one-time payment: extends (or opens)
// the paid window, never the bonus one.
func (e *Engine) ApplyPurchase(ctx context.Context, user *types.User, plan *types.Plan, provider types.Provider) error {
	sub, err := e.extendWindow(user, plan, provider, plan.DurationDays, types.SubscriptionTypeOnetime, false, false)
	if err != nil {
		return fmt.Errorf("extend window: %w", err)
	}
	if err := e.users.MarkHadPaidSubscription(user.ID); err != nil {
		log.Printf("lifecycle: mark paid history for user %d: %v", user.ID, err)
	}
	if err := e.users.SetActive(user.ID, true, false); err != nil {
		log.Printf("lifecycle: activate user %d: %v", user.ID, err)
	}

	e.notify.Send(ctx, user.TelegramID, messages.PaymentSuccess(plan.Service, sub.EndDate))
	return nil
}

// AutoSubscribe runs after a card is tokenized and verified. First-time
// auto subscribers get the provider's bonus window for free; everyone else
// goes through the paid stored-card charge.
func (e *Engine) AutoSubscribe(ctx context.Context, user *types.User, plan *types.Plan, provider types.Provider) error {
	if user.HasReceivedFreeBonus {
		// Card added without bonus: the charge is a precondition here,
		// not a side effect of the date math.
		out, err := e.RenewWithStoredCard(ctx, user.ID, plan.ID)
		if err != nil {
			return err
		}
		if !out.Success {
			e.notify.Send(ctx, user.TelegramID, messages.ChargeFailed())
		}
		return nil
	}

	days := provider.BonusDays()
	sub, err := e.extendWindow(user, plan, provider, days, types.SubscriptionTypeAuto, true, true)
	if err != nil {
		return fmt.Errorf("extend window: %w", err)
	}
	if err := e.users.MarkBonusGranted(user.ID, e.now()); err != nil {
		return fmt.Errorf("mark bonus granted: %w", err)
	}
	if err := e.users.SetSubscriptionType(user.ID, types.SubscriptionTypeAuto); err != nil {
		log.Printf("lifecycle: set subscription type for user %d: %v", user.ID, err)
	}
	if err := e.users.SetActive(user.ID, true, false); err != nil {
		log.Printf("lifecycle: activate user %d: %v", user.ID, err)
	}

	e.notify.Send(ctx, user.TelegramID, messages.BonusGranted(plan.Service, days, sub.EndDate))
	return nil
}

// RenewWithStoredCard charges the user's vaulted token for the plan price
// and extends the window only after the provider confirms the charge. A
// declined or timed-out charge is a clean non-success, not an error.
func (e *Engine) RenewWithStoredCard(ctx context.Context, userID, planID int64) (RenewOutcome, error) {
	user, err := e.users.GetUser(userID)
	if err != nil {
		return RenewOutcome{}, fmt.Errorf("load user: %w", err)
	}
	plan, err := e.plans.GetPlan(planID)
	if err != nil {
		return RenewOutcome{}, fmt.Errorf("load plan: %w", err)
	}
	card, err := e.cards.FindAny(userID)
	if err != nil {
		return RenewOutcome{}, fmt.Errorf("no stored card: %w", err)
	}
	client, ok := e.charge[card.Provider]
	if !ok {
		return RenewOutcome{}, fmt.Errorf("no charge client for provider %s", card.Provider)
	}

	correlationID := uuid.NewString()
	res, err := client.Charge(ctx, card.Token, plan.PriceTiyin, correlationID)
	if err != nil {
		log.Printf("lifecycle: charge via %s for user %d: %v", card.Provider, userID, err)
		return RenewOutcome{}, nil
	}
	if !res.Success {
		log.Printf("lifecycle: charge declined via %s for user %d (code %d)", card.Provider, userID, res.ErrorCode)
		return RenewOutcome{}, nil
	}

	transID := res.ReceiptID
	if transID == "" {
		transID = correlationID
	}
	paidAt := e.now()
	if err := e.ledger.RecordCharge(types.Transaction{
		Provider:    card.Provider,
		PaymentType: types.PaymentSubscription,
		TransID:     transID,
		AmountTiyin: plan.PriceTiyin,
		Status:      types.TransactionPaid,
		UserID:      userID,
		PlanID:      planID,
		Service:     plan.Service,
		PerformedAt: &paidAt,
	}); err != nil {
		log.Printf("lifecycle: record charge %s: %v", transID, err)
	}

	sub, err := e.extendWindow(user, plan, card.Provider, plan.DurationDays, types.SubscriptionTypeAuto, true, false)
	if err != nil {
		return RenewOutcome{}, fmt.Errorf("extend window: %w", err)
	}
	if err := e.users.MarkHadPaidSubscription(userID); err != nil {
		log.Printf("lifecycle: mark paid history for user %d: %v", userID, err)
	}
	if err := e.users.SetActive(userID, true, false); err != nil {
		log.Printf("lifecycle: activate user %d: %v", userID, err)
	}

	e.notify.Send(ctx, user.TelegramID, messages.AutoRenewSuccess(plan.Service, sub.EndDate))
	if res.QRCodeURL != "" {
		e.notify.Send(ctx, user.TelegramID, messages.AutoRenewReceiptQR(res.QRCodeURL))
	}
	return RenewOutcome{Success: true, NewEnd: sub.EndDate}, nil
}

// HandleCardRemoved applies the bonus-cancellation rules to every service
// window the user holds, after the card itself is gone from the vault.
func (e *Engine) HandleCardRemoved(ctx context.Context, userID int64, provider types.Provider) error {
	user, err := e.users.GetUser(userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	now := e.now()

	for _, service := range []types.ServiceKind{types.ServiceFootball, types.ServiceWrestling} {
		sub, err := e.activeSubscription(userID, service)
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		if sub == nil {
			continue
		}

		if !sub.HasReceivedBonus {
			// Paid window with no bonus increment: the card going away
			// only stops future auto-charges.
			if sub.AutoRenew {
				if err := e.subs.SetAutoRenew(sub.ID, false); err != nil {
					log.Printf("lifecycle: disable auto renew for sub %d: %v", sub.ID, err)
				}
			}
			continue
		}

		out := ComputeCardRemoval(now, sub.EndDate, user.HadPaidSubscriptionBeforeBonus, user.FreeBonusReceivedAt, provider)
		switch {
		case out.Terminate:
			if err := e.subs.UpdateWindow(sub.ID, sub.StartDate, out.NewEnd, types.SubscriptionCancelled, false); err != nil {
				return fmt.Errorf("terminate subscription %d: %w", sub.ID, err)
			}
			e.notify.Send(ctx, user.TelegramID, messages.BonusRevoked(service))
		case out.RollBack:
			if err := e.subs.UpdateWindow(sub.ID, sub.StartDate, out.NewEnd, types.SubscriptionActive, true); err != nil {
				return fmt.Errorf("roll back subscription %d: %w", sub.ID, err)
			}
			if err := e.subs.SetAutoRenew(sub.ID, false); err != nil {
				log.Printf("lifecycle: disable auto renew for sub %d: %v", sub.ID, err)
			}
			e.notify.Send(ctx, user.TelegramID, messages.BonusRolledBack(service, out.NewEnd))
		default:
			// Bonus window already lapsed: the remaining days are paid
			// for, the card going away only stops future auto-charges.
			if sub.AutoRenew {
				if err := e.subs.SetAutoRenew(sub.ID, false); err != nil {
					log.Printf("lifecycle: disable auto renew for sub %d: %v", sub.ID, err)
				}
			}
		}
	}

	if err := e.users.SetSubscriptionType(userID, types.SubscriptionTypeOnetime); err != nil {
		log.Printf("lifecycle: reset subscription type for user %d: %v", userID, err)
	}
	return nil
}

// SubscriptionStatus reports the current window for status displays.
func (e *Engine) SubscriptionStatus(userID int64, service types.ServiceKind) (StatusResult, error) {
	sub, err := e.activeSubscription(userID, service)
	if err != nil {
		return StatusResult{}, err
	}
	if sub == nil || !sub.EndDate.After(e.now()) {
		return StatusResult{}, nil
	}
	return StatusResult{Active: true, StartDate: sub.StartDate, EndDate: sub.EndDate}, nil
}
