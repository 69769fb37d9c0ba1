package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/okhunjon/sportpay-bot/internal/billing"
	"github.com/okhunjon/sportpay-bot/internal/messages"
	"github.com/okhunjon/sportpay-bot/types"
)

// maxChargeAttempts bounds the retry loop against a permanently-invalid
// card: one failed attempt per day, then the account is deactivated.
const maxChargeAttempts = 30

// warningWindow is how far ahead the expiring-soon sweep looks.
const warningWindow = 72 * time.Hour

// perCandidateTimeout bounds one candidate's provider round trip so a
// stuck call cannot stall the rest of the sweep.
const perCandidateTimeout = 2 * time.Minute

// Renewer is the slice of the lifecycle engine the charge sweep needs.
type Renewer interface {
	RenewWithStoredCard(ctx context.Context, userID, planID int64) (billing.RenewOutcome, error)
}

// Sweeps holds the periodic jobs: the daily auto-charge sweep, the
// 15-minute expiration sweep and the daily expiring-soon warnings.
type Sweeps struct {
	users  types.UserStore
	subs   types.SubscriptionStore
	engine Renewer
	notify types.Notifier

	now func() time.Time
}

func NewSweeps(users types.UserStore, subs types.SubscriptionStore, engine Renewer, notify types.Notifier) *Sweeps {
	return &Sweeps{users: users, subs: subs, engine: engine, notify: notify, now: time.Now}
}

// Day boundaries are UTC everywhere attempts and warnings are compared.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AutoCharge renews every due auto-renew subscription from its stored
// card. The attempt is stamped before the charge so a crash mid-charge
// cannot turn into a same-day retry storm. Candidates are processed
// sequentially; volumes are small and provider calls are bounded above.
func (s *Sweeps) AutoCharge() {
	now := s.now().UTC()
	due, err := s.subs.DueForAutoCharge(now, startOfDayUTC(now))
	if err != nil {
		log.Printf("auto-charge sweep: list candidates: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("auto-charge sweep: %d candidates", len(due))

	for _, cand := range due {
		s.chargeOne(cand, now)
	}
}

func (s *Sweeps) chargeOne(cand types.DueSubscription, now time.Time) {
	sub := cand.Subscription

	attempts, err := s.subs.StampAttempt(sub.ID, now)
	if err != nil {
		log.Printf("auto-charge sweep: stamp attempt for sub %d: %v", sub.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), perCandidateTimeout)
	defer cancel()

	out, err := s.engine.RenewWithStoredCard(ctx, sub.UserID, sub.PlanID)
	if err != nil {
		log.Printf("auto-charge sweep: renew for user %d: %v", sub.UserID, err)
	}
	if err == nil && out.Success {
		if err := s.subs.ResetAttempts(sub.ID); err != nil {
			log.Printf("auto-charge sweep: reset attempts for sub %d: %v", sub.ID, err)
		}
		return
	}

	if attempts >= maxChargeAttempts {
		log.Printf("auto-charge sweep: sub %d exhausted %d attempts, deactivating user %d", sub.ID, attempts, sub.UserID)
		if err := s.subs.UpdateWindow(sub.ID, sub.StartDate, sub.EndDate, types.SubscriptionExpired, false); err != nil {
			log.Printf("auto-charge sweep: expire sub %d: %v", sub.ID, err)
		}
		if err := s.subs.SetAutoRenew(sub.ID, false); err != nil {
			log.Printf("auto-charge sweep: disable auto renew for sub %d: %v", sub.ID, err)
		}
		if err := s.users.SetActive(sub.UserID, false, true); err != nil {
			log.Printf("auto-charge sweep: deactivate user %d: %v", sub.UserID, err)
		}
		s.notify.Send(ctx, cand.User.TelegramID, messages.SubscriptionTerminated(sub.Service))
		return
	}
	// Likely insufficient funds; tomorrow's sweep retries.
	log.Printf("auto-charge sweep: charge failed for user %d (attempt %d)", sub.UserID, attempts)
}

// Expire flips windows past their end date to expired. Pure bookkeeping:
// it never reactivates anything and runs independently of the charge
// sweep, which re-derives dueness from end dates on its own.
func (s *Sweeps) Expire() {
	now := s.now().UTC()
	expired, err := s.subs.ExpireDue(now)
	if err != nil {
		log.Printf("expiration sweep: %v", err)
		return
	}
	for _, sub := range expired {
		log.Printf("expiration sweep: subscription %d (user %d, %s) expired", sub.ID, sub.UserID, sub.Service)
		if sub.SubscriptionType == types.SubscriptionTypeOnetime {
			if err := s.users.SetActive(sub.UserID, false, false); err != nil {
				log.Printf("expiration sweep: deactivate user %d: %v", sub.UserID, err)
			}
		}
	}
}

// Warn notifies one-time subscribers whose window ends within the next
// three days, at most once per UTC day.
func (s *Sweeps) Warn() {
	now := s.now().UTC()
	cands, err := s.subs.WarningCandidates(now, now.Add(warningWindow), startOfDayUTC(now))
	if err != nil {
		log.Printf("warning sweep: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), perCandidateTimeout)
	defer cancel()

	for _, cand := range cands {
		s.notify.Send(ctx, cand.User.TelegramID, messages.ExpiringSoon(cand.Subscription.Service, cand.Subscription.EndDate))
		if err := s.users.StampWarning(cand.User.ID, now); err != nil {
			log.Printf("warning sweep: stamp warning for user %d: %v", cand.User.ID, err)
		}
	}
}
