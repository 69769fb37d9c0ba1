package billing

import (
	"context"
	"errors"
	"time"

	"github.com/okhunjon/sportpay-bot/store"
	"github.com/okhunjon/sportpay-bot/types"
)

type userStoreStub struct {
	users map[int64]*types.User

	bonusGranted  []int64
	paidMarked    []int64
	typeSet       map[int64]types.SubscriptionType
	warningsGiven []int64
}

func newUserStoreStub(users ...*types.User) *userStoreStub {
	s := &userStoreStub{users: map[int64]*types.User{}, typeSet: map[int64]types.SubscriptionType{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userStoreStub) UpsertUser(telegramID int64, username string) (*types.User, error) {
	for _, u := range s.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	u := &types.User{ID: int64(len(s.users) + 1), TelegramID: telegramID, Username: username}
	s.users[u.ID] = u
	return u, nil
}

func (s *userStoreStub) GetUser(id int64) (*types.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *userStoreStub) GetUserByTelegramID(telegramID int64) (*types.User, error) {
	for _, u := range s.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *userStoreStub) SetSubscriptionType(userID int64, st types.SubscriptionType) error {
	s.typeSet[userID] = st
	if u, ok := s.users[userID]; ok {
		u.SubscriptionType = st
	}
	return nil
}

func (s *userStoreStub) MarkBonusGranted(userID int64, at time.Time) error {
	s.bonusGranted = append(s.bonusGranted, userID)
	if u, ok := s.users[userID]; ok {
		u.HasReceivedFreeBonus = true
		u.FreeBonusReceivedAt = &at
	}
	return nil
}

func (s *userStoreStub) MarkHadPaidSubscription(userID int64) error {
	s.paidMarked = append(s.paidMarked, userID)
	if u, ok := s.users[userID]; ok {
		u.HadPaidSubscriptionBeforeBonus = true
	}
	return nil
}

func (s *userStoreStub) SetActive(userID int64, active, kickedOut bool) error {
	if u, ok := s.users[userID]; ok {
		u.IsActive = active
		u.IsKickedOut = kickedOut
	}
	return nil
}

func (s *userStoreStub) StampWarning(userID int64, at time.Time) error {
	s.warningsGiven = append(s.warningsGiven, userID)
	if u, ok := s.users[userID]; ok {
		u.HasSentWarning = true
		u.LastWarningDate = &at
	}
	return nil
}

type planStoreStub struct {
	plans map[int64]*types.Plan
}

func newPlanStoreStub(plans ...*types.Plan) *planStoreStub {
	s := &planStoreStub{plans: map[int64]*types.Plan{}}
	for _, p := range plans {
		s.plans[p.ID] = p
	}
	return s
}

func (s *planStoreStub) GetPlan(id int64) (*types.Plan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *planStoreStub) GetPlanByName(name string) (*types.Plan, error) {
	for _, p := range s.plans {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *planStoreStub) ListPlans(service types.ServiceKind) ([]types.Plan, error) {
	var out []types.Plan
	for _, p := range s.plans {
		if p.Service == service {
			out = append(out, *p)
		}
	}
	return out, nil
}

type subStoreStub struct {
	nextID int64
	subs   map[int64]*types.Subscription

	autoRenewSet map[int64]bool
	resetCalls   []int64
}

func newSubStoreStub(subs ...*types.Subscription) *subStoreStub {
	s := &subStoreStub{nextID: 100, subs: map[int64]*types.Subscription{}, autoRenewSet: map[int64]bool{}}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *subStoreStub) GetActive(userID int64, service types.ServiceKind) (*types.Subscription, error) {
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.Service == service && sub.Status == types.SubscriptionActive {
			return sub, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *subStoreStub) Create(sub types.Subscription) (*types.Subscription, error) {
	s.nextID++
	sub.ID = s.nextID
	s.subs[sub.ID] = &sub
	return &sub, nil
}

// ActivateOrExtend mirrors the real store: the latest row per
// (user, service) is reused regardless of status.
func (s *subStoreStub) ActivateOrExtend(sub types.Subscription, days int, now time.Time) (*types.Subscription, error) {
	var latest *types.Subscription
	for _, cur := range s.subs {
		if cur.UserID != sub.UserID || cur.Service != sub.Service {
			continue
		}
		if latest == nil || cur.EndDate.After(latest.EndDate) {
			latest = cur
		}
	}
	if latest == nil {
		sub.StartDate, sub.EndDate = now, now.AddDate(0, 0, days)
		sub.IsActive, sub.Status = true, types.SubscriptionActive
		return s.Create(sub)
	}
	if latest.IsActive && latest.EndDate.After(now) {
		latest.EndDate = latest.EndDate.AddDate(0, 0, days)
	} else {
		latest.StartDate, latest.EndDate = now, now.AddDate(0, 0, days)
	}
	latest.IsActive, latest.Status = true, types.SubscriptionActive
	latest.PlanID = sub.PlanID
	latest.PaidBy = sub.PaidBy
	latest.AutoRenew = latest.AutoRenew || sub.AutoRenew
	if sub.AutoRenew {
		latest.SubscriptionType = types.SubscriptionTypeAuto
	}
	latest.HasReceivedBonus = latest.HasReceivedBonus || sub.HasReceivedBonus
	return latest, nil
}

func (s *subStoreStub) UpdateWindow(id int64, start, end time.Time, status types.SubscriptionStatus, active bool) error {
	sub, ok := s.subs[id]
	if !ok {
		return store.ErrNotFound
	}
	sub.StartDate, sub.EndDate = start, end
	sub.Status, sub.IsActive = status, active
	return nil
}

func (s *subStoreStub) SetAutoRenew(id int64, autoRenew bool) error {
	s.autoRenewSet[id] = autoRenew
	if sub, ok := s.subs[id]; ok {
		sub.AutoRenew = autoRenew
	}
	return nil
}

func (s *subStoreStub) DueForAutoCharge(now, startOfToday time.Time) ([]types.DueSubscription, error) {
	return nil, nil
}

func (s *subStoreStub) StampAttempt(id int64, at time.Time) (int, error) {
	sub, ok := s.subs[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	sub.LastAttemptedAt = &at
	sub.AttemptCount++
	return sub.AttemptCount, nil
}

func (s *subStoreStub) ResetAttempts(id int64) error {
	s.resetCalls = append(s.resetCalls, id)
	if sub, ok := s.subs[id]; ok {
		sub.AttemptCount = 0
	}
	return nil
}

func (s *subStoreStub) ExpireDue(now time.Time) ([]types.Subscription, error) {
	var out []types.Subscription
	for _, sub := range s.subs {
		if sub.Status == types.SubscriptionActive && sub.EndDate.Before(now) {
			sub.Status = types.SubscriptionExpired
			sub.IsActive = false
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *subStoreStub) WarningCandidates(now, until, startOfToday time.Time) ([]types.DueSubscription, error) {
	return nil, nil
}

type ledgerStub struct {
	nextID int64
	byID   map[string]*types.Transaction
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{byID: map[string]*types.Transaction{}}
}

func (s *ledgerStub) FindByTransID(transID string) (*types.Transaction, error) {
	tx, ok := s.byID[transID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tx, nil
}

func (s *ledgerStub) CreatePending(tx types.Transaction) (bool, error) {
	if _, ok := s.byID[tx.TransID]; ok {
		return false, nil
	}
	s.nextID++
	tx.ID = s.nextID
	s.byID[tx.TransID] = &tx
	return true, nil
}

func (s *ledgerStub) FindPrepared(transID string, prepareID int64) (*types.Transaction, error) {
	tx, ok := s.byID[transID]
	if !ok || tx.PrepareID != prepareID {
		return nil, store.ErrNotFound
	}
	return tx, nil
}

func (s *ledgerStub) HasPaidPrepare(prepareID, planID int64) (bool, error) {
	for _, tx := range s.byID {
		if tx.PrepareID == prepareID && tx.PlanID == planID && tx.Status == types.TransactionPaid {
			return true, nil
		}
	}
	return false, nil
}

func (s *ledgerStub) MarkPaid(transID string, at time.Time) (bool, error) {
	tx, ok := s.byID[transID]
	if !ok || tx.Status != types.TransactionPending {
		return false, nil
	}
	tx.Status = types.TransactionPaid
	tx.PerformedAt = &at
	return true, nil
}

func (s *ledgerStub) MarkFailed(transID string, reason int) (bool, error) {
	tx, ok := s.byID[transID]
	if !ok || tx.Status != types.TransactionPending {
		return false, nil
	}
	tx.Status = types.TransactionFailed
	tx.Reason = reason
	return true, nil
}

func (s *ledgerStub) MarkCanceled(transID string, at time.Time) (bool, error) {
	tx, ok := s.byID[transID]
	if !ok || tx.Status.Terminal() {
		return false, nil
	}
	tx.Status = types.TransactionCanceled
	tx.CanceledAt = &at
	return true, nil
}

func (s *ledgerStub) RecordCharge(tx types.Transaction) error {
	if _, ok := s.byID[tx.TransID]; ok {
		return nil
	}
	s.nextID++
	tx.ID = s.nextID
	s.byID[tx.TransID] = &tx
	return nil
}

type cardStoreStub struct {
	cards map[string]*types.Card

	deleted []string
}

func newCardStoreStub(cards ...*types.Card) *cardStoreStub {
	s := &cardStoreStub{cards: map[string]*types.Card{}}
	for _, c := range cards {
		s.cards[c.MaskedNumber] = c
	}
	return s
}

func (s *cardStoreStub) Store(card types.Card) (*types.Card, error) {
	s.cards[card.MaskedNumber] = &card
	return &card, nil
}

func (s *cardStoreStub) Find(userID int64, provider types.Provider) (*types.Card, error) {
	for _, c := range s.cards {
		if c.UserID == userID && c.Provider == provider {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *cardStoreStub) FindAny(userID int64) (*types.Card, error) {
	for _, c := range s.cards {
		if c.UserID == userID && c.Verified {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *cardStoreStub) FindByMasked(masked string) (*types.Card, error) {
	c, ok := s.cards[masked]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (s *cardStoreStub) Delete(userID int64, provider types.Provider) error {
	for masked, c := range s.cards {
		if c.UserID == userID && c.Provider == provider {
			delete(s.cards, masked)
			s.deleted = append(s.deleted, masked)
			return nil
		}
	}
	return store.ErrNotFound
}

type chargeClientStub struct {
	result types.ChargeResult
	err    error

	charges       []int64
	removeErr     error
	removedTokens []string
}

func (s *chargeClientStub) Charge(ctx context.Context, token string, amountTiyin int64, correlationID string) (types.ChargeResult, error) {
	s.charges = append(s.charges, amountTiyin)
	if s.err != nil {
		return types.ChargeResult{}, s.err
	}
	return s.result, nil
}

func (s *chargeClientStub) RemoveToken(ctx context.Context, token string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removedTokens = append(s.removedTokens, token)
	return nil
}

type notifierStub struct {
	sent []string
}

func (s *notifierStub) Send(ctx context.Context, telegramID int64, text string) {
	s.sent = append(s.sent, text)
}

var errStubFailure = errors.New("stub failure")
