package billing

import (
	"context"
	"testing"
	"time"

	"github.com/okhunjon/sportpay-bot/types"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func newTestEngine(users *userStoreStub, plans *planStoreStub, subs *subStoreStub, cards *cardStoreStub, charge types.ChargeClient) (*Engine, *ledgerStub, *notifierStub) {
	ledger := newLedgerStub()
	notify := &notifierStub{}
	clients := map[types.Provider]types.ChargeClient{}
	if charge != nil {
		clients[types.ProviderClick] = charge
		clients[types.ProviderPayme] = charge
		clients[types.ProviderUzcard] = charge
	}
	e := NewEngine(users, plans, subs, cards, ledger, clients, notify)
	e.now = func() time.Time { return testNow }
	return e, ledger, notify
}

func footballPlan() *types.Plan {
	return &types.Plan{ID: 1, Name: "Futbol Premium", Service: types.ServiceFootball, PriceTiyin: 555500, DurationDays: 30}
}

func bonusGrantedDaysAgo(days int) *time.Time {
	at := testNow.AddDate(0, 0, -days)
	return &at
}

func TestComputeCardRemoval(t *testing.T) {
	end := testNow.AddDate(0, 0, 25)

	out := ComputeCardRemoval(testNow, end, false, bonusGrantedDaysAgo(5), types.ProviderUzcard)
	if !out.Terminate || !out.NewEnd.Equal(testNow) {
		t.Fatalf("no paid history: outcome = %+v, want immediate termination", out)
	}

	// 90 days left, minus the 60-day uzcard bonus, keeps 30 paid days.
	out = ComputeCardRemoval(testNow, testNow.AddDate(0, 0, 90), true, bonusGrantedDaysAgo(10), types.ProviderUzcard)
	if out.Terminate || !out.RollBack {
		t.Fatalf("paid history with remaining time: outcome = %+v, want rollback", out)
	}
	if want := testNow.AddDate(0, 0, 30); !out.NewEnd.Equal(want) {
		t.Fatalf("rolled-back end = %v, want %v", out.NewEnd, want)
	}

	// Rollback landing in the past terminates.
	out = ComputeCardRemoval(testNow, testNow.AddDate(0, 0, 20), true, bonusGrantedDaysAgo(5), types.ProviderPayme)
	if !out.Terminate {
		t.Fatal("rolled-back end in the past did not terminate")
	}
}

func TestComputeCardRemovalLapsedBonusLeavesWindow(t *testing.T) {
	// Bonus granted a year ago: its 60-day window is long over, every
	// remaining day was paid for. The window must stay untouched.
	out := ComputeCardRemoval(testNow, testNow.AddDate(0, 0, 25), true, bonusGrantedDaysAgo(365), types.ProviderUzcard)
	if out.Terminate || out.RollBack {
		t.Fatalf("lapsed bonus window penalized: %+v", out)
	}

	// Day 60 exactly: the window has just closed.
	out = ComputeCardRemoval(testNow, testNow.AddDate(0, 0, 25), false, bonusGrantedDaysAgo(60), types.ProviderUzcard)
	if out.Terminate || out.RollBack {
		t.Fatalf("just-closed bonus window penalized: %+v", out)
	}

	// Day 59: still inside, the rules apply.
	out = ComputeCardRemoval(testNow, testNow.AddDate(0, 0, 25), false, bonusGrantedDaysAgo(59), types.ProviderUzcard)
	if !out.Terminate {
		t.Fatal("live bonus window with no paid history not terminated")
	}
}

func TestApplyPurchaseOpensWindow(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	users := newUserStoreStub(user)
	subs := newSubStoreStub()
	e, _, notify := newTestEngine(users, newPlanStoreStub(footballPlan()), subs, newCardStoreStub(), nil)

	if err := e.ApplyPurchase(context.Background(), user, footballPlan(), types.ProviderClick); err != nil {
		t.Fatal(err)
	}

	sub, err := subs.GetActive(7, types.ServiceFootball)
	if err != nil {
		t.Fatal(err)
	}
	if want := testNow.AddDate(0, 0, 30); !sub.EndDate.Equal(want) {
		t.Fatalf("end = %v, want %v", sub.EndDate, want)
	}
	if sub.SubscriptionType != types.SubscriptionTypeOnetime || sub.AutoRenew {
		t.Fatalf("one-time purchase created %s/autoRenew=%v", sub.SubscriptionType, sub.AutoRenew)
	}
	if len(users.paidMarked) != 1 {
		t.Fatal("paid history not recorded")
	}
	if len(notify.sent) != 1 {
		t.Fatalf("notifications sent = %d, want 1", len(notify.sent))
	}
}

func TestApplyPurchaseExtendsActiveWindow(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	end := testNow.AddDate(0, 0, 10)
	existing := &types.Subscription{
		ID: 50, UserID: 7, Service: types.ServiceFootball,
		StartDate: testNow.AddDate(0, 0, -20), EndDate: end,
		Status: types.SubscriptionActive, IsActive: true,
	}
	subs := newSubStoreStub(existing)
	e, _, _ := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, newCardStoreStub(), nil)

	if err := e.ApplyPurchase(context.Background(), user, footballPlan(), types.ProviderClick); err != nil {
		t.Fatal(err)
	}
	if want := end.AddDate(0, 0, 30); !existing.EndDate.Equal(want) {
		t.Fatalf("end = %v, want old end + 30d = %v", existing.EndDate, want)
	}
}

func TestAutoSubscribeGrantsBonusOnce(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	users := newUserStoreStub(user)
	subs := newSubStoreStub()
	cards := newCardStoreStub(&types.Card{UserID: 7, Provider: types.ProviderUzcard, Token: "tok", MaskedNumber: "8600**1234", Verified: true})
	charge := &chargeClientStub{result: types.ChargeResult{Success: true, ReceiptID: "r1"}}
	e, _, _ := newTestEngine(users, newPlanStoreStub(footballPlan()), subs, cards, charge)

	if err := e.AutoSubscribe(context.Background(), user, footballPlan(), types.ProviderUzcard); err != nil {
		t.Fatal(err)
	}

	sub, err := subs.GetActive(7, types.ServiceFootball)
	if err != nil {
		t.Fatal(err)
	}
	if want := testNow.AddDate(0, 0, 60); !sub.EndDate.Equal(want) {
		t.Fatalf("bonus end = %v, want now + 60d = %v", sub.EndDate, want)
	}
	if !sub.HasReceivedBonus || !sub.AutoRenew {
		t.Fatalf("bonus window flags: %+v", sub)
	}
	if !user.HasReceivedFreeBonus {
		t.Fatal("user bonus flag not set")
	}
	if len(charge.charges) != 0 {
		t.Fatal("first auto-subscription charged the card")
	}

	// Second signup must go through the paid charge path, never a second
	// bonus.
	if err := e.AutoSubscribe(context.Background(), user, footballPlan(), types.ProviderUzcard); err != nil {
		t.Fatal(err)
	}
	if len(charge.charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(charge.charges))
	}
	if want := testNow.AddDate(0, 0, 60+30); !sub.EndDate.Equal(want) {
		t.Fatalf("second signup end = %v, want bonus end + 30 paid days = %v", sub.EndDate, want)
	}
	if got := len(users.bonusGranted); got != 1 {
		t.Fatalf("bonus granted %d times", got)
	}
}

func TestRenewWithStoredCardDeclined(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	cards := newCardStoreStub(&types.Card{UserID: 7, Provider: types.ProviderPayme, Token: "tok", MaskedNumber: "8600**1234", Verified: true})
	charge := &chargeClientStub{result: types.ChargeResult{Success: false, ErrorCode: -31001}}
	subs := newSubStoreStub()
	e, ledger, _ := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, cards, charge)

	out, err := e.RenewWithStoredCard(context.Background(), 7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out.Success {
		t.Fatal("declined charge reported as success")
	}
	if _, err := subs.GetActive(7, types.ServiceFootball); err == nil {
		t.Fatal("window opened without a confirmed charge")
	}
	if len(ledger.byID) != 0 {
		t.Fatal("ledger entry recorded for a declined charge")
	}
}

func TestRenewWithStoredCardTimeoutIsFailure(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	cards := newCardStoreStub(&types.Card{UserID: 7, Provider: types.ProviderPayme, Token: "tok", MaskedNumber: "8600**1234", Verified: true})
	charge := &chargeClientStub{err: context.DeadlineExceeded}
	subs := newSubStoreStub()
	e, _, _ := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, cards, charge)

	out, err := e.RenewWithStoredCard(context.Background(), 7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out.Success {
		t.Fatal("timed-out charge reported as success")
	}
}

func TestRenewWithStoredCardSuccess(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	cards := newCardStoreStub(&types.Card{UserID: 7, Provider: types.ProviderUzcard, Token: "tok", MaskedNumber: "8600**1234", Verified: true})
	charge := &chargeClientStub{result: types.ChargeResult{Success: true, ReceiptID: "r9", QRCodeURL: "https://ofd.uz/r9"}}
	subs := newSubStoreStub()
	e, ledger, notify := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, cards, charge)

	out, err := e.RenewWithStoredCard(context.Background(), 7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatal("confirmed charge reported as failure")
	}
	if want := testNow.AddDate(0, 0, 30); !out.NewEnd.Equal(want) {
		t.Fatalf("new end = %v, want %v", out.NewEnd, want)
	}
	tx, ok := ledger.byID["r9"]
	if !ok || tx.Status != types.TransactionPaid {
		t.Fatal("charge not recorded as PAID in the ledger")
	}
	if len(notify.sent) != 2 {
		t.Fatalf("notifications = %d, want success + QR receipt", len(notify.sent))
	}
}

func TestHandleCardRemovedTerminatesUnpaidBonus(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700, HasReceivedFreeBonus: true, FreeBonusReceivedAt: bonusGrantedDaysAgo(5)}
	// 5 days into a 30-day bonus window, no paid history.
	sub := &types.Subscription{
		ID: 50, UserID: 7, Service: types.ServiceFootball,
		StartDate: testNow.AddDate(0, 0, -5), EndDate: testNow.AddDate(0, 0, 25),
		Status: types.SubscriptionActive, IsActive: true,
		AutoRenew: true, HasReceivedBonus: true,
	}
	subs := newSubStoreStub(sub)
	e, _, notify := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, newCardStoreStub(), nil)

	if err := e.HandleCardRemoved(context.Background(), 7, types.ProviderPayme); err != nil {
		t.Fatal(err)
	}
	if sub.IsActive || sub.Status != types.SubscriptionCancelled {
		t.Fatalf("subscription not terminated: %+v", sub)
	}
	if !sub.EndDate.Equal(testNow) {
		t.Fatalf("end = %v, want now", sub.EndDate)
	}
	if len(notify.sent) != 1 {
		t.Fatal("user not told about the revoked bonus")
	}
}

func TestHandleCardRemovedRollsBackPaidBonus(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700, HasReceivedFreeBonus: true, HadPaidSubscriptionBeforeBonus: true, FreeBonusReceivedAt: bonusGrantedDaysAgo(10)}
	sub := &types.Subscription{
		ID: 50, UserID: 7, Service: types.ServiceFootball,
		StartDate: testNow.AddDate(0, 0, -10), EndDate: testNow.AddDate(0, 0, 90),
		Status: types.SubscriptionActive, IsActive: true,
		AutoRenew: true, HasReceivedBonus: true,
	}
	subs := newSubStoreStub(sub)
	e, _, _ := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, newCardStoreStub(), nil)

	if err := e.HandleCardRemoved(context.Background(), 7, types.ProviderUzcard); err != nil {
		t.Fatal(err)
	}
	if !sub.IsActive {
		t.Fatal("paid time discarded along with the bonus")
	}
	if want := testNow.AddDate(0, 0, 30); !sub.EndDate.Equal(want) {
		t.Fatalf("end = %v, want %v", sub.EndDate, want)
	}
	if sub.AutoRenew {
		t.Fatal("auto renew survived card removal")
	}
}

func TestHandleCardRemovedPaidWindowOnlyStopsAutoRenew(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	sub := &types.Subscription{
		ID: 50, UserID: 7, Service: types.ServiceFootball,
		StartDate: testNow.AddDate(0, 0, -10), EndDate: testNow.AddDate(0, 0, 20),
		Status: types.SubscriptionActive, IsActive: true, AutoRenew: true,
	}
	subs := newSubStoreStub(sub)
	e, _, _ := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, newCardStoreStub(), nil)

	if err := e.HandleCardRemoved(context.Background(), 7, types.ProviderClick); err != nil {
		t.Fatal(err)
	}
	if !sub.IsActive || sub.AutoRenew {
		t.Fatalf("paid window mishandled: %+v", sub)
	}
	if want := testNow.AddDate(0, 0, 20); !sub.EndDate.Equal(want) {
		t.Fatal("paid window end date changed")
	}
}

func TestHandleCardRemovedAfterBonusLapsedKeepsPaidWindow(t *testing.T) {
	// Bonus granted ten months ago, user has been paying monthly since:
	// removing the card must keep the 25 paid days and only stop future
	// auto-charges.
	user := &types.User{
		ID: 7, TelegramID: 700,
		HasReceivedFreeBonus: true, HadPaidSubscriptionBeforeBonus: true,
		FreeBonusReceivedAt: bonusGrantedDaysAgo(300),
	}
	end := testNow.AddDate(0, 0, 25)
	sub := &types.Subscription{
		ID: 50, UserID: 7, Service: types.ServiceFootball,
		StartDate: testNow.AddDate(0, 0, -5), EndDate: end,
		Status: types.SubscriptionActive, IsActive: true,
		AutoRenew: true, HasReceivedBonus: true,
	}
	subs := newSubStoreStub(sub)
	e, _, notify := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, newCardStoreStub(), nil)

	if err := e.HandleCardRemoved(context.Background(), 7, types.ProviderUzcard); err != nil {
		t.Fatal(err)
	}
	if !sub.IsActive || sub.Status != types.SubscriptionActive {
		t.Fatalf("paid window deactivated: %+v", sub)
	}
	if !sub.EndDate.Equal(end) {
		t.Fatalf("end = %v, want untouched %v", sub.EndDate, end)
	}
	if sub.AutoRenew {
		t.Fatal("auto renew survived card removal")
	}
	if len(notify.sent) != 0 {
		t.Fatal("user notified about a bonus that was not revoked")
	}
}

func TestRenewWithStoredCardRevivesExpiredRow(t *testing.T) {
	// The expiration sweep runs far more often than the charge sweep, so
	// by charge time the due row is usually already expired. The renewal
	// must revive that row, not create an active sibling that leaves the
	// expired one permanently due.
	user := &types.User{ID: 7, TelegramID: 700}
	expired := &types.Subscription{
		ID: 50, UserID: 7, PlanID: 1, Service: types.ServiceFootball,
		SubscriptionType: types.SubscriptionTypeAuto,
		StartDate:        testNow.AddDate(0, 0, -31), EndDate: testNow.AddDate(0, 0, -1),
		Status: types.SubscriptionExpired, IsActive: false,
		AutoRenew: true, AttemptCount: 1,
	}
	subs := newSubStoreStub(expired)
	cards := newCardStoreStub(&types.Card{UserID: 7, Provider: types.ProviderClick, Token: "tok", MaskedNumber: "8600**1234", Verified: true})
	charge := &chargeClientStub{result: types.ChargeResult{Success: true, ReceiptID: "r2"}}
	e, _, _ := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), subs, cards, charge)

	out, err := e.RenewWithStoredCard(context.Background(), 7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatal("confirmed charge reported as failure")
	}
	if len(subs.subs) != 1 {
		t.Fatalf("subscription rows = %d, want the expired row reused", len(subs.subs))
	}
	if expired.Status != types.SubscriptionActive || !expired.IsActive {
		t.Fatalf("expired row not revived: %+v", expired)
	}
	if want := testNow.AddDate(0, 0, 30); !expired.EndDate.Equal(want) {
		t.Fatalf("end = %v, want now + 30d = %v", expired.EndDate, want)
	}
	if !expired.AutoRenew || expired.SubscriptionType != types.SubscriptionTypeAuto {
		t.Fatalf("revived row lost its auto-renew setup: %+v", expired)
	}
}

func TestSubscriptionStatus(t *testing.T) {
	user := &types.User{ID: 7, TelegramID: 700}
	sub := &types.Subscription{
		ID: 50, UserID: 7, Service: types.ServiceFootball,
		StartDate: testNow.AddDate(0, 0, -10), EndDate: testNow.AddDate(0, 0, 20),
		Status: types.SubscriptionActive, IsActive: true,
	}
	e, _, _ := newTestEngine(newUserStoreStub(user), newPlanStoreStub(footballPlan()), newSubStoreStub(sub), newCardStoreStub(), nil)

	st, err := e.SubscriptionStatus(7, types.ServiceFootball)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Active || !st.EndDate.Equal(sub.EndDate) {
		t.Fatalf("status = %+v", st)
	}

	st, err = e.SubscriptionStatus(7, types.ServiceWrestling)
	if err != nil {
		t.Fatal(err)
	}
	if st.Active {
		t.Fatal("status active for a service with no subscription")
	}
}
