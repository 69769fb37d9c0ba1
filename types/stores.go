package types

import "time"

type UserStore interface {
	UpsertUser(telegramID int64, username string) (*User, error)
	GetUser(id int64) (*User, error)
	GetUserByTelegramID(telegramID int64) (*User, error)
	SetSubscriptionType(userID int64, st SubscriptionType) error
	MarkBonusGranted(userID int64, at time.Time) error
	MarkHadPaidSubscription(userID int64) error
	SetActive(userID int64, active, kickedOut bool) error
	StampWarning(userID int64, at time.Time) error
}

type PlanStore interface {
	GetPlan(id int64) (*Plan, error)
	GetPlanByName(name string) (*Plan, error)
	ListPlans(service ServiceKind) ([]Plan, error)
}

type SubscriptionStore interface {
	GetActive(userID int64, service ServiceKind) (*Subscription, error)
	Create(sub Subscription) (*Subscription, error)
	// ActivateOrExtend atomically extends the latest window for the
	// (user, service) pair — additively while it still runs, restarting
	// from now otherwise — reusing the row regardless of its status so an
	// expired auto-renew row is reactivated in place rather than left
	// behind as a permanently-due duplicate. Opens a fresh window when the
	// user has none for the service.
	ActivateOrExtend(sub Subscription, days int, now time.Time) (*Subscription, error)
	UpdateWindow(id int64, start, end time.Time, status SubscriptionStatus, active bool) error
	SetAutoRenew(id int64, autoRenew bool) error

	// DueForAutoCharge returns auto-renew subscriptions whose window has
	// ended and which have not been attempted since startOfToday.
	DueForAutoCharge(now, startOfToday time.Time) ([]DueSubscription, error)
	// StampAttempt records an auto-charge attempt before the charge is made
	// and returns the incremented attempt count.
	StampAttempt(id int64, at time.Time) (int, error)
	ResetAttempts(id int64) error

	// ExpireDue flips active windows past their end date to expired and
	// returns the rows it changed.
	ExpireDue(now time.Time) ([]Subscription, error)
	// WarningCandidates returns one-time subscriptions ending inside
	// (now, until] whose user has not been warned since startOfToday.
	WarningCandidates(now, until, startOfToday time.Time) ([]DueSubscription, error)
}

type LedgerStore interface {
	FindByTransID(transID string) (*Transaction, error)
	// CreatePending inserts a PENDING row unless the transaction id is
	// already taken.
	CreatePending(tx Transaction) (bool, error)
	FindPrepared(transID string, prepareID int64) (*Transaction, error)
	HasPaidPrepare(prepareID, planID int64) (bool, error)
	// MarkPaid / MarkFailed / MarkCanceled transition a PENDING row and
	// report whether a row actually changed. Terminal rows stay put.
	MarkPaid(transID string, at time.Time) (bool, error)
	MarkFailed(transID string, reason int) (bool, error)
	MarkCanceled(transID string, at time.Time) (bool, error)
	// RecordCharge appends an already-performed stored-token charge.
	RecordCharge(tx Transaction) error
}

type CardStore interface {
	// Store upserts by masked number: providers can re-issue tokens for the
	// same physical card.
	Store(card Card) (*Card, error)
	Find(userID int64, provider Provider) (*Card, error)
	FindAny(userID int64) (*Card, error)
	FindByMasked(masked string) (*Card, error)
	Delete(userID int64, provider Provider) error
}
