package types

import "time"

type User struct {
	ID                             int64
	TelegramID                     int64
	Username                       string
	SubscriptionType               SubscriptionType
	IsActive                       bool
	IsKickedOut                    bool
	HasReceivedFreeBonus           bool
	FreeBonusReceivedAt            *time.Time
	HadPaidSubscriptionBeforeBonus bool
	HasSentWarning                 bool
	LastWarningDate                *time.Time
	CreatedAt                      time.Time
	UpdatedAt                      time.Time
}

type Plan struct {
	ID           int64
	Name         string
	Service      ServiceKind
	PriceTiyin   int64
	DurationDays int
	CreatedAt    time.Time
}

type Subscription struct {
	ID               int64
	UserID           int64
	PlanID           int64
	Service          ServiceKind
	SubscriptionType SubscriptionType
	StartDate        time.Time
	EndDate          time.Time
	IsActive         bool
	Status           SubscriptionStatus
	AutoRenew        bool
	PaidBy           Provider
	SubscribedBy     Provider
	HasReceivedBonus bool
	LastAttemptedAt  *time.Time
	AttemptCount     int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Card struct {
	ID           int64
	UserID       int64
	Provider     Provider
	Token        string
	MaskedNumber string
	Verified     bool
	VerifiedAt   *time.Time
	CreatedAt    time.Time
}

type Transaction struct {
	ID          int64
	Provider    Provider
	PaymentType PaymentType
	TransID     string
	AmountTiyin int64
	Status      TransactionStatus
	PrepareID   int64
	UserID      int64
	PlanID      int64
	Service     ServiceKind
	PerformedAt *time.Time
	CanceledAt  *time.Time
	Reason      int
	CreatedAt   time.Time
}

// DueSubscription is a charge-sweep candidate joined with the owning user
// and plan so the sweep does not re-query per row.
type DueSubscription struct {
	Subscription Subscription
	User         User
	Plan         Plan
}

// ChargeResult is the normalized outcome of a stored-token charge across
// the three provider backends.
type ChargeResult struct {
	Success   bool
	ReceiptID string
	QRCodeURL string
	ErrorCode int
}
