package types

type Provider string

const (
	ProviderClick  Provider = "click"
	ProviderPayme  Provider = "payme"
	ProviderUzcard Provider = "uzcard"
)

// BonusDays is the free-trial length granted once per user on first
// auto-renew signup. Card-tokenizing Uzcard grants a longer trial than the
// redirect-checkout providers.
func (p Provider) BonusDays() int {
	if p == ProviderUzcard {
		return 60
	}
	return 30
}

type SubscriptionType string

const (
	SubscriptionTypeAuto    SubscriptionType = "subscription"
	SubscriptionTypeOnetime SubscriptionType = "onetime"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "PENDING"
	TransactionCreated  TransactionStatus = "CREATED"
	TransactionPaid     TransactionStatus = "PAID"
	TransactionCanceled TransactionStatus = "CANCELED"
	TransactionFailed   TransactionStatus = "FAILED"
)

// Terminal reports whether a transaction may never leave this status.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionPaid, TransactionCanceled, TransactionFailed:
		return true
	default:
		return false
	}
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPending   SubscriptionStatus = "pending"
)

type PaymentType string

const (
	PaymentSubscription PaymentType = "subscription"
	PaymentOnetime      PaymentType = "onetime"
)

// ServiceKind tags independent subscription windows within one product
// (separate "football" and "wrestling" channels sold through the same bot).
type ServiceKind string

const (
	ServiceFootball  ServiceKind = "football"
	ServiceWrestling ServiceKind = "wrestling"
)

func ParseServiceKind(s string) ServiceKind {
	if s == string(ServiceWrestling) {
		return ServiceWrestling
	}
	return ServiceFootball
}
