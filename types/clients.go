package types

import "context"

// ChargeClient is a provider-specific stored-token payment client. A
// timeout or transport error is a failed charge; success requires an
// explicit positive confirmation from the provider.
type ChargeClient interface {
	Charge(ctx context.Context, token string, amountTiyin int64, correlationID string) (ChargeResult, error)
	// RemoveToken revokes a stored token on the provider side.
	RemoveToken(ctx context.Context, token string) error
}

// Notifier delivers a message to a user's chat. Delivery failures are
// logged by implementations and never propagated to payment flows.
type Notifier interface {
	Send(ctx context.Context, telegramID int64, text string)
}
