package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/okhunjon/sportpay-bot/types"
)

// Vault fronts the card store with the provider-side token lifecycle.
// At most one verified card exists per (user, provider); the store layer
// enforces that with its unique keys.
type Vault struct {
	cards  types.CardStore
	charge map[types.Provider]types.ChargeClient
	engine *Engine
}

func NewVault(cards types.CardStore, charge map[types.Provider]types.ChargeClient, engine *Engine) *Vault {
	return &Vault{cards: cards, charge: charge, engine: engine}
}

// Save stores a verified token, updating in place when the provider
// re-issues a token for a card we already hold.
func (v *Vault) Save(userID int64, provider types.Provider, token, maskedNumber string) (*types.Card, error) {
	now := time.Now()
	return v.cards.Store(types.Card{
		UserID:       userID,
		Provider:     provider,
		Token:        token,
		MaskedNumber: maskedNumber,
		Verified:     true,
		VerifiedAt:   &now,
	})
}

func (v *Vault) Find(userID int64, provider types.Provider) (*types.Card, error) {
	return v.cards.Find(userID, provider)
}

// Remove revokes the provider token, deletes the card locally and runs
// the bonus-cancellation rules. A failed remote revocation does not block
// the local deletion: our bookkeeping is not held hostage by a flaky
// third party.
func (v *Vault) Remove(ctx context.Context, userID int64, provider types.Provider) error {
	card, err := v.cards.Find(userID, provider)
	if err != nil {
		return fmt.Errorf("load card: %w", err)
	}

	if client, ok := v.charge[provider]; ok {
		if err := client.RemoveToken(ctx, card.Token); err != nil {
			log.Printf("vault: revoke token via %s for user %d: %v", provider, userID, err)
		}
	}

	if err := v.cards.Delete(userID, provider); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return v.engine.HandleCardRemoved(ctx, userID, provider)
}
