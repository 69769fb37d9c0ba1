package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/okhunjon/sportpay-bot/types"
)

const cardColumns = `id, user_id, provider, token, masked_number, verified, verified_at, created_at`

func cardFields(c *types.Card) []any {
	return []any{&c.ID, &c.UserID, &c.Provider, &c.Token, &c.MaskedNumber, &c.Verified, &c.VerifiedAt, &c.CreatedAt}
}

func (s *PostgresStore) Store(card types.Card) (*types.Card, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.pool.QueryRow(ctx, `
INSERT INTO cards (user_id, provider, token, masked_number, verified, verified_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (masked_number) DO UPDATE SET
  token = EXCLUDED.token,
  verified = EXCLUDED.verified,
  verified_at = EXCLUDED.verified_at
RETURNING `+cardColumns+`
`, card.UserID, card.Provider, card.Token, card.MaskedNumber, card.Verified, card.VerifiedAt).Scan(cardFields(&card)...)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *PostgresStore) Find(userID int64, provider types.Provider) (*types.Card, error) {
	return s.getCard(`WHERE user_id = $1 AND provider = $2`, userID, provider)
}

func (s *PostgresStore) FindAny(userID int64) (*types.Card, error) {
	return s.getCard(`WHERE user_id = $1 AND verified ORDER BY created_at DESC LIMIT 1`, userID)
}

func (s *PostgresStore) FindByMasked(masked string) (*types.Card, error) {
	return s.getCard(`WHERE masked_number = $1`, masked)
}

func (s *PostgresStore) getCard(tail string, args ...any) (*types.Card, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var c types.Card
	err := s.pool.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards `+tail, args...).Scan(cardFields(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) Delete(userID int64, provider types.Provider) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `DELETE FROM cards WHERE user_id = $1 AND provider = $2`, userID, provider)
	return err
}
