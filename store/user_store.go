package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/okhunjon/sportpay-bot/types"
)

func (s *PostgresStore) UpsertUser(telegramID int64, username string) (*types.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var u types.User
	err := s.pool.QueryRow(ctx, `
INSERT INTO users (telegram_id, username)
VALUES ($1, $2)
ON CONFLICT (telegram_id) DO UPDATE SET
  username = EXCLUDED.username,
  updated_at = NOW()
RETURNING `+userColumns+`
`, telegramID, strings.TrimSpace(username)).Scan(userFields(&u)...)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userColumns = `id, telegram_id, username, subscription_type, is_active, is_kicked_out,
  has_received_free_bonus, free_bonus_received_at, had_paid_subscription_before_bonus,
  has_sent_warning, last_warning_date, created_at, updated_at`

func userFields(u *types.User) []any {
	return []any{
		&u.ID, &u.TelegramID, &u.Username, &u.SubscriptionType, &u.IsActive, &u.IsKickedOut,
		&u.HasReceivedFreeBonus, &u.FreeBonusReceivedAt, &u.HadPaidSubscriptionBeforeBonus,
		&u.HasSentWarning, &u.LastWarningDate, &u.CreatedAt, &u.UpdatedAt,
	}
}

func (s *PostgresStore) GetUser(id int64) (*types.User, error) {
	return s.getUser(`WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByTelegramID(telegramID int64) (*types.User, error) {
	return s.getUser(`WHERE telegram_id = $1`, telegramID)
}

func (s *PostgresStore) getUser(where string, arg any) (*types.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var u types.User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, arg).Scan(userFields(&u)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) SetSubscriptionType(userID int64, st types.SubscriptionType) error {
	return s.execUser(`UPDATE users SET subscription_type = $2, updated_at = NOW() WHERE id = $1`, userID, st)
}

func (s *PostgresStore) MarkBonusGranted(userID int64, at time.Time) error {
	return s.execUser(`
UPDATE users
SET has_received_free_bonus = TRUE, free_bonus_received_at = $2, updated_at = NOW()
WHERE id = $1`, userID, at)
}

func (s *PostgresStore) MarkHadPaidSubscription(userID int64) error {
	return s.execUser(`
UPDATE users
SET had_paid_subscription_before_bonus = TRUE, updated_at = NOW()
WHERE id = $1`, userID)
}

func (s *PostgresStore) SetActive(userID int64, active, kickedOut bool) error {
	return s.execUser(`
UPDATE users
SET is_active = $2, is_kicked_out = $3, updated_at = NOW()
WHERE id = $1`, userID, active, kickedOut)
}

func (s *PostgresStore) StampWarning(userID int64, at time.Time) error {
	return s.execUser(`
UPDATE users
SET has_sent_warning = TRUE, last_warning_date = $2, updated_at = NOW()
WHERE id = $1`, userID, at)
}

func (s *PostgresStore) execUser(sql string, args ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}
