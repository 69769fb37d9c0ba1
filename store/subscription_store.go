package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/okhunjon/sportpay-bot/types"
)

const subColumns = `id, user_id, plan_id, service, subscription_type, start_date, end_date,
  is_active, status, auto_renew, paid_by, subscribed_by, has_received_bonus,
  last_attempted_at, attempt_count, created_at, updated_at`

func subFields(sub *types.Subscription) []any {
	return []any{
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Service, &sub.SubscriptionType,
		&sub.StartDate, &sub.EndDate, &sub.IsActive, &sub.Status, &sub.AutoRenew,
		&sub.PaidBy, &sub.SubscribedBy, &sub.HasReceivedBonus,
		&sub.LastAttemptedAt, &sub.AttemptCount, &sub.CreatedAt, &sub.UpdatedAt,
	}
}

func (s *PostgresStore) GetActive(userID int64, service types.ServiceKind) (*types.Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var sub types.Subscription
	err := s.pool.QueryRow(ctx, `
SELECT `+subColumns+`
FROM subscriptions
WHERE user_id = $1 AND service = $2 AND status = 'active'
ORDER BY end_date DESC
LIMIT 1
`, userID, service).Scan(subFields(&sub)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) Create(sub types.Subscription) (*types.Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.pool.QueryRow(ctx, `
INSERT INTO subscriptions
  (user_id, plan_id, service, subscription_type, start_date, end_date,
   is_active, status, auto_renew, paid_by, subscribed_by, has_received_bonus)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+subColumns+`
`, sub.UserID, sub.PlanID, sub.Service, sub.SubscriptionType, sub.StartDate, sub.EndDate,
		sub.IsActive, sub.Status, sub.AutoRenew, sub.PaidBy, sub.SubscribedBy, sub.HasReceivedBonus,
	).Scan(subFields(&sub)...)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// nextWindow applies the extension rule: an extension on top of a
// still-running window is additive (existing end + days), never a reset to
// now + days; anything else starts a fresh window from now.
func nextWindow(prevStart, prevEnd time.Time, prevActive bool, now time.Time, days int) (time.Time, time.Time) {
	if prevActive && prevEnd.After(now) {
		return prevStart, prevEnd.AddDate(0, 0, days)
	}
	return now, now.AddDate(0, 0, days)
}

// ActivateOrExtend locks the latest row for (user, service) regardless of
// status, so a merchant callback and the charge sweep interleaving on the
// same pair cannot lose an extension, and an expired row is revived in
// place instead of spawning an active sibling.
func (s *PostgresStore) ActivateOrExtend(sub types.Subscription, days int, now time.Time) (*types.Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		id                 int64
		prevStart, prevEnd time.Time
		prevActive         bool
	)
	err = tx.QueryRow(ctx, `
SELECT id, start_date, end_date, is_active
FROM subscriptions
WHERE user_id = $1 AND service = $2
ORDER BY end_date DESC
LIMIT 1
FOR UPDATE
`, sub.UserID, sub.Service).Scan(&id, &prevStart, &prevEnd, &prevActive)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var out types.Subscription
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `
INSERT INTO subscriptions
  (user_id, plan_id, service, subscription_type, start_date, end_date,
   is_active, status, auto_renew, paid_by, subscribed_by, has_received_bonus)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, 'active', $7, $8, $9, $10)
RETURNING `+subColumns+`
`, sub.UserID, sub.PlanID, sub.Service, sub.SubscriptionType, now, now.AddDate(0, 0, days),
			sub.AutoRenew, sub.PaidBy, sub.SubscribedBy, sub.HasReceivedBonus,
		).Scan(subFields(&out)...)
	} else {
		start, end := nextWindow(prevStart, prevEnd, prevActive, now, days)
		err = tx.QueryRow(ctx, `
UPDATE subscriptions
SET plan_id = $2,
    start_date = $3,
    end_date = $4,
    is_active = TRUE,
    status = 'active',
    paid_by = $5,
    auto_renew = auto_renew OR $6,
    subscription_type = CASE WHEN $6 THEN 'subscription' ELSE subscription_type END,
    has_received_bonus = has_received_bonus OR $7,
    updated_at = NOW()
WHERE id = $1
RETURNING `+subColumns+`
`, id, sub.PlanID, start, end, sub.PaidBy, sub.AutoRenew, sub.HasReceivedBonus,
		).Scan(subFields(&out)...)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostgresStore) UpdateWindow(id int64, start, end time.Time, status types.SubscriptionStatus, active bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
UPDATE subscriptions
SET start_date = $2, end_date = $3, status = $4, is_active = $5, updated_at = NOW()
WHERE id = $1
`, id, start, end, status, active)
	return err
}

func (s *PostgresStore) SetAutoRenew(id int64, autoRenew bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
UPDATE subscriptions SET auto_renew = $2, updated_at = NOW() WHERE id = $1
`, id, autoRenew)
	return err
}

func (s *PostgresStore) DueForAutoCharge(now, startOfToday time.Time) ([]types.DueSubscription, error) {
	return s.dueQuery(`
SELECT `+joinedColumns+`
FROM subscriptions sub
JOIN users u ON u.id = sub.user_id
JOIN plans p ON p.id = sub.plan_id
WHERE sub.end_date <= $1
  AND sub.subscription_type = 'subscription'
  AND sub.auto_renew
  AND NOT u.is_kicked_out
  AND (sub.last_attempted_at IS NULL OR sub.last_attempted_at < $2)
ORDER BY sub.end_date
`, now, startOfToday)
}

func (s *PostgresStore) WarningCandidates(now, until, startOfToday time.Time) ([]types.DueSubscription, error) {
	return s.dueQuery(`
SELECT `+joinedColumns+`
FROM subscriptions sub
JOIN users u ON u.id = sub.user_id
JOIN plans p ON p.id = sub.plan_id
WHERE sub.end_date > $1
  AND sub.end_date <= $2
  AND sub.is_active
  AND sub.subscription_type = 'onetime'
  AND (u.last_warning_date IS NULL OR u.last_warning_date < $3)
ORDER BY sub.end_date
`, now, until, startOfToday)
}

const joinedColumns = `
  sub.id, sub.user_id, sub.plan_id, sub.service, sub.subscription_type, sub.start_date, sub.end_date,
  sub.is_active, sub.status, sub.auto_renew, sub.paid_by, sub.subscribed_by, sub.has_received_bonus,
  sub.last_attempted_at, sub.attempt_count, sub.created_at, sub.updated_at,
  u.id, u.telegram_id, u.username, u.subscription_type, u.is_active, u.is_kicked_out,
  u.has_received_free_bonus, u.free_bonus_received_at, u.had_paid_subscription_before_bonus,
  u.has_sent_warning, u.last_warning_date, u.created_at, u.updated_at,
  p.id, p.name, p.service, p.price_tiyin, p.duration_days, p.created_at`

func (s *PostgresStore) dueQuery(sql string, args ...any) ([]types.DueSubscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []types.DueSubscription
	for rows.Next() {
		var d types.DueSubscription
		fields := subFields(&d.Subscription)
		fields = append(fields, userFields(&d.User)...)
		fields = append(fields, planFields(&d.Plan)...)
		if err := rows.Scan(fields...); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// StampAttempt records the attempt before any charge is made so a crash
// mid-charge cannot cause an immediate retry storm.
func (s *PostgresStore) StampAttempt(id int64, at time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var count int
	err := s.pool.QueryRow(ctx, `
UPDATE subscriptions
SET last_attempted_at = $2, attempt_count = attempt_count + 1, updated_at = NOW()
WHERE id = $1
RETURNING attempt_count
`, id, at).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return count, err
}

func (s *PostgresStore) ResetAttempts(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
UPDATE subscriptions SET attempt_count = 0, updated_at = NOW() WHERE id = $1
`, id)
	return err
}

// ExpireDue only ever moves active windows to expired; reactivation happens
// through an explicit purchase, never here.
func (s *PostgresStore) ExpireDue(now time.Time) ([]types.Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
UPDATE subscriptions
SET status = 'expired', is_active = FALSE, updated_at = NOW()
WHERE end_date < $1 AND status = 'active'
RETURNING `+subColumns+`
`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []types.Subscription
	for rows.Next() {
		var sub types.Subscription
		if err := rows.Scan(subFields(&sub)...); err != nil {
			return nil, err
		}
		expired = append(expired, sub)
	}
	return expired, rows.Err()
}
