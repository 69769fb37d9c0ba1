package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/okhunjon/sportpay-bot/types"
)

const txColumns = `id, provider, payment_type, trans_id, amount_tiyin, status, prepare_id,
  user_id, plan_id, service, performed_at, canceled_at, reason, created_at`

func txFields(t *types.Transaction) []any {
	return []any{
		&t.ID, &t.Provider, &t.PaymentType, &t.TransID, &t.AmountTiyin, &t.Status, &t.PrepareID,
		&t.UserID, &t.PlanID, &t.Service, &t.PerformedAt, &t.CanceledAt, &t.Reason, &t.CreatedAt,
	}
}

func (s *PostgresStore) FindByTransID(transID string) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var t types.Transaction
	err := s.pool.QueryRow(ctx, `
SELECT `+txColumns+` FROM transactions WHERE trans_id = $1
`, transID).Scan(txFields(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) CreatePending(tx types.Transaction) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `
INSERT INTO transactions
  (provider, payment_type, trans_id, amount_tiyin, status, prepare_id, user_id, plan_id, service)
VALUES ($1, $2, $3, $4, 'PENDING', $5, $6, $7, $8)
ON CONFLICT (trans_id) DO NOTHING
`, tx.Provider, tx.PaymentType, tx.TransID, tx.AmountTiyin, tx.PrepareID, tx.UserID, tx.PlanID, tx.Service)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) FindPrepared(transID string, prepareID int64) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var t types.Transaction
	err := s.pool.QueryRow(ctx, `
SELECT `+txColumns+`
FROM transactions
WHERE trans_id = $1 AND prepare_id = $2
`, transID, prepareID).Scan(txFields(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) HasPaidPrepare(prepareID, planID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var ok bool
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS(
  SELECT 1 FROM transactions
  WHERE prepare_id = $1 AND plan_id = $2 AND status = 'PAID'
)
`, prepareID, planID).Scan(&ok)
	return ok, err
}

// The status guard doubles as the idempotency barrier: a terminal row never
// matches, so replays change nothing.
func (s *PostgresStore) MarkPaid(transID string, at time.Time) (bool, error) {
	return s.transition(`
UPDATE transactions
SET status = 'PAID', performed_at = $2
WHERE trans_id = $1 AND status = 'PENDING'
`, transID, at)
}

func (s *PostgresStore) MarkFailed(transID string, reason int) (bool, error) {
	return s.transition(`
UPDATE transactions
SET status = 'FAILED', reason = $2
WHERE trans_id = $1 AND status = 'PENDING'
`, transID, reason)
}

func (s *PostgresStore) MarkCanceled(transID string, at time.Time) (bool, error) {
	return s.transition(`
UPDATE transactions
SET status = 'CANCELED', canceled_at = $2
WHERE trans_id = $1 AND status IN ('PENDING', 'CREATED')
`, transID, at)
}

func (s *PostgresStore) transition(sql string, args ...any) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RecordCharge(tx types.Transaction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO transactions
  (provider, payment_type, trans_id, amount_tiyin, status, user_id, plan_id, service, performed_at)
VALUES ($1, $2, $3, $4, 'PAID', $5, $6, $7, NOW())
ON CONFLICT (trans_id) DO NOTHING
`, tx.Provider, tx.PaymentType, tx.TransID, tx.AmountTiyin, tx.UserID, tx.PlanID, tx.Service)
	return err
}
