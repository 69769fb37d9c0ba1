package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/okhunjon/sportpay-bot/types"
)

const planColumns = `id, name, service, price_tiyin, duration_days, created_at`

func planFields(p *types.Plan) []any {
	return []any{&p.ID, &p.Name, &p.Service, &p.PriceTiyin, &p.DurationDays, &p.CreatedAt}
}

func (s *PostgresStore) GetPlan(id int64) (*types.Plan, error) {
	return s.getPlan(`WHERE id = $1`, id)
}

func (s *PostgresStore) GetPlanByName(name string) (*types.Plan, error) {
	return s.getPlan(`WHERE name = $1`, name)
}

func (s *PostgresStore) getPlan(where string, arg any) (*types.Plan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var p types.Plan
	err := s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans `+where, arg).Scan(planFields(&p)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListPlans(service types.ServiceKind) ([]types.Plan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+planColumns+` FROM plans WHERE service = $1 ORDER BY price_tiyin`, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []types.Plan
	for rows.Next() {
		var p types.Plan
		if err := rows.Scan(planFields(&p)...); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
