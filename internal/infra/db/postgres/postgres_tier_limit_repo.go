package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/repository"
)

var _ repository.TierLimitRepository = (*TierLimitRepo)(nil)

type TierLimitRepo struct {
	pool *pgxpool.Pool
}

func NewTierLimitRepo(pool *pgxpool.Pool) *TierLimitRepo {
	return &TierLimitRepo{pool: pool}
}

func (r *TierLimitRepo) FindByTierAndClass(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier, outputClass string) (*model.TierLimit, error) {
	const q = `
SELECT tier, output_class, max_iterations, is_unlimited, resets_monthly
  FROM tier_limits WHERE tier=$1 AND output_class=$2;`

	row, err := pickRow(ctx, r.pool, tx, q, string(tier), outputClass)
	if err != nil {
		return nil, err
	}
	var t model.TierLimit
	var tierStr string
	if err := row.Scan(&tierStr, &t.OutputClass, &t.MaxIterations, &t.IsUnlimited, &t.ResetsMonthly); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	t.Tier = model.SubscriptionTier(tierStr)
	return &t, nil
}

func (r *TierLimitRepo) ListForTier(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier) ([]*model.TierLimit, error) {
	const q = `
SELECT tier, output_class, max_iterations, is_unlimited, resets_monthly
  FROM tier_limits WHERE tier=$1 ORDER BY output_class;`

	rows, err := pickRows(ctx, r.pool, tx, q, string(tier))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TierLimit
	for rows.Next() {
		var t model.TierLimit
		var tierStr string
		if err := rows.Scan(&tierStr, &t.OutputClass, &t.MaxIterations, &t.IsUnlimited, &t.ResetsMonthly); err != nil {
			return nil, err
		}
		t.Tier = model.SubscriptionTier(tierStr)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *TierLimitRepo) Save(ctx context.Context, tx repository.Tx, limit *model.TierLimit) error {
	const q = `
INSERT INTO tier_limits (tier, output_class, max_iterations, is_unlimited, resets_monthly)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (tier, output_class) DO UPDATE SET
  max_iterations = EXCLUDED.max_iterations,
  is_unlimited = EXCLUDED.is_unlimited,
  resets_monthly = EXCLUDED.resets_monthly;`

	_, err := execSQL(ctx, r.pool, tx, q,
		string(limit.Tier), limit.OutputClass, limit.MaxIterations, limit.IsUnlimited, limit.ResetsMonthly)
	return err
}
