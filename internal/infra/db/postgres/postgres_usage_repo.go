package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*UsageRepo)(nil)

// UsageRepo is the durable usage ledger. Rows are keyed by
// (user_id, output_class, period_start) and only ever grow.
type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

func (r *UsageRepo) Increment(ctx context.Context, tx repository.Tx, userID, outputClass string, periodStart time.Time, iterationDelta, assetDelta int) error {
	// Additive ON CONFLICT so concurrent increments accumulate rather
	// than overwrite each other.
	const q = `
INSERT INTO usage_periods (user_id, output_class, period_start, iterations_used, assets_generated, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (user_id, output_class, period_start) DO UPDATE SET
  iterations_used = usage_periods.iterations_used + EXCLUDED.iterations_used,
  assets_generated = usage_periods.assets_generated + EXCLUDED.assets_generated,
  updated_at = NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, userID, outputClass, periodStart, iterationDelta, assetDelta)
	return err
}

func (r *UsageRepo) SumSince(ctx context.Context, tx repository.Tx, userID, outputClass string, since time.Time) (model.UsageTotals, error) {
	const q = `
SELECT COALESCE(SUM(iterations_used), 0), COALESCE(SUM(assets_generated), 0)
  FROM usage_periods
 WHERE user_id=$1 AND output_class=$2 AND period_start >= $3;`

	row, err := pickRow(ctx, r.pool, tx, q, userID, outputClass, since)
	if err != nil {
		return model.UsageTotals{}, err
	}
	var t model.UsageTotals
	if err := row.Scan(&t.IterationsUsed, &t.AssetsGenerated); err != nil {
		return model.UsageTotals{}, err
	}
	return t, nil
}

func (r *UsageRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.UsagePeriodRecord, error) {
	const q = `
SELECT user_id, output_class, period_start, iterations_used, assets_generated, updated_at
  FROM usage_periods WHERE user_id=$1 ORDER BY period_start DESC, output_class;`

	rows, err := pickRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.UsagePeriodRecord
	for rows.Next() {
		var rec model.UsagePeriodRecord
		if err := rows.Scan(&rec.UserID, &rec.OutputClass, &rec.PeriodStart,
			&rec.IterationsUsed, &rec.AssetsGenerated, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
