package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/repository"
)

var _ repository.AdminGrantRepository = (*AdminGrantRepo)(nil)

type AdminGrantRepo struct {
	pool *pgxpool.Pool
}

func NewAdminGrantRepo(pool *pgxpool.Pool) *AdminGrantRepo {
	return &AdminGrantRepo{pool: pool}
}

func (r *AdminGrantRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.AdminGrant, error) {
	const q = `
SELECT id, user_id, grant_type, allowance, expires_at, granted_by, created_at
  FROM admin_grants
 WHERE user_id=$1 AND (expires_at IS NULL OR expires_at > $2)
 ORDER BY created_at DESC LIMIT 1;`

	row, err := pickRow(ctx, r.pool, tx, q, userID, now)
	if err != nil {
		return nil, err
	}
	var g model.AdminGrant
	if err := row.Scan(&g.ID, &g.UserID, &g.GrantType, &g.Allowance, &g.ExpiresAt, &g.GrantedBy, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *AdminGrantRepo) Save(ctx context.Context, tx repository.Tx, g *model.AdminGrant) error {
	if g.ID == "" {
		g.ID = ulid.Make().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO admin_grants (id, user_id, grant_type, allowance, expires_at, granted_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  allowance = EXCLUDED.allowance,
  expires_at = EXCLUDED.expires_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		g.ID, g.UserID, g.GrantType, g.Allowance, g.ExpiresAt, g.GrantedBy, g.CreatedAt)
	return err
}
