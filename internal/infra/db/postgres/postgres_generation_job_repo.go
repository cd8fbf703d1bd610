package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/repository"
)

var _ repository.GenerationJobRepository = (*GenerationJobRepo)(nil)

type GenerationJobRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationJobRepo(pool *pgxpool.Pool) *GenerationJobRepo {
	return &GenerationJobRepo{pool: pool}
}

func (r *GenerationJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	errsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("marshal job errors: %w", err)
	}

	const q = `
INSERT INTO generation_jobs (
  id, subject_id, user_id, output_class, status, progress, current_variant,
  total_variants, generated_asset_ids, errors, created_at, started_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  current_variant = EXCLUDED.current_variant,
  generated_asset_ids = EXCLUDED.generated_asset_ids,
  errors = EXCLUDED.errors,
  started_at = EXCLUDED.started_at,
  completed_at = EXCLUDED.completed_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.SubjectID, job.UserID, job.OutputClass, string(job.Status),
		job.Progress, job.CurrentVariant, job.TotalVariants,
		job.GeneratedAssetIDs, errsJSON, job.CreatedAt, job.StartedAt, job.CompletedAt)
	return err
}

func (r *GenerationJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	const q = `
SELECT id, subject_id, user_id, output_class, status, progress, current_variant,
       total_variants, generated_asset_ids, errors, created_at, started_at, completed_at
  FROM generation_jobs WHERE id=$1;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var j model.GenerationJob
	var statusStr string
	var errsJSON []byte
	if err := row.Scan(
		&j.ID, &j.SubjectID, &j.UserID, &j.OutputClass, &statusStr, &j.Progress,
		&j.CurrentVariant, &j.TotalVariants, &j.GeneratedAssetIDs, &errsJSON,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.GenerationJobStatus(statusStr)
	if len(errsJSON) > 0 {
		if err := json.Unmarshal(errsJSON, &j.Errors); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &j, nil
}

func (r *GenerationJobRepo) FailStaleProcessing(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `
UPDATE generation_jobs
   SET status='failed', progress=100, completed_at=NOW()
 WHERE status='processing' AND started_at < $1;`

	cmd, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}
