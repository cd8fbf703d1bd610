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

var _ repository.AssetRepository = (*AssetRepo)(nil)

type AssetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

const assetColumns = `
id, subject_id, user_id, output_class, style, generation_order, version,
parent_asset_id, is_selected, storage_ref, url, secure_url, bytes, width, height,
format, created_at`

func (r *AssetRepo) Save(ctx context.Context, tx repository.Tx, a *model.Asset) error {
	const q = `
INSERT INTO assets (
  id, subject_id, user_id, output_class, style, generation_order, version,
  parent_asset_id, is_selected, storage_ref, url, secure_url, bytes, width, height,
  format, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  is_selected = EXCLUDED.is_selected,
  storage_ref = EXCLUDED.storage_ref,
  url = EXCLUDED.url,
  secure_url = EXCLUDED.secure_url,
  bytes = EXCLUDED.bytes,
  width = EXCLUDED.width,
  height = EXCLUDED.height,
  format = EXCLUDED.format;`

	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.SubjectID, a.UserID, a.OutputClass, a.Style, a.GenerationOrder,
		a.Version, a.ParentAssetID, a.IsSelected, a.StorageRef, a.URL, a.SecureURL,
		a.Bytes, a.Width, a.Height, a.Format, a.CreatedAt)
	return err
}

func scanAsset(row pgx.Row) (*model.Asset, error) {
	var a model.Asset
	if err := row.Scan(
		&a.ID, &a.SubjectID, &a.UserID, &a.OutputClass, &a.Style, &a.GenerationOrder,
		&a.Version, &a.ParentAssetID, &a.IsSelected, &a.StorageRef, &a.URL,
		&a.SecureURL, &a.Bytes, &a.Width, &a.Height, &a.Format, &a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &a, nil
}

func (r *AssetRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Asset, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+assetColumns+` FROM assets WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanAsset(row)
}

func (r *AssetRepo) ListBySubject(ctx context.Context, tx repository.Tx, subjectID, outputClass string) ([]*model.Asset, error) {
	const q = `SELECT ` + assetColumns + `
  FROM assets WHERE subject_id=$1 AND output_class=$2 ORDER BY generation_order, version;`

	rows, err := pickRows(ctx, r.pool, tx, q, subjectID, outputClass)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AssetRepo) HasSelected(ctx context.Context, tx repository.Tx, subjectID string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT EXISTS(SELECT 1 FROM assets WHERE subject_id=$1 AND is_selected);`, subjectID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AssetRepo) ClearSelection(ctx context.Context, tx repository.Tx, subjectID string) error {
	_, err := execSQL(ctx, r.pool, tx,
		`UPDATE assets SET is_selected=FALSE WHERE subject_id=$1 AND is_selected;`, subjectID)
	return err
}

func (r *AssetRepo) SetSelected(ctx context.Context, tx repository.Tx, assetID string) error {
	cmd, err := execSQL(ctx, r.pool, tx,
		`UPDATE assets SET is_selected=TRUE WHERE id=$1;`, assetID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AssetRepo) FindLatestBySubject(ctx context.Context, tx repository.Tx, subjectID string) (*model.Asset, error) {
	// ULIDs sort by creation time, so id is a stable tiebreaker.
	const q = `SELECT ` + assetColumns + `
  FROM assets WHERE subject_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1;`

	row, err := pickRow(ctx, r.pool, tx, q, subjectID)
	if err != nil {
		return nil, err
	}
	return scanAsset(row)
}

func (r *AssetRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	cmd, err := execSQL(ctx, r.pool, tx, `DELETE FROM assets WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
