package repository

import (
	"context"

	"cover-studio/internal/domain/model"
)

type AssetRepository interface {
	Save(ctx context.Context, tx Tx, asset *model.Asset) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Asset, error)
	ListBySubject(ctx context.Context, tx Tx, subjectID, outputClass string) ([]*model.Asset, error)
	// HasSelected reports whether any asset of the subject is currently
	// selected, across all output classes.
	HasSelected(ctx context.Context, tx Tx, subjectID string) (bool, error)
	// ClearSelection drops the selected flag for every asset of the subject.
	ClearSelection(ctx context.Context, tx Tx, subjectID string) error
	SetSelected(ctx context.Context, tx Tx, assetID string) error
	// FindLatestBySubject returns the most recently created asset of the
	// subject, or ErrNotFound. Used for auto-promotion after a delete.
	FindLatestBySubject(ctx context.Context, tx Tx, subjectID string) (*model.Asset, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
