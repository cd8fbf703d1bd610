package repository

import (
	"context"
	"time"

	"cover-studio/internal/domain/model"
)

type AdminGrantRepository interface {
	// FindActiveByUser returns the newest grant active at `now`, or
	// ErrNotFound when none applies.
	FindActiveByUser(ctx context.Context, tx Tx, userID string, now time.Time) (*model.AdminGrant, error)
	Save(ctx context.Context, tx Tx, grant *model.AdminGrant) error
}
