package repository

import (
	"context"
	"time"

	"cover-studio/internal/domain/model"
)

type UsageRepository interface {
	// Increment upserts the (user, class, periodStart) row additively:
	// concurrent increments for the same key accumulate, never overwrite.
	Increment(ctx context.Context, tx Tx, userID, outputClass string, periodStart time.Time, iterationDelta, assetDelta int) error
	// SumSince aggregates rows whose period started at or after `since`.
	// A zero `since` aggregates the lifetime of the key.
	SumSince(ctx context.Context, tx Tx, userID, outputClass string, since time.Time) (model.UsageTotals, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.UsagePeriodRecord, error)
}
