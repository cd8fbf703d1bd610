package repository

import (
	"context"

	"cover-studio/internal/domain/model"
)

type TierLimitRepository interface {
	FindByTierAndClass(ctx context.Context, tx Tx, tier model.SubscriptionTier, outputClass string) (*model.TierLimit, error)
	ListForTier(ctx context.Context, tx Tx, tier model.SubscriptionTier) ([]*model.TierLimit, error)
	Save(ctx context.Context, tx Tx, limit *model.TierLimit) error
}
