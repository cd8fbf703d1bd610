package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/repository"
	"cover-studio/internal/infra/metrics"
	red "cover-studio/internal/infra/redis"
)

var _ repository.TierLimitRepository = (*tierLimitRepoCacheDecorator)(nil)

// tierLimitRepoCacheDecorator caches tier limit rows in redis. Limits
// change rarely (admin edits, deploys) and are read on every admission
// check, so a TTL cache in front of the table pays for itself. The TTL is
// owned by configuration, not by the decorator.
type tierLimitRepoCacheDecorator struct {
	inner repository.TierLimitRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewTierLimitRepoCacheDecorator(inner repository.TierLimitRepository, cache red.RedisClient, ttl time.Duration) repository.TierLimitRepository {
	return &tierLimitRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func tierLimitKey(tier model.SubscriptionTier, outputClass string) string {
	return fmt.Sprintf("tier_limit:%s:%s", tier, outputClass)
}

func tierListKey(tier model.SubscriptionTier) string {
	return fmt.Sprintf("tier_limits:%s", tier)
}

func (d *tierLimitRepoCacheDecorator) FindByTierAndClass(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier, outputClass string) (*model.TierLimit, error) {
	key := tierLimitKey(tier, outputClass)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var limit model.TierLimit
		if json.Unmarshal([]byte(val), &limit) == nil {
			metrics.IncCacheRequest("tier_limit", "hit")
			return &limit, nil
		}
	}

	metrics.IncCacheRequest("tier_limit", "miss")
	limit, err := d.inner.FindByTierAndClass(ctx, tx, tier, outputClass)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		bytes, _ := json.Marshal(limit)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return limit, nil
}

func (d *tierLimitRepoCacheDecorator) ListForTier(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier) ([]*model.TierLimit, error) {
	key := tierListKey(tier)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var limits []*model.TierLimit
		if json.Unmarshal([]byte(val), &limits) == nil {
			metrics.IncCacheRequest("tier_limit_list", "hit")
			return limits, nil
		}
	}

	metrics.IncCacheRequest("tier_limit_list", "miss")
	limits, err := d.inner.ListForTier(ctx, tx, tier)
	if err != nil {
		return nil, err
	}
	if len(limits) > 0 {
		bytes, _ := json.Marshal(limits)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return limits, nil
}

// Writes invalidate both the single-row key and the per-tier list.
func (d *tierLimitRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, limit *model.TierLimit) error {
	_ = d.cache.Del(ctx, tierLimitKey(limit.Tier, limit.OutputClass), tierListKey(limit.Tier))
	return d.inner.Save(ctx, tx, limit)
}
