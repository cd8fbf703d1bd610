//go:build !integration

package postgres

import (
	"context"
	"time"

	"cover-studio/internal/domain/model"
	"cover-studio/internal/domain/ports/repository"
	red "cover-studio/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerTierLimitRepo mocks the database repository that the tier
// limit decorator wraps.
type mockInnerTierLimitRepo struct {
	FindByTierAndClassFunc func(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier, outputClass string) (*model.TierLimit, error)
	ListForTierFunc        func(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier) ([]*model.TierLimit, error)
	SaveFunc               func(ctx context.Context, tx repository.Tx, limit *model.TierLimit) error
}

func (m *mockInnerTierLimitRepo) FindByTierAndClass(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier, outputClass string) (*model.TierLimit, error) {
	return m.FindByTierAndClassFunc(ctx, tx, tier, outputClass)
}
func (m *mockInnerTierLimitRepo) ListForTier(ctx context.Context, tx repository.Tx, tier model.SubscriptionTier) ([]*model.TierLimit, error) {
	return m.ListForTierFunc(ctx, tx, tier)
}
func (m *mockInnerTierLimitRepo) Save(ctx context.Context, tx repository.Tx, limit *model.TierLimit) error {
	return m.SaveFunc(ctx, tx, limit)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	SetNXFunc  func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	EvalFunc   func(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return m.EvalFunc(ctx, script, keys, args...)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
