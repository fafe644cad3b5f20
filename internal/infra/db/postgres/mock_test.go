//go:build !integration

package postgres

import (
	"context"
	"time"

	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/repository"
	red "forex-academy/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerRoleRepo mocks the database repository that the role decorator wraps.
type mockInnerRoleRepo struct {
	EnsureRolesFunc   func(ctx context.Context, tx repository.Tx, names []string) error
	FindByNameFunc    func(ctx context.Context, tx repository.Tx, name string) (*model.Role, error)
	GrantFunc         func(ctx context.Context, tx repository.Tx, userID int64, roleName string) (bool, error)
	ListUserRolesFunc func(ctx context.Context, tx repository.Tx, userID int64) ([]string, error)
}

func (m *mockInnerRoleRepo) EnsureRoles(ctx context.Context, tx repository.Tx, names []string) error {
	return m.EnsureRolesFunc(ctx, tx, names)
}
func (m *mockInnerRoleRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Role, error) {
	return m.FindByNameFunc(ctx, tx, name)
}
func (m *mockInnerRoleRepo) Grant(ctx context.Context, tx repository.Tx, userID int64, roleName string) (bool, error) {
	return m.GrantFunc(ctx, tx, userID, roleName)
}
func (m *mockInnerRoleRepo) ListUserRoles(ctx context.Context, tx repository.Tx, userID int64) ([]string, error) {
	return m.ListUserRolesFunc(ctx, tx, userID)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
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
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
