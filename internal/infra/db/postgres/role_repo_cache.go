package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/repository"
	"forex-academy/internal/infra/metrics"
	red "forex-academy/internal/infra/redis"
)

var _ repository.RoleRepository = (*roleRepoCacheDecorator)(nil)

// roleRepoCacheDecorator caches a user's role names under a per-user version.
// A committed grant bumps the version, so a set written by a reader that
// raced the grant lands under a key nobody reads again.
type roleRepoCacheDecorator struct {
	inner repository.RoleRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewRoleRepoCacheDecorator(inner repository.RoleRepository, cache red.RedisClient, ttl time.Duration) repository.RoleRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &roleRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func userRolesVersionKey(userID int64) string { return fmt.Sprintf("user_roles_ver:%d", userID) }

func userRolesKey(userID int64, version string) string {
	return fmt.Sprintf("user_roles:%d:%s", userID, version)
}

func (d *roleRepoCacheDecorator) EnsureRoles(ctx context.Context, tx repository.Tx, names []string) error {
	return d.inner.EnsureRoles(ctx, tx, names)
}

func (d *roleRepoCacheDecorator) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Role, error) {
	return d.inner.FindByName(ctx, tx, name)
}

func (d *roleRepoCacheDecorator) Grant(ctx context.Context, tx repository.Tx, userID int64, roleName string) (bool, error) {
	granted, err := d.inner.Grant(ctx, tx, userID, roleName)
	if err != nil || !granted {
		return granted, err
	}
	repository.AfterCommit(ctx, func(ctx context.Context) { d.bump(ctx, userID) })
	return granted, nil
}

func (d *roleRepoCacheDecorator) bump(ctx context.Context, userID int64) {
	if _, err := d.cache.Incr(ctx, userRolesVersionKey(userID)); err == nil {
		return
	}
	metrics.IncCacheRequest("user_roles", "error")
	// Without a new version the best we can do is drop the current entry.
	if ver, err := d.version(ctx, userID); err == nil {
		_ = d.cache.Del(ctx, userRolesKey(userID, ver))
	}
}

func (d *roleRepoCacheDecorator) version(ctx context.Context, userID int64) (string, error) {
	ver, err := d.cache.Get(ctx, userRolesVersionKey(userID))
	if errors.Is(err, red.Nil) {
		return "0", nil
	}
	return ver, err
}

func (d *roleRepoCacheDecorator) ListUserRoles(ctx context.Context, tx repository.Tx, userID int64) ([]string, error) {
	// Reads inside a transaction must see that transaction's writes.
	if tx != nil {
		metrics.IncCacheRequest("user_roles", "bypass")
		return d.inner.ListUserRoles(ctx, tx, userID)
	}

	ver, err := d.version(ctx, userID)
	if err != nil {
		metrics.IncCacheRequest("user_roles", "error")
		return d.inner.ListUserRoles(ctx, nil, userID)
	}
	key := userRolesKey(userID, ver)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var roles []string
		if json.Unmarshal([]byte(val), &roles) == nil {
			metrics.IncCacheRequest("user_roles", "hit")
			return roles, nil
		}
	} else if !errors.Is(err, red.Nil) {
		metrics.IncCacheRequest("user_roles", "error")
	}

	metrics.IncCacheRequest("user_roles", "miss")
	roles, err := d.inner.ListUserRoles(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(roles); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return roles, nil
}
