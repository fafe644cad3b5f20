package repository

import (
	"context"

	"forex-academy/internal/domain/model"
)

type RoleRepository interface {
	// EnsureRoles inserts the reference roles if missing.
	EnsureRoles(ctx context.Context, tx Tx, names []string) error
	FindByName(ctx context.Context, tx Tx, name string) (*model.Role, error)
	// Grant adds (userID, role); granting a held role is a no-op reporting false.
	Grant(ctx context.Context, tx Tx, userID int64, roleName string) (bool, error)
	ListUserRoles(ctx context.Context, tx Tx, userID int64) ([]string, error)
}
