package repository

import (
	"context"

	"forex-academy/internal/domain/model"
)

// PendingRoleRequestRepository stores the durable entitlement record.
// Writes go through the unique (user_id, program) key, never update-only.
type PendingRoleRequestRepository interface {
	// UpsertPaid creates the row as paid, or flips an existing row to paid.
	UpsertPaid(ctx context.Context, tx Tx, userID int64, program string) (*model.PendingRoleRequest, error)
	// InsertPending creates a pending row unless one already exists. Never downgrades paid.
	InsertPending(ctx context.Context, tx Tx, userID int64, program string) error
	Find(ctx context.Context, tx Tx, userID int64, program string) (*model.PendingRoleRequest, error)
	ListByUser(ctx context.Context, tx Tx, userID int64) ([]*model.PendingRoleRequest, error)
	// ListPaidWithoutRole returns paid rows whose program role is not yet held.
	// programRoles maps program name to role name.
	ListPaidWithoutRole(ctx context.Context, tx Tx, programRoles map[string]string, limit int) ([]*model.PendingRoleRequest, error)
}
