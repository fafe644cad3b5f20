package model

import "time"

type RequestStatus string

const (
	RequestStatusPending RequestStatus = "pending"
	RequestStatusPaid    RequestStatus = "paid"
)

// PendingRoleRequest is the durable record of a user's entitlement to a program.
// At most one row exists per (UserID, Program).
type PendingRoleRequest struct {
	UserID    int64
	Program   string
	Status    RequestStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequestKey is the unique key of a PendingRoleRequest.
type RequestKey struct {
	UserID  int64
	Program string
}
