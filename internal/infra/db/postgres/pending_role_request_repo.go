package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/repository"
)

var _ repository.PendingRoleRequestRepository = (*pendingRoleRequestRepo)(nil)

type pendingRoleRequestRepo struct{ pool *pgxpool.Pool }

func NewPendingRoleRequestRepo(pool *pgxpool.Pool) *pendingRoleRequestRepo {
	return &pendingRoleRequestRepo{pool: pool}
}

const requestColumns = `user_id, program, status, created_at, updated_at`

func scanRequest(row pgx.Row) (*model.PendingRoleRequest, error) {
	r := &model.PendingRoleRequest{}
	var status string
	if err := row.Scan(&r.UserID, &r.Program, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	r.Status = model.RequestStatus(status)
	return r, nil
}

// UpsertPaid relies on the (user_id, program) unique key, so concurrent
// confirmations for the same pair converge on one paid row.
func (r *pendingRoleRequestRepo) UpsertPaid(ctx context.Context, tx repository.Tx, userID int64, program string) (*model.PendingRoleRequest, error) {
	const q = `
INSERT INTO pending_role_requests (user_id, program, status, created_at, updated_at)
VALUES ($1, $2, 'paid', NOW(), NOW())
ON CONFLICT (user_id, program) DO UPDATE SET
  status='paid',
  updated_at=CASE WHEN pending_role_requests.status='paid' THEN pending_role_requests.updated_at ELSE NOW() END
RETURNING ` + requestColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, program)
	if err != nil {
		return nil, err
	}
	return scanRequest(row)
}

func (r *pendingRoleRequestRepo) InsertPending(ctx context.Context, tx repository.Tx, userID int64, program string) error {
	const q = `
INSERT INTO pending_role_requests (user_id, program, status, created_at, updated_at)
VALUES ($1, $2, 'pending', NOW(), NOW())
ON CONFLICT (user_id, program) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, userID, program)
	return mapErr(err)
}

func (r *pendingRoleRequestRepo) Find(ctx context.Context, tx repository.Tx, userID int64, program string) (*model.PendingRoleRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM pending_role_requests WHERE user_id=$1 AND program=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, program)
	if err != nil {
		return nil, err
	}
	return scanRequest(row)
}

func (r *pendingRoleRequestRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.PendingRoleRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM pending_role_requests WHERE user_id=$1 ORDER BY program;`
	return r.list(ctx, tx, q, userID)
}

func (r *pendingRoleRequestRepo) ListPaidWithoutRole(ctx context.Context, tx repository.Tx, programRoles map[string]string, limit int) ([]*model.PendingRoleRequest, error) {
	if len(programRoles) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}
	programs := make([]string, 0, len(programRoles))
	for p := range programRoles {
		programs = append(programs, p)
	}
	sort.Strings(programs)
	roles := make([]string, len(programs))
	for i, p := range programs {
		roles[i] = programRoles[p]
	}

	const q = `
SELECT p.user_id, p.program, p.status, p.created_at, p.updated_at
  FROM pending_role_requests p
  JOIN unnest($1::text[], $2::text[]) AS m(program, role_name) ON m.program = p.program
  JOIN roles r ON r.name = m.role_name
 WHERE p.status = 'paid'
   AND NOT EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = p.user_id AND ur.role_id = r.id)
 ORDER BY p.updated_at ASC
 LIMIT $3;`
	return r.list(ctx, tx, q, programs, roles, limit)
}

func (r *pendingRoleRequestRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PendingRoleRequest, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PendingRoleRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
