package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/repository"
)

var _ repository.RoleRepository = (*roleRepo)(nil)

type roleRepo struct{ pool *pgxpool.Pool }

func NewRoleRepo(pool *pgxpool.Pool) *roleRepo {
	return &roleRepo{pool: pool}
}

func (r *roleRepo) EnsureRoles(ctx context.Context, tx repository.Tx, names []string) error {
	if len(names) == 0 {
		return nil
	}
	const q = `INSERT INTO roles (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, names)
	return mapErr(err)
}

func (r *roleRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Role, error) {
	const q = `SELECT id, name FROM roles WHERE name=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, name)
	if err != nil {
		return nil, err
	}
	role := &model.Role{}
	if err := row.Scan(&role.ID, &role.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return role, nil
}

// Grant is idempotent on the (user_id, role_id) key. A zero-row insert is either
// an already-held role or an unknown role name; the latter is ErrNotFound.
func (r *roleRepo) Grant(ctx context.Context, tx repository.Tx, userID int64, roleName string) (bool, error) {
	const q = `
INSERT INTO user_roles (user_id, role_id, granted_at)
SELECT $1, id, NOW() FROM roles WHERE name=$2
ON CONFLICT (user_id, role_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, roleName)
	if err != nil {
		return false, mapErr(err)
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.FindByName(ctx, tx, roleName); err != nil {
		return false, err
	}
	return false, nil
}

func (r *roleRepo) ListUserRoles(ctx context.Context, tx repository.Tx, userID int64) ([]string, error) {
	const q = `
SELECT r.name FROM user_roles ur
  JOIN roles r ON r.id = ur.role_id
 WHERE ur.user_id=$1
 ORDER BY r.name;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
