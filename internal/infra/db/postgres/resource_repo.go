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

var _ repository.GatedResourceRepository = (*resourceRepo)(nil)

type resourceRepo struct{ pool *pgxpool.Pool }

func NewResourceRepo(pool *pgxpool.Pool) *resourceRepo {
	return &resourceRepo{pool: pool}
}

func scanResource(row pgx.Row) (*model.GatedResource, error) {
	g := &model.GatedResource{}
	if err := row.Scan(&g.ID, &g.Title, &g.Kind, &g.RoleAccess); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return g, nil
}

func (r *resourceRepo) Save(ctx context.Context, tx repository.Tx, g *model.GatedResource) error {
	const q = `
INSERT INTO gated_resources (id, title, kind, role_access)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET title=$2, kind=$3, role_access=$4;`
	access := g.RoleAccess
	if access == nil {
		access = []string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q, g.ID, g.Title, g.Kind, access)
	return mapErr(err)
}

func (r *resourceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GatedResource, error) {
	const q = `SELECT id, title, kind, role_access FROM gated_resources WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanResource(row)
}

func (r *resourceRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.GatedResource, error) {
	const q = `SELECT id, title, kind, role_access FROM gated_resources ORDER BY id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.GatedResource
	for rows.Next() {
		g, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
