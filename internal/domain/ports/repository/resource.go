package repository

import (
	"context"

	"forex-academy/internal/domain/model"
)

type GatedResourceRepository interface {
	Save(ctx context.Context, tx Tx, r *model.GatedResource) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GatedResource, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.GatedResource, error)
}
