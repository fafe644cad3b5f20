package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/repository"
	"forex-academy/internal/infra/logging"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// AccessUseCase answers "may this user see this resource" on every gated request.
// Roles are read fresh each time so a grant is visible on the next request.
type AccessUseCase interface {
	UserRoles(ctx context.Context, userID int64) ([]string, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	// View returns the resource when the user may see it, ErrForbidden otherwise.
	View(ctx context.Context, userID int64, resourceID string) (*model.GatedResource, error)
	ListVisible(ctx context.Context, userID int64) ([]*model.GatedResource, error)
}

type accessUC struct {
	roles     repository.RoleRepository
	resources repository.GatedResourceRepository
	log       *zerolog.Logger
}

func NewAccessUseCase(roles repository.RoleRepository, resources repository.GatedResourceRepository, logger *zerolog.Logger) *accessUC {
	return &accessUC{roles: roles, resources: resources, log: logger}
}

func (u *accessUC) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	return u.roles.ListUserRoles(ctx, nil, userID)
}

func (u *accessUC) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	roles, err := u.UserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == model.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (u *accessUC) View(ctx context.Context, userID int64, resourceID string) (*model.GatedResource, error) {
	res, err := u.resources.FindByID(ctx, nil, resourceID)
	if err != nil {
		return nil, err
	}
	roles, err := u.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !model.CanAccess(roles, res) {
		logging.With(ctx, u.log).Debug().Str("resource_id", resourceID).Strs("roles", roles).Msg("access denied")
		return nil, domain.ErrForbidden
	}
	return res, nil
}

func (u *accessUC) ListVisible(ctx context.Context, userID int64) ([]*model.GatedResource, error) {
	roles, err := u.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := u.resources.ListAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*model.GatedResource, 0, len(all))
	for _, r := range all {
		if model.CanAccess(roles, r) {
			out = append(out, r)
		}
	}
	return out, nil
}
