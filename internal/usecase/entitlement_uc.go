package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/repository"
	"forex-academy/internal/infra/logging"
	"forex-academy/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase turns a confirmed payment into a held role. Resolve and
// GrantRole are separate steps: a paid request without a role is repaired by Reconcile.
type EntitlementUseCase interface {
	// RequestProgram records that the user picked a program. Never downgrades paid.
	RequestProgram(ctx context.Context, userID int64, program string) error
	// Resolve marks (userID, program) paid, creating the row if absent.
	Resolve(ctx context.Context, tx repository.Tx, userID int64, program string) (*model.PendingRoleRequest, error)
	// GrantRole gives the user roleName. Granting a held role is a no-op.
	GrantRole(ctx context.Context, userID int64, roleName string) (bool, error)
	// GrantForProgram grants the role the catalog maps program to.
	GrantForProgram(ctx context.Context, userID int64, program string) error
	// Reconcile grants roles for paid requests that still lack them.
	Reconcile(ctx context.Context, limit int) (int, error)
	ListRequests(ctx context.Context, userID int64) ([]*model.PendingRoleRequest, error)
}

type entitlementUC struct {
	requests repository.PendingRoleRequestRepository
	roles    repository.RoleRepository
	catalog  *model.Catalog
	log      *zerolog.Logger
}

func NewEntitlementUseCase(
	requests repository.PendingRoleRequestRepository,
	roles repository.RoleRepository,
	catalog *model.Catalog,
	logger *zerolog.Logger,
) *entitlementUC {
	return &entitlementUC{requests: requests, roles: roles, catalog: catalog, log: logger}
}

func (u *entitlementUC) program(name string) (model.Program, error) {
	p, ok := u.catalog.Lookup(name)
	if !ok {
		return model.Program{}, domain.ErrUnknownProgram
	}
	return p, nil
}

func (u *entitlementUC) RequestProgram(ctx context.Context, userID int64, program string) error {
	if userID <= 0 {
		return domain.ErrInvalidArgument
	}
	p, err := u.program(program)
	if err != nil {
		return err
	}
	return u.requests.InsertPending(ctx, nil, userID, p.Name)
}

func (u *entitlementUC) Resolve(ctx context.Context, tx repository.Tx, userID int64, program string) (*model.PendingRoleRequest, error) {
	defer logging.TraceDuration(u.log, "EntitlementUC.Resolve")()
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.program(program)
	if err != nil {
		return nil, err
	}
	// Runs inside the caller's transaction; the caller reports it once committed.
	return u.requests.UpsertPaid(ctx, tx, userID, p.Name)
}

func (u *entitlementUC) GrantRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	if userID <= 0 || !model.IsKnownRole(roleName) {
		return false, domain.ErrInvalidArgument
	}
	granted, err := u.roles.Grant(ctx, nil, userID, roleName)
	if err != nil {
		metrics.IncRoleGrant(roleName, "error")
		return false, fmt.Errorf("%w: %v", domain.ErrRoleGrant, err)
	}
	if granted {
		metrics.IncRoleGrant(roleName, "granted")
	} else {
		metrics.IncRoleGrant(roleName, "already_held")
	}
	return granted, nil
}

// GrantForProgram never undoes the paid state: callers log the error and move on,
// the reconciler retries.
func (u *entitlementUC) GrantForProgram(ctx context.Context, userID int64, program string) error {
	p, err := u.program(program)
	if err != nil {
		return err
	}
	granted, err := u.GrantRole(ctx, userID, p.Role)
	log := logging.With(ctx, u.log)
	if err != nil {
		log.Error().Err(err).
			Int64("user_id", userID).
			Str("program", p.Name).
			Str("role", p.Role).
			Msg("role grant failed; reconciler will retry")
		return err
	}
	log.Info().
		Int64("user_id", userID).
		Str("role", p.Role).
		Bool("newly_granted", granted).
		Msg("role granted")
	return nil
}

func (u *entitlementUC) Reconcile(ctx context.Context, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "EntitlementUC.Reconcile")()
	programRoles := make(map[string]string)
	for _, p := range u.catalog.List() {
		programRoles[p.Name] = p.Role
	}
	pending, err := u.requests.ListPaidWithoutRole(ctx, nil, programRoles, limit)
	if err != nil {
		return 0, err
	}

	granted := 0
	var firstErr error
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return granted, err
		}
		if err := u.GrantForProgram(ctx, req.UserID, req.Program); err != nil {
			if firstErr == nil && !errors.Is(err, domain.ErrUnknownProgram) {
				firstErr = err
			}
			continue
		}
		granted++
	}
	if len(pending) > 0 {
		u.log.Info().Int("candidates", len(pending)).Int("granted", granted).Msg("entitlement reconcile pass")
	}
	return granted, firstErr
}

func (u *entitlementUC) ListRequests(ctx context.Context, userID int64) ([]*model.PendingRoleRequest, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.requests.ListByUser(ctx, nil, userID)
}
