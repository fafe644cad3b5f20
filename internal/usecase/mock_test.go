//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/domain/ports/repository"
)

// =============================
// Repositories (in-memory)
// =============================

// ---- Payment intents ----

type MockIntentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.PaymentIntent

	SaveErr     error
	FinalizeErr error

	FindByIDCalls int
}

var _ repository.PaymentIntentRepository = (*MockIntentRepo)(nil)

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{byID: map[string]*model.PaymentIntent{}}
}

func (m *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *MockIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindByIDCalls++
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockIntentRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, rail, ref string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Rail == rail && p.ProviderRef == ref && ref != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ProviderRef = ref
	return nil
}

func (m *MockIntentRepo) MarkSubmitted(ctx context.Context, tx repository.Tx, id, evidence string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.IntentStatusCreated {
		return false, nil
	}
	// Mirrors the partial unique index on crypto evidence.
	if p.Rail == adapter.RailCrypto && evidence != "" {
		for otherID, other := range m.byID {
			if otherID != id && other.Rail == adapter.RailCrypto && other.Evidence == evidence {
				return false, domain.ErrAlreadyExists
			}
		}
	}
	p.Status = model.IntentStatusSubmitted
	p.Evidence = evidence
	return true, nil
}

func (m *MockIntentRepo) RecordDecline(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status.Terminal() {
		return false, nil
	}
	p.FailureReason = reason
	return true, nil
}

func (m *MockIntentRepo) Finalize(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus, reason string, at time.Time) (bool, error) {
	if m.FinalizeErr != nil {
		return false, m.FinalizeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status.Terminal() {
		return false, nil
	}
	p.Status = status
	p.FailureReason = reason
	p.UpdatedAt = at
	if status == model.IntentStatusConfirmed {
		t := at
		p.ConfirmedAt = &t
	}
	return true, nil
}

func (m *MockIntentRepo) ListCreatedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range m.byID {
		if p.Status == model.IntentStatusCreated && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockIntentRepo) ListByStatus(ctx context.Context, tx repository.Tx, rail string, status model.IntentStatus, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range m.byID {
		if (rail == "" || p.Rail == rail) && p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockIntentRepo) get(id string) *model.PaymentIntent {
	p, _ := m.FindByID(context.Background(), nil, id)
	return p
}

// ---- Pending role requests ----

// MockRequestRepo mirrors the (user_id, program) unique key: one row per pair,
// written under one lock the way the database serializes the upsert.
type MockRequestRepo struct {
	mu    sync.Mutex
	rows  map[model.RequestKey]*model.PendingRoleRequest
	roles *MockRoleRepo

	UpsertCalls int
	UpsertErr   error
}

var _ repository.PendingRoleRequestRepository = (*MockRequestRepo)(nil)

func NewMockRequestRepo(roles *MockRoleRepo) *MockRequestRepo {
	return &MockRequestRepo{rows: map[model.RequestKey]*model.PendingRoleRequest{}, roles: roles}
}

func (m *MockRequestRepo) UpsertPaid(ctx context.Context, tx repository.Tx, userID int64, program string) (*model.PendingRoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	key := model.RequestKey{UserID: userID, Program: program}
	now := time.Now()
	row, ok := m.rows[key]
	if !ok {
		row = &model.PendingRoleRequest{UserID: userID, Program: program, CreatedAt: now}
		m.rows[key] = row
	}
	if row.Status != model.RequestStatusPaid {
		row.Status = model.RequestStatusPaid
		row.UpdatedAt = now
	}
	cp := *row
	return &cp, nil
}

func (m *MockRequestRepo) InsertPending(ctx context.Context, tx repository.Tx, userID int64, program string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.RequestKey{UserID: userID, Program: program}
	if _, ok := m.rows[key]; ok {
		return nil
	}
	now := time.Now()
	m.rows[key] = &model.PendingRoleRequest{UserID: userID, Program: program, Status: model.RequestStatusPending, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *MockRequestRepo) Find(ctx context.Context, tx repository.Tx, userID int64, program string) (*model.PendingRoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[model.RequestKey{UserID: userID, Program: program}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *MockRequestRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.PendingRoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingRoleRequest
	for k, row := range m.rows {
		if k.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Program < out[j].Program })
	return out, nil
}

func (m *MockRequestRepo) ListPaidWithoutRole(ctx context.Context, tx repository.Tx, programRoles map[string]string, limit int) ([]*model.PendingRoleRequest, error) {
	m.mu.Lock()
	var paid []*model.PendingRoleRequest
	for _, row := range m.rows {
		if row.Status == model.RequestStatusPaid {
			cp := *row
			paid = append(paid, &cp)
		}
	}
	m.mu.Unlock()

	var out []*model.PendingRoleRequest
	for _, row := range paid {
		role, ok := programRoles[row.Program]
		if !ok {
			continue
		}
		if m.roles != nil && m.roles.holds(row.UserID, role) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRequestRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ---- Roles ----

type MockRoleRepo struct {
	mu   sync.Mutex
	held map[int64]map[string]bool

	GrantErr   error
	GrantCalls int
}

var _ repository.RoleRepository = (*MockRoleRepo)(nil)

func NewMockRoleRepo() *MockRoleRepo {
	return &MockRoleRepo{held: map[int64]map[string]bool{}}
}

func (m *MockRoleRepo) EnsureRoles(ctx context.Context, tx repository.Tx, names []string) error {
	return nil
}

func (m *MockRoleRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Role, error) {
	if !model.IsKnownRole(name) {
		return nil, domain.ErrNotFound
	}
	return &model.Role{Name: name}, nil
}

func (m *MockRoleRepo) Grant(ctx context.Context, tx repository.Tx, userID int64, roleName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GrantCalls++
	if m.GrantErr != nil {
		return false, m.GrantErr
	}
	if m.held[userID] == nil {
		m.held[userID] = map[string]bool{}
	}
	if m.held[userID][roleName] {
		return false, nil
	}
	m.held[userID][roleName] = true
	return true, nil
}

func (m *MockRoleRepo) ListUserRoles(ctx context.Context, tx repository.Tx, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for r := range m.held[userID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockRoleRepo) holds(userID int64, role string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[userID][role]
}

// ---- Gated resources ----

type MockResourceRepo struct {
	mu   sync.Mutex
	byID map[string]*model.GatedResource
}

var _ repository.GatedResourceRepository = (*MockResourceRepo)(nil)

func NewMockResourceRepo(rs ...*model.GatedResource) *MockResourceRepo {
	m := &MockResourceRepo{byID: map[string]*model.GatedResource{}}
	for _, r := range rs {
		m.byID[r.ID] = r
	}
	return m
}

func (m *MockResourceRepo) Save(ctx context.Context, tx repository.Tx, r *model.GatedResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[r.ID] = r
	return nil
}

func (m *MockResourceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GatedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (m *MockResourceRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.GatedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.GatedResource, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================
// Adapters
// =============================

type MockRail struct {
	RailName               string
	CreateIntentFunc       func(ctx context.Context, req adapter.IntentRequest) (adapter.IntentResult, error)
	HandleConfirmationFunc func(ctx context.Context, in adapter.ConfirmationInput) (adapter.Confirmation, error)
	CancelIntentFunc       func(ctx context.Context, providerRef string) error
	Cancelled              []string
}

var (
	_ adapter.PaymentRail    = (*MockRail)(nil)
	_ adapter.IntentCanceler = (*MockRail)(nil)
)

func (m *MockRail) Name() string { return m.RailName }

func (m *MockRail) CreateIntent(ctx context.Context, req adapter.IntentRequest) (adapter.IntentResult, error) {
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, req)
	}
	return adapter.IntentResult{ProviderRef: "ref_" + req.IntentID, ClientSecret: "secret_" + req.IntentID}, nil
}

func (m *MockRail) HandleConfirmation(ctx context.Context, in adapter.ConfirmationInput) (adapter.Confirmation, error) {
	return m.HandleConfirmationFunc(ctx, in)
}

func (m *MockRail) CancelIntent(ctx context.Context, providerRef string) error {
	if m.CancelIntentFunc != nil {
		if err := m.CancelIntentFunc(ctx, providerRef); err != nil {
			return err
		}
	}
	m.Cancelled = append(m.Cancelled, providerRef)
	return nil
}

type MockRegistry map[string]adapter.PaymentRail

func (m MockRegistry) Get(name string) (adapter.PaymentRail, error) {
	r, ok := m[name]
	if !ok {
		return nil, domain.ErrUnknownRail
	}
	return r, nil
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []adapter.ReviewMessage
	Err  error
}

var _ adapter.ReviewNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) NotifyReview(ctx context.Context, msg adapter.ReviewMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return m.Err
}

// ---- Mock TxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set. Commit hooks
// run when fn succeeds, as after a real commit.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	hooked, runHooks := repository.WithCommitHooks(ctx)
	if err := fn(hooked, repository.NoTX); err != nil {
		return err
	}
	runHooks(ctx)
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func testCatalog() *model.Catalog {
	return model.NewCatalog([]model.Program{
		{Name: "academy", Title: "Forex Academy", Role: model.RoleAcademyStudent, PriceCents: 49700},
		{Name: "mentorship", Title: "1:1 Mentorship", Role: model.RoleMentorshipStudent, PriceCents: 149700},
		{Name: "community", Title: "Trading Community", Role: model.RoleCommunityStudent, PriceCents: 4700},
	})
}
