//go:build !integration

package api_test

import (
	"context"
	"time"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/usecase"
)

type mockPaymentUC struct {
	CreateIntentFunc       func(ctx context.Context, in usecase.CreateIntentInput) (*usecase.CreateIntentOutput, error)
	HandleWebhookFunc      func(ctx context.Context, rail string, payload []byte, sig string) (*usecase.WebhookResult, error)
	SubmitCryptoFunc       func(ctx context.Context, userID int64, intentID, txHash string) (*model.PaymentIntent, error)
	RequestMobileMoneyFunc func(ctx context.Context, userID int64, intentID, phone string) (*model.PaymentIntent, error)
	ApproveManualFunc      func(ctx context.Context, adminID int64, intentID string) (*usecase.WebhookResult, error)
	RejectManualFunc       func(ctx context.Context, adminID int64, intentID, reason string) (*model.PaymentIntent, error)
	GetIntentFunc          func(ctx context.Context, userID int64, intentID string) (*model.PaymentIntent, error)
	ListAwaitingReviewFunc func(ctx context.Context, limit int) ([]*model.PaymentIntent, error)
}

var _ usecase.PaymentUseCase = (*mockPaymentUC)(nil)

func (m *mockPaymentUC) CreateIntent(ctx context.Context, in usecase.CreateIntentInput) (*usecase.CreateIntentOutput, error) {
	return m.CreateIntentFunc(ctx, in)
}
func (m *mockPaymentUC) HandleWebhook(ctx context.Context, rail string, payload []byte, sig string) (*usecase.WebhookResult, error) {
	return m.HandleWebhookFunc(ctx, rail, payload, sig)
}
func (m *mockPaymentUC) SubmitCrypto(ctx context.Context, userID int64, intentID, txHash string) (*model.PaymentIntent, error) {
	return m.SubmitCryptoFunc(ctx, userID, intentID, txHash)
}
func (m *mockPaymentUC) RequestMobileMoney(ctx context.Context, userID int64, intentID, phone string) (*model.PaymentIntent, error) {
	return m.RequestMobileMoneyFunc(ctx, userID, intentID, phone)
}
func (m *mockPaymentUC) ApproveManual(ctx context.Context, adminID int64, intentID string) (*usecase.WebhookResult, error) {
	return m.ApproveManualFunc(ctx, adminID, intentID)
}
func (m *mockPaymentUC) RejectManual(ctx context.Context, adminID int64, intentID, reason string) (*model.PaymentIntent, error) {
	return m.RejectManualFunc(ctx, adminID, intentID, reason)
}
func (m *mockPaymentUC) GetIntent(ctx context.Context, userID int64, intentID string) (*model.PaymentIntent, error) {
	return m.GetIntentFunc(ctx, userID, intentID)
}
func (m *mockPaymentUC) ListAwaitingReview(ctx context.Context, limit int) ([]*model.PaymentIntent, error) {
	return m.ListAwaitingReviewFunc(ctx, limit)
}
func (m *mockPaymentUC) ExpireStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	return 0, nil
}

type mockAccessUC struct {
	roles     map[int64][]string
	resources map[string]*model.GatedResource
}

var _ usecase.AccessUseCase = (*mockAccessUC)(nil)

func (m *mockAccessUC) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	r := m.roles[userID]
	if r == nil {
		r = []string{}
	}
	return r, nil
}

func (m *mockAccessUC) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	for _, r := range m.roles[userID] {
		if r == model.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccessUC) View(ctx context.Context, userID int64, id string) (*model.GatedResource, error) {
	res, ok := m.resources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !model.CanAccess(m.roles[userID], res) {
		return nil, domain.ErrForbidden
	}
	return res, nil
}

func (m *mockAccessUC) ListVisible(ctx context.Context, userID int64) ([]*model.GatedResource, error) {
	var out []*model.GatedResource
	for _, res := range m.resources {
		if model.CanAccess(m.roles[userID], res) {
			out = append(out, res)
		}
	}
	return out, nil
}

type mockEntitlementUC struct {
	usecase.EntitlementUseCase
	ListRequestsFunc func(ctx context.Context, userID int64) ([]*model.PendingRoleRequest, error)
}

func (m *mockEntitlementUC) ListRequests(ctx context.Context, userID int64) ([]*model.PendingRoleRequest, error) {
	return m.ListRequestsFunc(ctx, userID)
}

type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	keys      []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.AllowFunc(ctx, key, limit, window)
}
