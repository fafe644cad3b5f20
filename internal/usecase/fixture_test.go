//go:build !integration

package usecase_test

import (
	"bytes"

	"github.com/rs/zerolog"

	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/usecase"
)

type fixture struct {
	intents  *MockIntentRepo
	requests *MockRequestRepo
	roles    *MockRoleRepo
	notifier *MockNotifier
	tm       *MockTxManager
	logs     *bytes.Buffer

	ent usecase.EntitlementUseCase
	pay usecase.PaymentUseCase
}

func newFixture(rails ...adapter.PaymentRail) *fixture {
	f := &fixture{
		intents:  NewMockIntentRepo(),
		roles:    NewMockRoleRepo(),
		notifier: &MockNotifier{},
		tm:       NewMockTxManager(),
		logs:     &bytes.Buffer{},
	}
	f.requests = NewMockRequestRepo(f.roles)
	reg := MockRegistry{}
	for _, r := range rails {
		reg[r.Name()] = r
	}
	l := zerolog.New(zerolog.SyncWriter(f.logs))
	logger := &l
	f.ent = usecase.NewEntitlementUseCase(f.requests, f.roles, testCatalog(), logger)
	f.pay = usecase.NewPaymentUseCase(f.intents, f.tm, reg, f.ent, testCatalog(), f.notifier, nil, "usd", logger)
	return f
}
