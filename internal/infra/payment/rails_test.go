//go:build !integration

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/infra/worker"
)

func TestCryptoRail(t *testing.T) {
	rail := NewCryptoRail(map[string]string{"USDT_TRC20": "TXyz", "btc": "bc1q"})
	ctx := context.Background()

	t.Run("CreateIntent returns a reference and addresses", func(t *testing.T) {
		res, err := rail.CreateIntent(ctx, adapter.IntentRequest{IntentID: "i", Amount: 49700, Currency: "usd", UserID: 42, Program: "academy"})
		if err != nil {
			t.Fatalf("CreateIntent: %v", err)
		}
		if !strings.HasPrefix(res.ProviderRef, "cr_") || res.Instructions["reference"] != res.ProviderRef {
			t.Errorf("unexpected reference %+v", res)
		}
		if res.Instructions["address_usdt_trc20"] != "TXyz" || res.Instructions["address_btc"] != "bc1q" {
			t.Errorf("addresses missing: %v", res.Instructions)
		}
	})

	t.Run("valid hash is submitted, never confirmed", func(t *testing.T) {
		hash := "0x" + strings.Repeat("ab", 32)
		c, err := rail.HandleConfirmation(ctx, adapter.ConfirmationInput{Reference: "cr_1", Evidence: hash})
		if err != nil {
			t.Fatalf("HandleConfirmation: %v", err)
		}
		if c.Outcome != adapter.OutcomeSubmitted || c.ProviderRef != "cr_1" {
			t.Errorf("unexpected confirmation %+v", c)
		}
	})

	t.Run("malformed hash is rejected", func(t *testing.T) {
		_, err := rail.HandleConfirmation(ctx, adapter.ConfirmationInput{Reference: "cr_1", Evidence: "not-a-hash"})
		if !errors.Is(err, domain.ErrInvalidTxHash) || !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidTxHash, got %v", err)
		}
	})

	t.Run("no address means the rail cannot take payments", func(t *testing.T) {
		_, err := NewCryptoRail(nil).CreateIntent(ctx, adapter.IntentRequest{})
		if !errors.Is(err, domain.ErrUpstreamRail) {
			t.Fatalf("expected ErrUpstreamRail, got %v", err)
		}
	})
}

type immediateScheduler struct {
	mu    sync.Mutex
	delay time.Duration
	tasks []worker.Task
}

func (s *immediateScheduler) SubmitAfter(delay time.Duration, task worker.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = delay
	s.tasks = append(s.tasks, task)
}

func TestMobileMoneyRail(t *testing.T) {
	logger := zerolog.Nop()
	secret := "mm-secret"
	ctx := context.Background()

	t.Run("simulator delivers a callback that verifies", func(t *testing.T) {
		sched := &immediateScheduler{}
		rail := NewMobileMoneyRail(secret, true, 2*time.Second, sched, &logger)

		var gotPayload []byte
		var gotSig string
		rail.SetCallbackSink(func(ctx context.Context, payload []byte, signature string) error {
			gotPayload, gotSig = payload, signature
			return nil
		})

		if err := rail.Push(ctx, adapter.PushRequest{Reference: "mm_1", MSISDN: "+254712345678", Amount: 4700, Currency: "usd"}); err != nil {
			t.Fatalf("Push: %v", err)
		}
		if len(sched.tasks) != 1 || sched.delay != 2*time.Second {
			t.Fatalf("expected one delayed task, got %d delay=%s", len(sched.tasks), sched.delay)
		}
		if err := sched.tasks[0](ctx); err != nil {
			t.Fatalf("task: %v", err)
		}

		c, err := rail.HandleConfirmation(ctx, adapter.ConfirmationInput{Payload: gotPayload, Signature: gotSig})
		if err != nil {
			t.Fatalf("HandleConfirmation: %v", err)
		}
		if c.Outcome != adapter.OutcomeConfirmed || c.ProviderRef != "mm_1" || c.EventID == "" {
			t.Errorf("unexpected confirmation %+v", c)
		}
	})

	t.Run("numbers ending in 000 simulate a decline", func(t *testing.T) {
		sched := &immediateScheduler{}
		rail := NewMobileMoneyRail(secret, true, time.Second, sched, &logger)
		var body CallbackBody
		rail.SetCallbackSink(func(ctx context.Context, payload []byte, signature string) error {
			return json.Unmarshal(payload, &body)
		})
		_ = rail.Push(ctx, adapter.PushRequest{Reference: "mm_2", MSISDN: "+254712345000"})
		_ = sched.tasks[0](ctx)
		if body.Status != CallbackStatusFailed || body.Reason != "insufficient_funds" {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("forged callback is rejected", func(t *testing.T) {
		rail := NewMobileMoneyRail(secret, true, time.Second, &immediateScheduler{}, &logger)
		payload := []byte(`{"reference":"mm_1","status":"success","transactionId":"t"}`)
		sig := SignCallback([]byte("wrong"), payload)
		_, err := rail.HandleConfirmation(ctx, adapter.ConfirmationInput{Payload: payload, Signature: sig})
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
	})

	t.Run("failed callback maps to failed outcome", func(t *testing.T) {
		rail := NewMobileMoneyRail(secret, false, time.Second, nil, &logger)
		payload := []byte(`{"reference":"mm_1","status":"failed","transactionId":"t"}`)
		c, err := rail.HandleConfirmation(ctx, adapter.ConfirmationInput{Payload: payload, Signature: SignCallback([]byte(secret), payload)})
		if err != nil || c.Outcome != adapter.OutcomeFailed || c.Reason != "declined" {
			t.Fatalf("unexpected %+v %v", c, err)
		}
	})

	t.Run("push without a provider fails upstream", func(t *testing.T) {
		rail := NewMobileMoneyRail(secret, false, time.Second, nil, &logger)
		if err := rail.Push(ctx, adapter.PushRequest{Reference: "mm_1"}); !errors.Is(err, domain.ErrUpstreamRail) {
			t.Fatalf("expected ErrUpstreamRail, got %v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	logger := zerolog.Nop()
	reg := NewRegistry(NewCryptoRail(map[string]string{"btc": "x"}), NewMobileMoneyRail("s", false, 0, nil, &logger), nil)
	if _, err := reg.Get(adapter.RailCrypto); err != nil {
		t.Fatalf("Get crypto: %v", err)
	}
	if _, err := reg.Get(adapter.RailCard); !errors.Is(err, domain.ErrUnknownRail) {
		t.Fatalf("expected ErrUnknownRail, got %v", err)
	}
	if got := reg.Names(); len(got) != 2 || got[0] != adapter.RailCrypto {
		t.Errorf("unexpected names %v", got)
	}
}
