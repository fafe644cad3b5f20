//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"forex-academy/internal/infra/redis"
)

type mockReconciler struct {
	calls int
	limit int
	err   error
}

func (m *mockReconciler) Reconcile(ctx context.Context, limit int) (int, error) {
	m.calls++
	m.limit = limit
	return 1, m.err
}

type mockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	unlocked    []string
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return m.TryLockFunc(ctx, key, ttl)
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.unlocked = append(m.unlocked, token)
	return nil
}

func TestEntitlementReconciler_Tick(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	t.Run("runs and releases the lock", func(t *testing.T) {
		uc := &mockReconciler{}
		var gotTTL time.Duration
		lk := &mockLocker{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			gotTTL = ttl
			return "tok", nil
		}}
		w := NewEntitlementReconciler(uc, lk, time.Minute, 50, &logger)
		w.Tick(ctx)
		if uc.calls != 1 || uc.limit != 50 {
			t.Fatalf("expected one pass with limit 50, got %d/%d", uc.calls, uc.limit)
		}
		if len(lk.unlocked) != 1 || lk.unlocked[0] != "tok" {
			t.Errorf("lock not released: %v", lk.unlocked)
		}
		if gotTTL != 2*time.Minute {
			t.Errorf("unexpected lock ttl %s", gotTTL)
		}
	})

	t.Run("skips when another replica holds the lock", func(t *testing.T) {
		uc := &mockReconciler{}
		lk := &mockLocker{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			return "", redis.ErrLockNotAcquired
		}}
		NewEntitlementReconciler(uc, lk, time.Minute, 0, &logger).Tick(ctx)
		if uc.calls != 0 {
			t.Fatal("reconcile must not run without the lock")
		}
	})

	t.Run("skips when redis is down", func(t *testing.T) {
		uc := &mockReconciler{}
		lk := &mockLocker{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			return "", errors.New("dial tcp: refused")
		}}
		NewEntitlementReconciler(uc, lk, time.Minute, 0, &logger).Tick(ctx)
		if uc.calls != 0 {
			t.Fatal("reconcile must not run when the lock state is unknown")
		}
	})

	t.Run("runs unguarded without a locker", func(t *testing.T) {
		uc := &mockReconciler{err: errors.New("partial")}
		NewEntitlementReconciler(uc, nil, time.Minute, 0, &logger).Tick(ctx)
		if uc.calls != 1 || uc.limit != 200 {
			t.Fatalf("expected default batch 200, got %d/%d", uc.calls, uc.limit)
		}
	})
}

func TestEntitlementReconciler_RunStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	uc := &mockReconciler{}
	w := NewEntitlementReconciler(uc, nil, 10*time.Millisecond, 0, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type mockExpirer struct {
	olderThan time.Time
	limit     int
}

func (m *mockExpirer) ExpireStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	m.olderThan, m.limit = olderThan, limit
	return 2, nil
}

func TestIntentExpirer_Tick(t *testing.T) {
	logger := zerolog.Nop()
	uc := &mockExpirer{}
	w := NewIntentExpirer(uc, time.Minute, time.Hour, &logger)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	w.Tick(context.Background())
	if !uc.olderThan.Equal(fixed.Add(-time.Hour)) || uc.limit != 500 {
		t.Fatalf("unexpected cutoff %s limit %d", uc.olderThan, uc.limit)
	}
}
