package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"forex-academy/internal/infra/metrics"
	"forex-academy/internal/infra/redis"
)

const reconcileLockKey = "lock:entitlement_reconciler"

// Reconciler is satisfied by usecase.EntitlementUseCase.
type Reconciler interface {
	Reconcile(ctx context.Context, limit int) (int, error)
}

// EntitlementReconciler periodically grants roles for paid requests that still
// lack them. This covers grants that failed after the payment was confirmed, or a
// process that crashed between resolve and grant.
type EntitlementReconciler struct {
	uc       Reconciler
	locker   redis.Locker // nil runs unguarded (single replica)
	interval time.Duration
	batch    int
	log      *zerolog.Logger
}

func NewEntitlementReconciler(uc Reconciler, locker redis.Locker, interval time.Duration, batch int, logger *zerolog.Logger) *EntitlementReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "EntitlementReconciler").Logger()
	return &EntitlementReconciler{uc: uc, locker: locker, interval: interval, batch: batch, log: &l}
}

func (w *EntitlementReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting entitlement reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping entitlement reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass. Only one replica holds the lock per pass.
func (w *EntitlementReconciler) Tick(ctx context.Context) {
	if w.locker != nil {
		// Lock outlives a slow pass rather than letting a second replica start.
		token, err := w.locker.TryLock(ctx, reconcileLockKey, 2*w.interval)
		if errors.Is(err, redis.ErrLockNotAcquired) {
			metrics.IncReconcileRun("skipped")
			return
		}
		if err != nil {
			metrics.IncReconcileRun("error")
			w.log.Error().Err(err).Msg("reconciler lock unavailable")
			return
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), reconcileLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("reconciler unlock failed")
			}
		}()
	}

	n, err := w.uc.Reconcile(ctx, w.batch)
	if err != nil {
		metrics.IncReconcileRun("error")
		w.log.Error().Err(err).Int("granted", n).Msg("reconcile pass incomplete")
		return
	}
	metrics.IncReconcileRun("ok")
	if n > 0 {
		w.log.Info().Int("granted", n).Msg("roles granted by reconciler")
	}
}
