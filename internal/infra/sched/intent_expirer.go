package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Expirer is satisfied by usecase.PaymentUseCase.
type Expirer interface {
	ExpireStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// IntentExpirer fails checkout attempts that never progressed past created.
type IntentExpirer struct {
	uc       Expirer
	interval time.Duration
	ttl      time.Duration
	batch    int
	now      func() time.Time
	log      *zerolog.Logger
}

func NewIntentExpirer(uc Expirer, interval, ttl time.Duration, logger *zerolog.Logger) *IntentExpirer {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	l := logger.With().Str("component", "IntentExpirer").Logger()
	return &IntentExpirer{uc: uc, interval: interval, ttl: ttl, batch: 500, now: time.Now, log: &l}
}

func (w *IntentExpirer) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting intent expirer")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping intent expirer")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

func (w *IntentExpirer) Tick(ctx context.Context) {
	n, err := w.uc.ExpireStale(ctx, w.now().Add(-w.ttl), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("intent expiry error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale intents expired")
	}
}
