package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"forex-academy/internal/config"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/domain/ports/repository"
	"forex-academy/internal/infra/api"
	pg "forex-academy/internal/infra/db/postgres"
	"forex-academy/internal/infra/i18n"
	"forex-academy/internal/infra/logging"
	"forex-academy/internal/infra/metrics"
	"forex-academy/internal/infra/payment"
	red "forex-academy/internal/infra/redis"
	"forex-academy/internal/infra/sched"
	"forex-academy/internal/infra/security"
	"forex-academy/internal/infra/telegram"
	"forex-academy/internal/infra/worker"
	"forex-academy/internal/usecase"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	catalog := cfg.Catalog()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	intentRepo := pg.NewPaymentIntentRepo(pool)
	requestRepo := pg.NewPendingRoleRequestRepo(pool)
	resourceRepo := pg.NewResourceRepo(pool)
	var roleRepo repository.RoleRepository = pg.NewRoleRepo(pool)

	if err := roleRepo.EnsureRoles(ctx, nil, model.KnownRoles); err != nil {
		return fmt.Errorf("ensure roles: %w", err)
	}

	// ---- Redis (optional: role cache, rate limiting, reconciler lock) ----
	var (
		limiter api.Limiter
		locker  red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		roleRepo = pg.NewRoleRepoCacheDecorator(roleRepo, redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient, 1)
	} else {
		logger.Warn().Msg("redis not configured; role cache, rate limiting and reconciler lock disabled")
	}

	// ---- Encryption (MSISDN at rest) ----
	var cipher adapter.Cipher
	if cfg.Security.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey, "msisdn")
		if err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
		cipher = enc
	} else {
		logger.Warn().Msg("security.encryption_key not set; phone numbers are stored masked only")
	}

	// ---- Review notifications ----
	var notifier adapter.ReviewNotifier = telegram.NewLogNotifier(logger)
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		tr, err := i18n.Load(cfg.Telegram.Language)
		if err != nil {
			return fmt.Errorf("i18n: %w", err)
		}
		if notifier, err = telegram.NewReviewNotifier(bot, cfg.Telegram.AdminChatIDs, tr, logger); err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
	}

	// ---- Workers ----
	callbacks := worker.NewPool("mobile_money_callbacks", cfg.Payment.MobileMoney.Workers, logger)
	callbacks.Start(ctx)
	defer callbacks.Stop()

	// ---- Rails ----
	rails := []adapter.PaymentRail{
		payment.NewCardRail(payment.NewStripeClient(cfg.Payment.Stripe.SecretKey).PaymentIntents, cfg.Payment.Stripe.WebhookSecret, logger),
	}
	if cfg.Payment.Crypto.Enabled {
		rails = append(rails, payment.NewCryptoRail(cfg.Payment.Crypto.Addresses))
	}
	var mobileMoney *payment.MobileMoneyRail
	if cfg.Payment.MobileMoney.Enabled {
		mm := cfg.Payment.MobileMoney
		mobileMoney = payment.NewMobileMoneyRail(mm.CallbackSecret, mm.Simulate, mm.SimulatedDelay, callbacks, logger)
		rails = append(rails, mobileMoney)
	}
	registry := payment.NewRegistry(rails...)

	// ---- Use cases ----
	entUC := usecase.NewEntitlementUseCase(requestRepo, roleRepo, catalog, logger)
	payUC := usecase.NewPaymentUseCase(intentRepo, tm, registry, entUC, catalog, notifier, cipher, cfg.Payment.Currency, logger)
	accessUC := usecase.NewAccessUseCase(roleRepo, resourceRepo, logger)

	if mobileMoney != nil {
		// Simulated callbacks take the same path as a provider POST.
		mobileMoney.SetCallbackSink(func(ctx context.Context, payload []byte, sig string) error {
			_, err := payUC.HandleWebhook(ctx, adapter.RailMobileMoney, payload, sig)
			return err
		})
	}

	// ---- Background jobs ----
	reconciler := sched.NewEntitlementReconciler(entUC, locker, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileBatch, logger)
	go func() { _ = reconciler.Run(ctx) }()
	expirer := sched.NewIntentExpirer(payUC, cfg.Scheduler.ExpireInterval, cfg.Payment.IntentTTL, logger)
	go func() { _ = expirer.Run(ctx) }()
	go observePool(ctx, pool)

	// ---- HTTP ----
	srv := api.NewServer(payUC, entUC, accessUC, catalog, api.Options{
		Auth:               api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:            limiter,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Strs("rails", registry.Names()).
			Str("version", version).
			Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

func observePool(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.ObservePool(pool.Stat())
		}
	}
}
