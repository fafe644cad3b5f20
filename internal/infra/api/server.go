package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"forex-academy/internal/domain/model"
	"forex-academy/internal/infra/metrics"
	"forex-academy/internal/usecase"
)

// Server exposes checkout, rail callbacks, admin review and the access gate over HTTP.
type Server struct {
	pay          usecase.PaymentUseCase
	entitlements usecase.EntitlementUseCase
	access       usecase.AccessUseCase
	catalog      *model.Catalog
	auth         *Authenticator
	limiter      Limiter
	rateLimit    int
	timeout      time.Duration
	log          *zerolog.Logger
}

type Options struct {
	Auth               *Authenticator
	Limiter            Limiter // nil disables rate limiting
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

func NewServer(
	pay usecase.PaymentUseCase,
	entitlements usecase.EntitlementUseCase,
	access usecase.AccessUseCase,
	catalog *model.Catalog,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "http").Logger()
	return &Server{
		pay:          pay,
		entitlements: entitlements,
		access:       access,
		catalog:      catalog,
		auth:         opts.Auth,
		limiter:      opts.Limiter,
		rateLimit:    opts.RateLimitPerMinute,
		timeout:      opts.RequestTimeout,
		log:          &l,
	}
}

// Router builds the chi mux with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.timeout),
	)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/programs", s.handlePrograms)

	r.Route("/payment", func(r chi.Router) {
		// Provider callbacks authenticate by signature, not bearer token.
		r.Post("/webhook", s.handleStripeWebhook)
		r.Post("/mobile-money/callback", s.handleMobileMoneyCallback)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(s.auth, s.log))
			r.Use(RateLimit(s.limiter, "payment", s.rateLimit, s.log))
			r.Post("/create-payment-intent", s.handleCreateIntent)
			r.Post("/crypto/submit", s.handleCryptoSubmit)
			r.Post("/mobile-money/request", s.handleMobileMoneyRequest)
			r.Get("/intents/{id}", s.handleGetIntent)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireUser(s.auth, s.log))
		r.Get("/me/roles", s.handleMyRoles)
		r.Get("/me/programs", s.handleMyPrograms)
		r.Get("/resources", s.handleListResources)
		r.Get("/resources/{id}", s.handleGetResource)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireUser(s.auth, s.log))
		r.Use(RequireAdmin(s.access, s.log))
		r.Get("/payments/review", s.handleReviewQueue)
		r.Post("/payments/{id}/approve", s.handleApprove)
		r.Post("/payments/{id}/reject", s.handleReject)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
