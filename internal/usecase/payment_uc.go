package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/domain/ports/repository"
	"forex-academy/internal/infra/logging"
	"forex-academy/internal/infra/metrics"
	"forex-academy/internal/infra/security"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// CreateIntent validates the checkout, persists a created intent and registers it with the rail.
	CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentOutput, error)
	// HandleWebhook authenticates a rail callback and applies it. Duplicates are harmless.
	HandleWebhook(ctx context.Context, rail string, payload []byte, signature string) (*WebhookResult, error)
	// SubmitCrypto records the user's tx hash and asks staff to review it.
	SubmitCrypto(ctx context.Context, userID int64, intentID, txHash string) (*model.PaymentIntent, error)
	// RequestMobileMoney sends the handset prompt for a mobile-money intent.
	RequestMobileMoney(ctx context.Context, userID int64, intentID, phone string) (*model.PaymentIntent, error)
	// ApproveManual confirms a submitted manual-rail intent on staff decision.
	ApproveManual(ctx context.Context, adminID int64, intentID string) (*WebhookResult, error)
	// RejectManual fails a non-terminal manual-rail intent on staff decision.
	RejectManual(ctx context.Context, adminID int64, intentID, reason string) (*model.PaymentIntent, error)
	GetIntent(ctx context.Context, userID int64, intentID string) (*model.PaymentIntent, error)
	ListAwaitingReview(ctx context.Context, limit int) ([]*model.PaymentIntent, error)
	// ExpireStale fails created intents older than olderThan.
	ExpireStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type CreateIntentInput struct {
	UserID  int64
	Program string
	Amount  int64
	Rail    string // empty means card
}

type CreateIntentOutput struct {
	IntentID     string
	Rail         string
	ProviderRef  string
	ClientSecret string
	Amount       int64
	Currency     string
	Instructions map[string]string
}

type WebhookResult struct {
	Outcome  adapter.Outcome
	IntentID string
	// Replay is true when the intent had already reached this state.
	Replay bool
}

type paymentUC struct {
	intents      repository.PaymentIntentRepository
	tm           repository.TransactionManager
	rails        adapter.RailRegistry
	entitlements EntitlementUseCase
	catalog      *model.Catalog
	notifier     adapter.ReviewNotifier
	cipher       adapter.Cipher
	currency     string
	log          *zerolog.Logger
}

func NewPaymentUseCase(
	intents repository.PaymentIntentRepository,
	tm repository.TransactionManager,
	rails adapter.RailRegistry,
	entitlements EntitlementUseCase,
	catalog *model.Catalog,
	notifier adapter.ReviewNotifier,
	cipher adapter.Cipher,
	currency string,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		intents:      intents,
		tm:           tm,
		rails:        rails,
		entitlements: entitlements,
		catalog:      catalog,
		notifier:     notifier,
		cipher:       cipher,
		currency:     strings.ToLower(currency),
		log:          logger,
	}
}

func (u *paymentUC) CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentOutput, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateIntent")()
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if in.UserID <= 0 {
		return nil, fmt.Errorf("%w: userId must be positive", domain.ErrInvalidInput)
	}
	prog, ok := u.catalog.Lookup(in.Program)
	if !ok {
		return nil, domain.ErrUnknownProgram
	}
	// The catalog sets the price; a priced program is only sold at that price.
	if prog.PriceCents > 0 && in.Amount != prog.PriceCents {
		return nil, fmt.Errorf("%w: %s costs %d", domain.ErrInvalidAmount, prog.Name, prog.PriceCents)
	}
	railName := strings.ToLower(strings.TrimSpace(in.Rail))
	if railName == "" {
		railName = adapter.RailCard
	}
	rail, err := u.rails.Get(railName)
	if err != nil {
		return nil, err
	}

	intent, err := model.NewPaymentIntent(rail.Name(), in.Amount, u.currency, in.UserID, prog.Name)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithIntentID(ctx, intent.ID)
	log := logging.With(ctx, u.log)

	if err := u.intents.Save(ctx, nil, intent); err != nil {
		return nil, err
	}
	if err := u.entitlements.RequestProgram(ctx, in.UserID, prog.Name); err != nil {
		log.Warn().Err(err).Str("program", prog.Name).Msg("could not record program request")
	}

	res, err := rail.CreateIntent(ctx, adapter.IntentRequest{
		IntentID: intent.ID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
		UserID:   intent.UserID,
		Program:  intent.Program,
	})
	if err != nil {
		if _, ferr := u.intents.Finalize(ctx, nil, intent.ID, model.IntentStatusFailed, "rail_unavailable", time.Now()); ferr != nil {
			log.Error().Err(ferr).Msg("could not fail intent after rail error")
		}
		metrics.IncIntent(rail.Name(), string(model.IntentStatusFailed))
		if !errors.Is(err, domain.ErrUpstreamRail) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamRail, err)
		}
		return nil, err
	}
	if err := u.intents.SetProviderRef(ctx, nil, intent.ID, res.ProviderRef); err != nil {
		return nil, err
	}
	metrics.IncIntent(rail.Name(), string(model.IntentStatusCreated))
	log.Info().
		Str("rail", rail.Name()).
		Str("program", prog.Name).
		Int64("amount", intent.Amount).
		Msg("payment intent created")

	return &CreateIntentOutput{
		IntentID:     intent.ID,
		Rail:         rail.Name(),
		ProviderRef:  res.ProviderRef,
		ClientSecret: res.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Instructions: res.Instructions,
	}, nil
}

func (u *paymentUC) HandleWebhook(ctx context.Context, railName string, payload []byte, signature string) (*WebhookResult, error) {
	start := time.Now()
	defer func() { metrics.ObserveWebhook(railName, time.Since(start).Seconds()) }()

	rail, err := u.rails.Get(railName)
	if err != nil {
		return nil, err
	}
	conf, err := rail.HandleConfirmation(ctx, adapter.ConfirmationInput{Payload: payload, Signature: signature})
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			metrics.IncWebhook(railName, "signature_invalid")
			logging.With(ctx, u.log).Warn().Err(err).Str("rail", railName).Msg("webhook rejected")
		} else {
			metrics.IncWebhook(railName, "invalid")
			logging.With(ctx, u.log).Warn().Err(err).Str("rail", railName).Msg("webhook payload unusable")
		}
		return nil, err
	}
	return u.apply(ctx, railName, conf)
}

func (u *paymentUC) apply(ctx context.Context, railName string, conf adapter.Confirmation) (*WebhookResult, error) {
	log := logging.With(ctx, u.log).With().
		Str("rail", railName).
		Str("event_id", conf.EventID).
		Str("event_type", conf.EventType).
		Logger()

	switch conf.Outcome {
	case adapter.OutcomeConfirmed:
		res, err := u.confirm(ctx, railName, conf)
		if err != nil {
			metrics.IncWebhook(railName, "error")
			log.Error().Err(err).Msg("confirmation not applied")
			return nil, err
		}
		metrics.IncWebhook(railName, "confirmed")
		return res, nil
	case adapter.OutcomeDeclined:
		res, err := u.decline(ctx, railName, conf)
		if err != nil {
			metrics.IncWebhook(railName, "error")
			return nil, err
		}
		metrics.IncWebhook(railName, "declined")
		return res, nil
	case adapter.OutcomeFailed:
		res, err := u.fail(ctx, railName, conf)
		if err != nil {
			metrics.IncWebhook(railName, "error")
			return nil, err
		}
		metrics.IncWebhook(railName, "failed")
		return res, nil
	default:
		metrics.IncWebhook(railName, "ignored")
		log.Debug().Msg("event ignored")
		return &WebhookResult{Outcome: adapter.OutcomeIgnored}, nil
	}
}

// confirm resolves the entitlement for a confirmed payment. The intent transition and
// the paid upsert commit together; the role grant runs afterwards and may fail alone.
func (u *paymentUC) confirm(ctx context.Context, railName string, conf adapter.Confirmation) (*WebhookResult, error) {
	userID, program := conf.UserID, conf.Program
	intent, err := u.intents.FindByProviderRef(ctx, nil, railName, conf.ProviderRef)
	switch {
	case err == nil:
		if userID != 0 && (userID != intent.UserID || !strings.EqualFold(program, intent.Program)) {
			logging.With(ctx, u.log).Warn().
				Str("intent_id", intent.ID).
				Int64("event_user_id", userID).
				Str("event_program", program).
				Msg("event metadata disagrees with stored intent; using stored intent")
		}
		userID, program = intent.UserID, intent.Program
		ctx = logging.WithIntentID(ctx, intent.ID)
	case errors.Is(err, domain.ErrNotFound):
		if userID <= 0 || program == "" {
			return nil, fmt.Errorf("%w: no intent for reference %q", domain.ErrNotFound, conf.ProviderRef)
		}
		logging.With(ctx, u.log).Warn().
			Str("provider_ref", conf.ProviderRef).
			Msg("confirmation for unknown intent; resolving from event metadata")
	default:
		return nil, err
	}

	res := &WebhookResult{Outcome: adapter.OutcomeConfirmed}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if intent != nil {
			res.IntentID = intent.ID
			moved, err := u.intents.Finalize(ctx, tx, intent.ID, model.IntentStatusConfirmed, "", time.Now())
			if err != nil {
				return err
			}
			res.Replay = !moved
		}
		_, err := u.entitlements.Resolve(ctx, tx, userID, program)
		return err
	})
	if err != nil {
		return nil, err
	}

	log := logging.With(ctx, u.log)
	metrics.IncEntitlementResolved(program)
	log.Info().
		Int64("user_id", userID).
		Str("program", program).
		Msg("entitlement resolved")
	if intent != nil && !res.Replay {
		metrics.IncIntent(railName, string(model.IntentStatusConfirmed))
		metrics.AddPaymentRevenue(intent.Currency, intent.Amount)
	}
	if res.Replay && intent.Status == model.IntentStatusFailed {
		// Money moved for an intent we already gave up on. Staff must reconcile the ledger.
		log.Error().
			Str("failure_reason", intent.FailureReason).
			Msg("payment confirmed for a failed intent")
	}
	// Not fatal: the payment stays confirmed and the reconciler retries the grant.
	_ = u.entitlements.GrantForProgram(ctx, userID, program)
	return res, nil
}

// decline records a refused attempt. The intent stays open so the payer can retry
// with the same checkout.
func (u *paymentUC) decline(ctx context.Context, railName string, conf adapter.Confirmation) (*WebhookResult, error) {
	intent, err := u.intents.FindByProviderRef(ctx, nil, railName, conf.ProviderRef)
	if errors.Is(err, domain.ErrNotFound) {
		logging.With(ctx, u.log).Warn().Str("provider_ref", conf.ProviderRef).Msg("decline for unknown intent")
		return &WebhookResult{Outcome: adapter.OutcomeIgnored}, nil
	}
	if err != nil {
		return nil, err
	}
	recorded, err := u.intents.RecordDecline(ctx, nil, intent.ID, conf.Reason)
	if err != nil {
		return nil, err
	}
	if recorded {
		metrics.IncIntent(railName, "declined")
		logging.With(logging.WithIntentID(ctx, intent.ID), u.log).Info().
			Str("reason", conf.Reason).
			Msg("payment attempt declined")
	}
	return &WebhookResult{Outcome: adapter.OutcomeDeclined, IntentID: intent.ID, Replay: !recorded}, nil
}

func (u *paymentUC) fail(ctx context.Context, railName string, conf adapter.Confirmation) (*WebhookResult, error) {
	intent, err := u.intents.FindByProviderRef(ctx, nil, railName, conf.ProviderRef)
	if errors.Is(err, domain.ErrNotFound) {
		logging.With(ctx, u.log).Warn().Str("provider_ref", conf.ProviderRef).Msg("failure event for unknown intent")
		return &WebhookResult{Outcome: adapter.OutcomeIgnored}, nil
	}
	if err != nil {
		return nil, err
	}
	moved, err := u.intents.Finalize(ctx, nil, intent.ID, model.IntentStatusFailed, conf.Reason, time.Now())
	if err != nil {
		return nil, err
	}
	if moved {
		metrics.IncIntent(railName, string(model.IntentStatusFailed))
		logging.With(logging.WithIntentID(ctx, intent.ID), u.log).Info().
			Str("reason", conf.Reason).
			Msg("payment failed")
	}
	return &WebhookResult{Outcome: adapter.OutcomeFailed, IntentID: intent.ID, Replay: !moved}, nil
}

// findIntent treats anything that is not a UUID as a missing intent.
func (u *paymentUC) findIntent(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	if _, err := uuid.Parse(intentID); err != nil {
		return nil, domain.ErrNotFound
	}
	return u.intents.FindByID(ctx, nil, intentID)
}

// ownedIntent loads an intent the caller owns on the given rail.
func (u *paymentUC) ownedIntent(ctx context.Context, userID int64, intentID, railName string) (*model.PaymentIntent, error) {
	intent, err := u.findIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.UserID != userID {
		// Same answer as a missing intent so ids cannot be probed.
		return nil, domain.ErrNotFound
	}
	if railName != "" && intent.Rail != railName {
		return nil, domain.ErrWrongRail
	}
	return intent, nil
}

func (u *paymentUC) SubmitCrypto(ctx context.Context, userID int64, intentID, txHash string) (*model.PaymentIntent, error) {
	intent, err := u.ownedIntent(ctx, userID, intentID, adapter.RailCrypto)
	if err != nil {
		return nil, err
	}
	if intent.IsTerminal() {
		return nil, domain.ErrIntentTerminal
	}
	rail, err := u.rails.Get(adapter.RailCrypto)
	if err != nil {
		return nil, err
	}
	conf, err := rail.HandleConfirmation(ctx, adapter.ConfirmationInput{Reference: intent.ProviderRef, Evidence: txHash})
	if err != nil {
		return nil, err
	}
	hash := strings.TrimPrefix(conf.EventID, "tx:")

	// ErrAlreadyExists when the hash already backs another intent.
	moved, err := u.intents.MarkSubmitted(ctx, nil, intent.ID, hash)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			logging.With(logging.WithIntentID(ctx, intent.ID), u.log).Warn().
				Str("tx_hash", logging.Redact(hash)).
				Msg("tx hash already used for another payment")
		}
		return nil, err
	}
	if !moved {
		if intent.Status == model.IntentStatusSubmitted && intent.Evidence == hash {
			return intent, nil
		}
		return nil, domain.ErrIntentTerminal
	}
	intent.Status = model.IntentStatusSubmitted
	intent.Evidence = hash
	metrics.IncIntent(adapter.RailCrypto, string(model.IntentStatusSubmitted))

	ctx = logging.WithIntentID(ctx, intent.ID)
	if u.notifier != nil {
		if err := u.notifier.NotifyReview(ctx, adapter.ReviewMessage{
			IntentID: intent.ID,
			Rail:     intent.Rail,
			UserID:   intent.UserID,
			Program:  intent.Program,
			Amount:   intent.Amount,
			Currency: intent.Currency,
			Evidence: hash,
		}); err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Msg("review notification failed")
		}
	}
	logging.With(ctx, u.log).Info().Str("tx_hash", logging.Redact(hash)).Msg("crypto payment submitted for review")
	return intent, nil
}

func (u *paymentUC) RequestMobileMoney(ctx context.Context, userID int64, intentID, phone string) (*model.PaymentIntent, error) {
	intent, err := u.ownedIntent(ctx, userID, intentID, adapter.RailMobileMoney)
	if err != nil {
		return nil, err
	}
	if intent.IsTerminal() {
		return nil, domain.ErrIntentTerminal
	}
	if intent.Status == model.IntentStatusSubmitted {
		return nil, domain.ErrAlreadyExists
	}
	msisdn, err := security.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	rail, err := u.rails.Get(adapter.RailMobileMoney)
	if err != nil {
		return nil, err
	}
	pusher, ok := rail.(adapter.MobileMoneyPusher)
	if !ok {
		return nil, domain.ErrWrongRail
	}

	evidence := security.MaskPhone(msisdn)
	if u.cipher != nil {
		if evidence, err = u.cipher.Encrypt(msisdn); err != nil {
			return nil, fmt.Errorf("encrypt msisdn: %w", err)
		}
	}
	moved, err := u.intents.MarkSubmitted(ctx, nil, intent.ID, evidence)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrAlreadyExists
	}

	ctx = logging.WithIntentID(ctx, intent.ID)
	if err := pusher.Push(ctx, adapter.PushRequest{
		Reference: intent.ProviderRef,
		MSISDN:    msisdn,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
	}); err != nil {
		if _, ferr := u.intents.Finalize(ctx, nil, intent.ID, model.IntentStatusFailed, "push_failed", time.Now()); ferr != nil {
			logging.With(ctx, u.log).Error().Err(ferr).Msg("could not fail intent after push error")
		}
		metrics.IncIntent(adapter.RailMobileMoney, string(model.IntentStatusFailed))
		if !errors.Is(err, domain.ErrUpstreamRail) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamRail, err)
		}
		return nil, err
	}
	intent.Status = model.IntentStatusSubmitted
	intent.Evidence = evidence
	metrics.IncIntent(adapter.RailMobileMoney, string(model.IntentStatusSubmitted))
	return intent, nil
}

func (u *paymentUC) ApproveManual(ctx context.Context, adminID int64, intentID string) (*WebhookResult, error) {
	intent, err := u.findIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Rail != adapter.RailCrypto {
		return nil, domain.ErrWrongRail
	}
	if intent.IsTerminal() {
		return nil, domain.ErrIntentTerminal
	}
	if intent.Status != model.IntentStatusSubmitted {
		return nil, fmt.Errorf("%w: nothing submitted for review", domain.ErrInvalidArgument)
	}
	logging.With(logging.WithIntentID(ctx, intent.ID), u.log).Info().
		Int64("admin_id", adminID).
		Msg("manual payment approved")
	return u.apply(ctx, intent.Rail, adapter.Confirmation{
		Outcome:     adapter.OutcomeConfirmed,
		EventID:     fmt.Sprintf("admin:%d:%s", adminID, intent.ID),
		EventType:   "manual.approved",
		ProviderRef: intent.ProviderRef,
		UserID:      intent.UserID,
		Program:     intent.Program,
	})
}

func (u *paymentUC) RejectManual(ctx context.Context, adminID int64, intentID, reason string) (*model.PaymentIntent, error) {
	intent, err := u.findIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Rail != adapter.RailCrypto {
		return nil, domain.ErrWrongRail
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected_by_admin"
	}
	now := time.Now()
	moved, err := u.intents.Finalize(ctx, nil, intent.ID, model.IntentStatusFailed, reason, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrIntentTerminal
	}
	metrics.IncIntent(intent.Rail, string(model.IntentStatusFailed))
	logging.With(logging.WithIntentID(ctx, intent.ID), u.log).Info().
		Int64("admin_id", adminID).
		Str("reason", reason).
		Msg("manual payment rejected")
	intent.Status = model.IntentStatusFailed
	intent.FailureReason = reason
	intent.UpdatedAt = now
	return intent, nil
}

func (u *paymentUC) GetIntent(ctx context.Context, userID int64, intentID string) (*model.PaymentIntent, error) {
	return u.ownedIntent(ctx, userID, intentID, "")
}

func (u *paymentUC) ListAwaitingReview(ctx context.Context, limit int) ([]*model.PaymentIntent, error) {
	return u.intents.ListByStatus(ctx, nil, adapter.RailCrypto, model.IntentStatusSubmitted, limit)
}

func (u *paymentUC) ExpireStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := u.intents.ListCreatedOlderThan(ctx, nil, olderThan, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range stale {
		if err := u.cancelAtRail(ctx, p); err != nil {
			// It may have been paid meanwhile; the webhook settles it.
			u.log.Warn().Err(err).Str("intent_id", p.ID).Msg("intent still open at the rail; not expired")
			continue
		}
		moved, err := u.intents.Finalize(ctx, nil, p.ID, model.IntentStatusFailed, "expired", time.Now())
		if err != nil {
			u.log.Error().Err(err).Str("intent_id", p.ID).Msg("could not expire intent")
			continue
		}
		if moved {
			n++
			metrics.IncIntent(p.Rail, string(model.IntentStatusFailed))
		}
	}
	return n, nil
}

// cancelAtRail closes the provider side of an intent before it is expired here.
func (u *paymentUC) cancelAtRail(ctx context.Context, p *model.PaymentIntent) error {
	if p.ProviderRef == "" {
		return nil
	}
	rail, err := u.rails.Get(p.Rail)
	if err != nil {
		return nil
	}
	canceler, ok := rail.(adapter.IntentCanceler)
	if !ok {
		return nil
	}
	return canceler.CancelIntent(ctx, p.ProviderRef)
}
