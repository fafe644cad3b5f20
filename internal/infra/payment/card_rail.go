package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/infra/metrics"
)

var (
	_ adapter.PaymentRail    = (*CardRail)(nil)
	_ adapter.IntentCanceler = (*CardRail)(nil)
)

// Metadata keys written on every Stripe PaymentIntent and read back from webhooks.
const (
	MetaUserID   = "userId"
	MetaProgram  = "program"
	MetaIntentID = "intentId"
)

// PaymentIntentsAPI is the slice of the Stripe client the card rail uses.
type PaymentIntentsAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// NewStripeClient builds a Stripe API client bound to one secret key. Each caller
// owns its client; nothing here touches the package level stripe.Key.
func NewStripeClient(secretKey string) *client.API {
	return client.New(secretKey, nil)
}

// CardRail registers card payments with Stripe and authenticates its webhooks.
type CardRail struct {
	intents       PaymentIntentsAPI
	webhookSecret string
	log           *zerolog.Logger
}

func NewCardRail(intents PaymentIntentsAPI, webhookSecret string, logger *zerolog.Logger) *CardRail {
	return &CardRail{intents: intents, webhookSecret: webhookSecret, log: logger}
}

func (r *CardRail) Name() string { return adapter.RailCard }

func (r *CardRail) CreateIntent(ctx context.Context, req adapter.IntentRequest) (adapter.IntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetaUserID, strconv.FormatInt(req.UserID, 10))
	params.AddMetadata(MetaProgram, req.Program)
	params.AddMetadata(MetaIntentID, req.IntentID)
	// Retries of the same checkout attempt must not create a second Stripe intent.
	params.SetIdempotencyKey("intent-" + req.IntentID)

	start := time.Now()
	pi, err := r.intents.New(params)
	metrics.ObserveRailCall(adapter.RailCard, "create_intent", err == nil, time.Since(start).Seconds())
	if err != nil {
		r.log.Error().Err(err).Str("intent_id", req.IntentID).Msg("stripe payment intent creation failed")
		return adapter.IntentResult{}, fmt.Errorf("%w: %v", domain.ErrUpstreamRail, err)
	}
	return adapter.IntentResult{ProviderRef: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CancelIntent closes the Stripe PaymentIntent so the client secret can no longer
// be charged. Stripe refuses once the intent succeeded; that error is returned.
func (r *CardRail) CancelIntent(ctx context.Context, providerRef string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	start := time.Now()
	_, err := r.intents.Cancel(providerRef, params)
	metrics.ObserveRailCall(adapter.RailCard, "cancel_intent", err == nil, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: cancel %s: %v", domain.ErrUpstreamRail, providerRef, err)
	}
	return nil
}

// HandleConfirmation verifies the Stripe-Signature header against the raw body.
// Nothing is parsed before the signature checks out.
func (r *CardRail) HandleConfirmation(ctx context.Context, in adapter.ConfirmationInput) (adapter.Confirmation, error) {
	event, err := webhook.ConstructEventWithOptions(in.Payload, in.Signature, r.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return adapter.Confirmation{}, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	c := adapter.Confirmation{EventID: event.ID, EventType: string(event.Type)}
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		c.Outcome = adapter.OutcomeConfirmed
	case stripe.EventTypePaymentIntentPaymentFailed:
		// Stripe moves the intent back to requires_payment_method; the payer may retry.
		c.Outcome = adapter.OutcomeDeclined
	case stripe.EventTypePaymentIntentCanceled:
		c.Outcome = adapter.OutcomeFailed
	default:
		c.Outcome = adapter.OutcomeIgnored
		return c, nil
	}

	if event.Data == nil {
		return adapter.Confirmation{}, fmt.Errorf("%w: event without data", domain.ErrInvalidInput)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return adapter.Confirmation{}, fmt.Errorf("%w: decode payment intent: %v", domain.ErrInvalidInput, err)
	}
	c.ProviderRef = pi.ID

	userID, program, err := metadataOwner(pi.Metadata)
	if err != nil {
		return adapter.Confirmation{}, err
	}
	c.UserID, c.Program = userID, program

	switch c.Outcome {
	case adapter.OutcomeDeclined:
		c.Reason = failureReason(pi.LastPaymentError)
	case adapter.OutcomeFailed:
		c.Reason = "canceled"
		if pi.CancellationReason != "" {
			c.Reason = "canceled:" + string(pi.CancellationReason)
		}
	}
	return c, nil
}

func metadataOwner(md map[string]string) (int64, string, error) {
	raw, program := md[MetaUserID], md[MetaProgram]
	if raw == "" || program == "" {
		return 0, "", fmt.Errorf("%w: payment intent metadata lacks userId or program", domain.ErrInvalidInput)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", fmt.Errorf("%w: malformed userId metadata", domain.ErrInvalidInput)
	}
	return userID, program, nil
}

func failureReason(e *stripe.Error) string {
	if e == nil {
		return "payment_failed"
	}
	if e.Code != "" {
		return string(e.Code)
	}
	if e.DeclineCode != "" {
		return string(e.DeclineCode)
	}
	return "payment_failed"
}
