package adapter

import (
	"context"
)

const (
	RailCard        = "card"
	RailCrypto      = "crypto"
	RailMobileMoney = "mobile_money"
)

// IntentRequest is what a rail needs to register a checkout attempt.
type IntentRequest struct {
	IntentID string
	Amount   int64 // minor units
	Currency string
	UserID   int64
	Program  string
}

// IntentResult is handed back to the client. ClientSecret is opaque to us.
type IntentResult struct {
	ProviderRef  string
	ClientSecret string
	// Instructions carries rail specific hints for the client, e.g. a receiving address.
	Instructions map[string]string
}

// Outcome is the normalized result every rail converges to.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeDeclined  Outcome = "declined"  // one attempt refused; the intent can still be paid
	OutcomeSubmitted Outcome = "submitted" // proof received, confirmation still pending
	OutcomeIgnored   Outcome = "ignored"   // authentic event we don't act on
)

// ConfirmationInput is the raw material a rail turns into a Confirmation.
// Payload+Signature come from provider callbacks; Reference+Evidence from user submissions.
type ConfirmationInput struct {
	Payload   []byte
	Signature string
	Reference string
	Evidence  string
}

type Confirmation struct {
	Outcome     Outcome
	EventID     string
	EventType   string
	ProviderRef string
	UserID      int64
	Program     string
	Reason      string
}

// PaymentRail is the port every payment method implements so that
// entitlement handling stays rail-agnostic.
type PaymentRail interface {
	Name() string
	// CreateIntent registers a checkout attempt with the rail.
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResult, error)
	// HandleConfirmation authenticates and normalizes an asynchronous confirmation.
	// Implementations fail closed with domain.ErrSignatureInvalid.
	HandleConfirmation(ctx context.Context, in ConfirmationInput) (Confirmation, error)
}

// PushRequest asks a mobile-money provider to prompt the payer's handset.
type PushRequest struct {
	Reference string
	MSISDN    string
	Amount    int64
	Currency  string
}

// MobileMoneyPusher is implemented by rails that start payment with a handset prompt.
type MobileMoneyPusher interface {
	Push(ctx context.Context, req PushRequest) error
}

// IntentCanceler is implemented by rails whose provider keeps an intent payable
// until it is cancelled on the provider side.
type IntentCanceler interface {
	CancelIntent(ctx context.Context, providerRef string) error
}

// RailRegistry resolves an enabled rail by name.
type RailRegistry interface {
	Get(name string) (PaymentRail, error)
}
