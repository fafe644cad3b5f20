package model

import (
	"time"

	"forex-academy/internal/domain"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentStatusCreated   IntentStatus = "created"   // checkout started, rail registered
	IntentStatusSubmitted IntentStatus = "submitted" // user submitted proof, awaiting confirmation
	IntentStatusConfirmed IntentStatus = "confirmed" // terminal
	IntentStatusFailed    IntentStatus = "failed"    // terminal
)

func (s IntentStatus) Terminal() bool {
	return s == IntentStatusConfirmed || s == IntentStatusFailed
}

// PaymentIntent is one checkout attempt on one rail. It is never mutated after it
// reaches a terminal status; a retry creates a new intent.
type PaymentIntent struct {
	ID            string
	Rail          string // card | crypto | mobile_money
	ProviderRef   string // stripe pi_..., or our ulid reference for manual rails
	Amount        int64  // minor units
	Currency      string
	UserID        int64
	Program       string
	Status        IntentStatus
	Evidence      string // tx hash (crypto) or encrypted MSISDN (mobile money)
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ConfirmedAt   *time.Time
}

func NewPaymentIntent(rail string, amount int64, currency string, userID int64, program string) (*PaymentIntent, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if rail == "" || currency == "" || userID <= 0 || program == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentIntent{
		ID:        uuid.NewString(),
		Rail:      rail,
		Amount:    amount,
		Currency:  currency,
		UserID:    userID,
		Program:   program,
		Status:    IntentStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *PaymentIntent) IsTerminal() bool { return p != nil && p.Status.Terminal() }
