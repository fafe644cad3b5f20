package repository

import (
	"context"
	"time"

	"forex-academy/internal/domain/model"
)

// -----------------------------
// Payment intents
// -----------------------------

type PaymentIntentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentIntent, error)
	FindByProviderRef(ctx context.Context, tx Tx, rail, ref string) (*model.PaymentIntent, error)
	// SetProviderRef records the rail reference once the rail accepted the intent.
	SetProviderRef(ctx context.Context, tx Tx, id, ref string) error
	// MarkSubmitted moves a created intent to submitted and stores evidence.
	// Returns false when the intent was not in created state, and
	// domain.ErrAlreadyExists when a crypto tx hash is already on another intent.
	MarkSubmitted(ctx context.Context, tx Tx, id, evidence string) (bool, error)
	// RecordDecline stores the reason for a refused attempt on a non-terminal intent
	// without changing its status. Returns false when the intent was terminal.
	RecordDecline(ctx context.Context, tx Tx, id, reason string) (bool, error)
	// Finalize moves a non-terminal intent to a terminal status.
	// Returns false when the intent was already terminal.
	Finalize(ctx context.Context, tx Tx, id string, status model.IntentStatus, reason string, at time.Time) (bool, error)
	ListCreatedOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)
	ListByStatus(ctx context.Context, tx Tx, rail string, status model.IntentStatus, limit int) ([]*model.PaymentIntent, error)
}
