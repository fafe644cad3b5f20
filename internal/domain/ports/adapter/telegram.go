package adapter

import "context"

// ReviewNotifier tells staff that a manual-rail payment needs a decision.
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, msg ReviewMessage) error
}

type ReviewMessage struct {
	IntentID string
	Rail     string
	UserID   int64
	Program  string
	Amount   int64
	Currency string
	Evidence string
}
