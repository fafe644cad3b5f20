package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/infra/i18n"
	"forex-academy/internal/infra/logging"
)

var (
	_ adapter.ReviewNotifier = (*ReviewNotifier)(nil)
	_ adapter.ReviewNotifier = (*LogNotifier)(nil)
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReviewNotifier posts manual-payment review requests to the staff chats.
type ReviewNotifier struct {
	bot     Sender
	chatIDs []int64
	tr      *i18n.Translator
	log     *zerolog.Logger
}

// NewBot connects to the Bot API with token.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	return tgbotapi.NewBotAPI(token)
}

// NewReviewNotifier formats messages with tr; nil means English.
func NewReviewNotifier(bot Sender, chatIDs []int64, tr *i18n.Translator, logger *zerolog.Logger) (*ReviewNotifier, error) {
	if tr == nil {
		var err error
		if tr, err = i18n.Load("en"); err != nil {
			return nil, err
		}
	}
	l := logger.With().Str("component", "ReviewNotifier").Str("lang", tr.Lang()).Logger()
	return &ReviewNotifier{bot: bot, chatIDs: chatIDs, tr: tr, log: &l}, nil
}

// NotifyReview sends to every admin chat and reports the first failure. A message
// that reached at least one admin counts as delivered.
func (n *ReviewNotifier) NotifyReview(ctx context.Context, msg adapter.ReviewMessage) error {
	if len(n.chatIDs) == 0 {
		return errors.New("no admin chats configured")
	}
	text := formatReview(n.tr, msg)
	var firstErr error
	sent := 0
	for _, id := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := tgbotapi.NewMessage(id, text)
		m.ParseMode = tgbotapi.ModeHTML
		if _, err := n.bot.Send(m); err != nil {
			logging.With(ctx, n.log).Warn().Err(err).Int64("chat_id", id).Msg("review message not delivered")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	if sent > 0 {
		return nil
	}
	return fmt.Errorf("telegram: %w", firstErr)
}

func formatReview(tr *i18n.Translator, m adapter.ReviewMessage) string {
	amount := fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, strings.ToUpper(m.Currency))
	lines := []string{
		"<b>" + html.EscapeString(tr.T("review_title")) + "</b>",
		tr.T("review_intent", "<code>"+html.EscapeString(m.IntentID)+"</code>"),
		tr.T("review_rail", html.EscapeString(m.Rail)),
		tr.T("review_user", m.UserID),
		tr.T("review_program", html.EscapeString(m.Program)),
		tr.T("review_amount", amount),
	}
	if m.Evidence != "" {
		lines = append(lines, tr.T("review_tx", "<code>"+html.EscapeString(m.Evidence)+"</code>"))
	}
	lines = append(lines, tr.T("review_action", html.EscapeString(m.IntentID)))
	return strings.Join(lines, "\n")
}

// LogNotifier stands in when no bot token is configured: reviewers poll
// GET /admin/payments/review instead.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) NotifyReview(ctx context.Context, msg adapter.ReviewMessage) error {
	logging.With(ctx, n.log).Info().
		Str("intent_id", msg.IntentID).
		Str("rail", msg.Rail).
		Int64("user_id", msg.UserID).
		Str("program", msg.Program).
		Msg("payment awaiting review")
	return nil
}
