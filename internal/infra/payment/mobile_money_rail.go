package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/infra/metrics"
	"forex-academy/internal/infra/security"
	"forex-academy/internal/infra/worker"
)

var (
	_ adapter.PaymentRail       = (*MobileMoneyRail)(nil)
	_ adapter.MobileMoneyPusher = (*MobileMoneyRail)(nil)
)

const (
	CallbackStatusSuccess = "success"
	CallbackStatusFailed  = "failed"
)

// CallbackBody is what the provider (or the simulator) posts to the callback endpoint.
type CallbackBody struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason,omitempty"`
}

// CallbackSink receives a signed callback exactly as the HTTP endpoint would.
type CallbackSink func(ctx context.Context, payload []byte, signature string) error

// Scheduler runs a task after a delay; worker.Pool satisfies it.
type Scheduler interface {
	SubmitAfter(delay time.Duration, task worker.Task)
}

// MobileMoneyRail authenticates provider callbacks with HMAC-SHA256 over the raw body.
// With simulate on, Push schedules a signed callback instead of calling a provider.
type MobileMoneyRail struct {
	secret   []byte
	simulate bool
	delay    time.Duration
	sched    Scheduler
	sink     CallbackSink
	log      *zerolog.Logger
}

func NewMobileMoneyRail(secret string, simulate bool, delay time.Duration, sched Scheduler, logger *zerolog.Logger) *MobileMoneyRail {
	return &MobileMoneyRail{secret: []byte(secret), simulate: simulate, delay: delay, sched: sched, log: logger}
}

// SetCallbackSink wires the simulator to the confirmation path. Set once during startup.
func (r *MobileMoneyRail) SetCallbackSink(sink CallbackSink) { r.sink = sink }

func (r *MobileMoneyRail) Name() string { return adapter.RailMobileMoney }

func (r *MobileMoneyRail) CreateIntent(_ context.Context, req adapter.IntentRequest) (adapter.IntentResult, error) {
	ref := "mm_" + ulid.Make().String()
	return adapter.IntentResult{
		ProviderRef: ref,
		Instructions: map[string]string{
			"reference": ref,
			"next":      "submit the paying phone number to start the handset prompt",
		},
	}, nil
}

func (r *MobileMoneyRail) Push(ctx context.Context, req adapter.PushRequest) error {
	start := time.Now()
	if !r.simulate {
		metrics.ObserveRailCall(adapter.RailMobileMoney, "push", false, time.Since(start).Seconds())
		return fmt.Errorf("%w: no mobile money provider configured", domain.ErrUpstreamRail)
	}
	if r.sink == nil || r.sched == nil {
		return fmt.Errorf("%w: simulator not wired", domain.ErrUpstreamRail)
	}

	body := CallbackBody{
		Reference:     req.Reference,
		Status:        CallbackStatusSuccess,
		TransactionID: "MMT" + ulid.Make().String(),
	}
	// Numbers ending in 000 simulate a declined prompt.
	if strings.HasSuffix(req.MSISDN, "000") {
		body.Status = CallbackStatusFailed
		body.Reason = "insufficient_funds"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	sig := SignCallback(r.secret, payload)

	r.log.Info().
		Str("reference", req.Reference).
		Str("msisdn", security.MaskPhone(req.MSISDN)).
		Dur("delay", r.delay).
		Msg("simulated mobile money prompt sent")

	sink := r.sink
	r.sched.SubmitAfter(r.delay, func(ctx context.Context) error {
		return sink(ctx, payload, sig)
	})
	metrics.ObserveRailCall(adapter.RailMobileMoney, "push", true, time.Since(start).Seconds())
	return nil
}

func (r *MobileMoneyRail) HandleConfirmation(_ context.Context, in adapter.ConfirmationInput) (adapter.Confirmation, error) {
	if !VerifyCallbackSignature(r.secret, in.Payload, in.Signature) {
		return adapter.Confirmation{}, fmt.Errorf("%w: callback signature mismatch", domain.ErrSignatureInvalid)
	}
	var body CallbackBody
	if err := json.Unmarshal(in.Payload, &body); err != nil {
		return adapter.Confirmation{}, fmt.Errorf("%w: decode callback: %v", domain.ErrInvalidInput, err)
	}
	if body.Reference == "" {
		return adapter.Confirmation{}, fmt.Errorf("%w: callback without reference", domain.ErrInvalidInput)
	}

	c := adapter.Confirmation{
		EventID:     body.TransactionID,
		EventType:   "mobile_money." + body.Status,
		ProviderRef: body.Reference,
	}
	switch body.Status {
	case CallbackStatusSuccess:
		c.Outcome = adapter.OutcomeConfirmed
	case CallbackStatusFailed:
		c.Outcome = adapter.OutcomeFailed
		c.Reason = body.Reason
		if c.Reason == "" {
			c.Reason = "declined"
		}
	default:
		c.Outcome = adapter.OutcomeIgnored
	}
	return c, nil
}

// SignCallback returns hex(HMAC-SHA256(secret, body)).
func SignCallback(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyCallbackSignature(secret, body []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	expected := SignCallback(secret, body)
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
