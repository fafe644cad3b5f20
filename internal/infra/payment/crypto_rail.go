package payment

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/ports/adapter"
)

var _ adapter.PaymentRail = (*CryptoRail)(nil)

// 32-byte transaction ids as used by EVM chains and Tron, with or without 0x.
var txHashRe = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// CryptoRail hands out receiving addresses and accepts a user submitted tx hash.
// It does not read any chain: a submitted hash only moves the intent to submitted,
// and staff confirm or reject it.
type CryptoRail struct {
	addresses map[string]string
}

func NewCryptoRail(addresses map[string]string) *CryptoRail {
	cp := make(map[string]string, len(addresses))
	for k, v := range addresses {
		cp[strings.ToLower(k)] = v
	}
	return &CryptoRail{addresses: cp}
}

func (r *CryptoRail) Name() string { return adapter.RailCrypto }

func (r *CryptoRail) CreateIntent(_ context.Context, req adapter.IntentRequest) (adapter.IntentResult, error) {
	if len(r.addresses) == 0 {
		return adapter.IntentResult{}, fmt.Errorf("%w: no receiving address configured", domain.ErrUpstreamRail)
	}
	ref := "cr_" + ulid.Make().String()
	instr := map[string]string{
		"reference": ref,
		"amount":    fmt.Sprintf("%d", req.Amount),
		"currency":  req.Currency,
	}
	assets := make([]string, 0, len(r.addresses))
	for asset := range r.addresses {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		instr["address_"+asset] = r.addresses[asset]
	}
	return adapter.IntentResult{ProviderRef: ref, Instructions: instr}, nil
}

// HandleConfirmation validates a tx hash submission for the intent named by Reference.
func (r *CryptoRail) HandleConfirmation(_ context.Context, in adapter.ConfirmationInput) (adapter.Confirmation, error) {
	hash := strings.TrimSpace(in.Evidence)
	if !txHashRe.MatchString(hash) {
		return adapter.Confirmation{}, domain.ErrInvalidTxHash
	}
	if in.Reference == "" {
		return adapter.Confirmation{}, fmt.Errorf("%w: missing reference", domain.ErrInvalidInput)
	}
	hash = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X"))
	return adapter.Confirmation{
		Outcome:     adapter.OutcomeSubmitted,
		EventID:     "tx:" + hash,
		EventType:   "crypto.tx_submitted",
		ProviderRef: in.Reference,
	}, nil
}
