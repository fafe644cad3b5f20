package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/adapter"
	"forex-academy/internal/infra/logging"
	"forex-academy/internal/usecase"
)

type createIntentRequest struct {
	Amount  int64  `json:"amount"`
	UserID  int64  `json:"userId"`
	Program string `json:"program"`
	Rail    string `json:"rail,omitempty"`
}

type createIntentResponse struct {
	ClientSecret string            `json:"clientSecret,omitempty"`
	IntentID     string            `json:"intentId"`
	Rail         string            `json:"rail"`
	Reference    string            `json:"reference,omitempty"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Instructions map[string]string `json:"instructions,omitempty"`
}

type intentView struct {
	ID            string     `json:"id"`
	Rail          string     `json:"rail"`
	Reference     string     `json:"reference,omitempty"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	UserID        int64      `json:"userId"`
	Program       string     `json:"program"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
}

func toIntentView(p *model.PaymentIntent) intentView {
	return intentView{
		ID:            p.ID,
		Rail:          p.Rail,
		Reference:     p.ProviderRef,
		Amount:        p.Amount,
		Currency:      p.Currency,
		UserID:        p.UserID,
		Program:       p.Program,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		ConfirmedAt:   p.ConfirmedAt,
	}
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	uid, _ := logging.UserIDFrom(r.Context())
	// userId in the body is optional; when present it must be the caller.
	if req.UserID != 0 && req.UserID != uid {
		writeError(w, r, s.log, domain.ErrForbidden)
		return
	}
	out, err := s.pay.CreateIntent(r.Context(), usecase.CreateIntentInput{
		UserID:  uid,
		Program: req.Program,
		Amount:  req.Amount,
		Rail:    req.Rail,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, createIntentResponse{
		ClientSecret: out.ClientSecret,
		IntentID:     out.IntentID,
		Rail:         out.Rail,
		Reference:    out.ProviderRef,
		Amount:       out.Amount,
		Currency:     out.Currency,
		Instructions: out.Instructions,
	})
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	s.handleRailCallback(w, r, adapter.RailCard, r.Header.Get("Stripe-Signature"))
}

func (s *Server) handleMobileMoneyCallback(w http.ResponseWriter, r *http.Request) {
	s.handleRailCallback(w, r, adapter.RailMobileMoney, r.Header.Get("X-Callback-Signature"))
}

// handleRailCallback passes the raw body through untouched; signatures are
// computed over the exact bytes. Any non-2xx makes the provider redeliver.
func (s *Server) handleRailCallback(w http.ResponseWriter, r *http.Request, rail, signature string) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, s.log, domain.ErrInvalidInput)
		return
	}
	if _, err := s.pay.HandleWebhook(r.Context(), rail, payload, signature); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type cryptoSubmitRequest struct {
	IntentID string `json:"intentId"`
	TxHash   string `json:"txHash"`
}

func (s *Server) handleCryptoSubmit(w http.ResponseWriter, r *http.Request) {
	var req cryptoSubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	uid, _ := logging.UserIDFrom(r.Context())
	p, err := s.pay.SubmitCrypto(r.Context(), uid, req.IntentID, req.TxHash)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toIntentView(p))
}

type mobileMoneyRequest struct {
	IntentID string `json:"intentId"`
	Phone    string `json:"phone"`
}

func (s *Server) handleMobileMoneyRequest(w http.ResponseWriter, r *http.Request) {
	var req mobileMoneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	uid, _ := logging.UserIDFrom(r.Context())
	p, err := s.pay.RequestMobileMoney(r.Context(), uid, req.IntentID, req.Phone)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent", "intent": toIntentView(p)})
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	uid, _ := logging.UserIDFrom(r.Context())
	p, err := s.pay.GetIntent(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntentView(p))
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	items, err := s.pay.ListAwaitingReview(r.Context(), limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]intentView, 0, len(items))
	for _, p := range items {
		out = append(out, toIntentView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	adminID, _ := logging.UserIDFrom(r.Context())
	res, err := s.pay.ApproveManual(r.Context(), adminID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"intentId": res.IntentID, "outcome": res.Outcome})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, s.log, err)
			return
		}
	}
	adminID, _ := logging.UserIDFrom(r.Context())
	p, err := s.pay.RejectManual(r.Context(), adminID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntentView(p))
}
