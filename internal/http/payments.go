package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adarsh745/etaxmentor-sub000/internal/events"
	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

var paymentPurposes = map[string]bool{
	"FILING_FEE":   true,
	"CONSULTATION": true,
	"PENALTY":      true,
}

type paymentResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	FilingKind  *string   `json:"filingKind,omitempty"`
	FilingID    *string   `json:"filingId,omitempty"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Purpose     string    `json:"purpose"`
	Status      string    `json:"status"`
	ProviderRef *string   `json:"providerRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func mapPayment(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		FilingKind:  p.FilingKind,
		FilingID:    p.FilingID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Purpose:     p.Purpose,
		Status:      p.Status,
		ProviderRef: p.ProviderRef,
		CreatedAt:   p.CreatedAt,
	}
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	userID := claims.UserID
	if claims.Role == model.RoleStaff {
		userID = r.URL.Query().Get("userId")
	}

	payments, err := s.store.ListPayments(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "list payments")
		return
	}

	items := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, mapPayment(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": items})
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req struct {
		Amount     int64   `json:"amount"`
		Purpose    string  `json:"purpose"`
		FilingKind *string `json:"filingKind"`
		FilingID   *string `json:"filingId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if !paymentPurposes[req.Purpose] {
		writeError(w, http.StatusBadRequest, "invalid_purpose")
		return
	}
	if (req.FilingKind == nil) != (req.FilingID == nil) {
		writeError(w, http.StatusBadRequest, "invalid_filing_ref")
		return
	}
	if req.FilingKind != nil && *req.FilingKind != "ITR" && *req.FilingKind != "GST" {
		writeError(w, http.StatusBadRequest, "invalid_filing_kind")
		return
	}

	payment := model.Payment{
		ID:         uuid.NewString(),
		UserID:     claims.UserID,
		FilingKind: req.FilingKind,
		FilingID:   req.FilingID,
		Amount:     req.Amount,
		Currency:   "INR",
		Purpose:    req.Purpose,
		Status:     model.PaymentStatusCreated,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreatePayment(r.Context(), payment); err != nil {
		writeStoreError(w, err, "create payment")
		return
	}

	s.producer.Publish(events.Event{Type: "payment.created", UserID: claims.UserID, Subject: payment.ID})
	writeJSON(w, http.StatusCreated, mapPayment(payment))
}

// handleSettlePayment records the gateway outcome for a pending payment. The
// gateway itself is out of process; staff post its verdict here.
func (s *Server) handleSettlePayment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req struct {
		Outcome     string  `json:"outcome"`
		ProviderRef *string `json:"providerRef"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Outcome != model.PaymentStatusSucceeded && req.Outcome != model.PaymentStatusFailed {
		writeError(w, http.StatusBadRequest, "invalid_outcome")
		return
	}

	paymentID := chi.URLParam(r, "paymentId")
	payment, err := s.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		writeStoreError(w, err, "get payment")
		return
	}

	settled, err := s.store.SettlePayment(r.Context(), paymentID, req.Outcome, req.ProviderRef)
	if err != nil {
		writeStoreError(w, err, "settle payment")
		return
	}
	if !settled {
		writeError(w, http.StatusConflict, "already_settled")
		return
	}

	s.producer.Publish(events.Event{
		Type:    "payment.settled",
		UserID:  payment.UserID,
		Subject: paymentID,
		Detail:  map[string]string{"outcome": req.Outcome, "by": claims.UserID},
	})

	fresh, err := s.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		writeStoreError(w, err, "reload payment")
		return
	}
	writeJSON(w, http.StatusOK, mapPayment(fresh))
}
