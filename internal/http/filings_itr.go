package http

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adarsh745/etaxmentor-sub000/internal/auth"
	"github.com/adarsh745/etaxmentor-sub000/internal/events"
	"github.com/adarsh745/etaxmentor-sub000/internal/filing"
	"github.com/adarsh745/etaxmentor-sub000/internal/model"
	"github.com/adarsh745/etaxmentor-sub000/internal/repository"
	"github.com/adarsh745/etaxmentor-sub000/internal/tax"
)

var (
	panPattern            = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	assessmentYearPattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}$`)
)

type itrFilingRequest struct {
	PAN            string            `json:"pan"`
	AssessmentYear string            `json:"assessmentYear"`
	Form           model.ITRFormData `json:"form"`
}

type itrFilingResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	PAN             string            `json:"pan"`
	AssessmentYear  string            `json:"assessmentYear"`
	Form            model.ITRFormData `json:"form"`
	Status          string            `json:"status"`
	AckNumber       *string           `json:"ackNumber,omitempty"`
	FiledAt         *time.Time        `json:"filedAt,omitempty"`
	Remarks         *string           `json:"remarks,omitempty"`
	RejectionReason *string           `json:"rejectionReason,omitempty"`
	RefundAmount    *int64            `json:"refundAmount,omitempty"`
	AllowedNext     []filing.Status   `json:"allowedNext"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func mapITRFiling(f model.ITRFiling) itrFilingResponse {
	return itrFilingResponse{
		ID:              f.ID,
		UserID:          f.UserID,
		PAN:             f.PAN,
		AssessmentYear:  f.AssessmentYear,
		Form:            f.Form,
		Status:          string(f.Status),
		AckNumber:       f.AckNumber,
		FiledAt:         f.FiledAt,
		Remarks:         f.Remarks,
		RejectionReason: f.RejectionReason,
		RefundAmount:    f.RefundAmount,
		AllowedNext:     filing.AllowedNext(filing.KindITR, f.Status),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

type transitionRequest struct {
	To           string `json:"to"`
	Reason       string `json:"reason"`
	AckNumber    string `json:"ackNumber"`
	RefundAmount int64  `json:"refundAmount"`
}

// writeTransitionError maps lifecycle validation failures onto HTTP codes.
func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, filing.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "unknown_status")
	case errors.Is(err, filing.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition")
	case errors.Is(err, filing.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, filing.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "rejection_reason_required")
	case errors.Is(err, filing.ErrAckRequired):
		writeError(w, http.StatusBadRequest, "ack_number_required")
	case errors.Is(err, filing.ErrRefundNotDue):
		writeError(w, http.StatusBadRequest, "refund_not_applicable")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

// loadITRFiling fetches a filing and enforces visibility: owners and staff
// see the row, everyone else gets the same 404 as a missing id.
func (s *Server) loadITRFiling(w http.ResponseWriter, r *http.Request, claims *auth.Claims) (model.ITRFiling, bool) {
	f, err := s.store.GetITRFiling(r.Context(), chi.URLParam(r, "filingId"))
	if err != nil {
		writeStoreError(w, err, "get itr filing")
		return model.ITRFiling{}, false
	}
	if f.UserID != claims.UserID && claims.Role != model.RoleStaff {
		writeError(w, http.StatusNotFound, "not_found")
		return model.ITRFiling{}, false
	}
	return f, true
}

func (s *Server) handleCreateITRFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req itrFilingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !panPattern.MatchString(req.PAN) {
		writeError(w, http.StatusBadRequest, "invalid_pan")
		return
	}
	if !assessmentYearPattern.MatchString(req.AssessmentYear) {
		writeError(w, http.StatusBadRequest, "invalid_assessment_year")
		return
	}

	now := time.Now().UTC()
	f := model.ITRFiling{
		ID:             uuid.NewString(),
		UserID:         claims.UserID,
		PAN:            req.PAN,
		AssessmentYear: req.AssessmentYear,
		Form:           req.Form,
		Status:         filing.StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateITRFiling(r.Context(), f); err != nil {
		writeStoreError(w, err, "create itr filing")
		return
	}

	s.producer.Publish(events.Event{Type: "filing.created", UserID: claims.UserID, Subject: f.ID, Detail: map[string]string{"kind": "ITR"}})
	writeJSON(w, http.StatusCreated, mapITRFiling(f))
}

func (s *Server) handleListITRFilings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	q := r.URL.Query()

	filter := repository.FilingFilter{
		UserID: claims.UserID,
		Year:   q.Get("assessmentYear"),
		Page:   atoiOrZero(q.Get("page")),
		Limit:  atoiOrZero(q.Get("limit")),
	}
	// Staff browse across users; an explicit userId narrows the view.
	if claims.Role == model.RoleStaff {
		filter.UserID = q.Get("userId")
	}
	if raw := q.Get("status"); raw != "" {
		status, err := filing.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_status")
			return
		}
		filter.Status = string(status)
	}

	filings, total, err := s.store.ListITRFilings(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "list itr filings")
		return
	}

	items := make([]itrFilingResponse, 0, len(filings))
	for _, f := range filings {
		items = append(items, mapITRFiling(f))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filings": items,
		"total":   total,
	})
}

func (s *Server) handleITRSummary(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	userID := claims.UserID
	if claims.Role == model.RoleStaff {
		userID = r.URL.Query().Get("userId")
	}
	summary, err := s.store.ITRStatusSummary(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "itr status summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

func (s *Server) handleGetITRFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadITRFiling(w, r, claims)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapITRFiling(f))
}

func (s *Server) handlePatchITRFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadITRFiling(w, r, claims)
	if !ok {
		return
	}

	var req struct {
		itrFilingRequest
		Remarks *string `json:"remarks"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	// Remarks stay writable after submission; everything else only while the
	// filing is still editable by its owner.
	if req.Remarks != nil {
		if f.UserID != claims.UserID && claims.Role != model.RoleStaff {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		updated, err := s.store.UpdateITRRemarks(r.Context(), f.ID, *req.Remarks)
		if err != nil {
			writeStoreError(w, err, "update itr remarks")
			return
		}
		if !updated {
			writeError(w, http.StatusConflict, "filing_not_editable")
			return
		}
	}

	if req.PAN != "" || req.AssessmentYear != "" || req.Form != (model.ITRFormData{}) {
		if f.UserID != claims.UserID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if !filing.Editable(f.Status) {
			writeError(w, http.StatusConflict, "filing_not_editable")
			return
		}
		pan := f.PAN
		if req.PAN != "" {
			if !panPattern.MatchString(req.PAN) {
				writeError(w, http.StatusBadRequest, "invalid_pan")
				return
			}
			pan = req.PAN
		}
		year := f.AssessmentYear
		if req.AssessmentYear != "" {
			if !assessmentYearPattern.MatchString(req.AssessmentYear) {
				writeError(w, http.StatusBadRequest, "invalid_assessment_year")
				return
			}
			year = req.AssessmentYear
		}
		form := f.Form
		if req.Form != (model.ITRFormData{}) {
			form = req.Form
		}
		updated, err := s.store.UpdateITRForm(r.Context(), f.ID, pan, year, form)
		if err != nil {
			writeStoreError(w, err, "update itr form")
			return
		}
		if !updated {
			writeError(w, http.StatusConflict, "filing_not_editable")
			return
		}
	}

	fresh, err := s.store.GetITRFiling(r.Context(), f.ID)
	if err != nil {
		writeStoreError(w, err, "reload itr filing")
		return
	}
	writeJSON(w, http.StatusOK, mapITRFiling(fresh))
}

func (s *Server) handleDeleteITRFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadITRFiling(w, r, claims)
	if !ok {
		return
	}
	if f.UserID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	deleted, err := s.store.DeleteITRFiling(r.Context(), f.ID)
	if err != nil {
		writeStoreError(w, err, "delete itr filing")
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "filing_not_deletable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSubmitITRFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadITRFiling(w, r, claims)
	if !ok {
		return
	}

	actor := filing.Actor{Role: claims.Role, IsOwner: f.UserID == claims.UserID}
	if err := filing.CheckTransition(filing.KindITR, actor, f.Status, filing.StatusDocumentsPending, filing.TransitionInput{}); err != nil {
		writeTransitionError(w, err)
		return
	}
	s.applyITRTransition(w, r, f, f.Status, filing.StatusDocumentsPending, filing.TransitionInput{}, nil)
}

func (s *Server) handleTransitionITRFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadITRFiling(w, r, claims)
	if !ok {
		return
	}

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	to, err := filing.ParseStatus(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_status")
		return
	}

	in := filing.TransitionInput{Reason: req.Reason, AckNumber: req.AckNumber, RefundAmount: req.RefundAmount}
	actor := filing.Actor{Role: claims.Role, IsOwner: f.UserID == claims.UserID}
	if err := filing.CheckTransition(filing.KindITR, actor, f.Status, to, in); err != nil {
		writeTransitionError(w, err)
		return
	}
	s.applyITRTransition(w, r, f, f.Status, to, in, &claims.UserID)
}

func (s *Server) applyITRTransition(w http.ResponseWriter, r *http.Request, f model.ITRFiling, from, to filing.Status, in filing.TransitionInput, reviewerID *string) {
	moved, err := s.store.TransitionITRFiling(r.Context(), f.ID, from, to, in, reviewerID)
	if err != nil {
		writeStoreError(w, err, "transition itr filing")
		return
	}
	if !moved {
		// Someone else changed the status between read and write.
		writeError(w, http.StatusConflict, "status_conflict")
		return
	}

	filingTransitions.WithLabelValues("ITR", string(to)).Inc()
	s.producer.Publish(events.Event{
		Type:    "filing.transition",
		UserID:  f.UserID,
		Subject: f.ID,
		Detail:  map[string]string{"kind": "ITR", "from": string(from), "to": string(to)},
	})

	fresh, err := s.store.GetITRFiling(r.Context(), f.ID)
	if err != nil {
		writeStoreError(w, err, "reload itr filing")
		return
	}
	writeJSON(w, http.StatusOK, mapITRFiling(fresh))
}

func (s *Server) handleITRComputation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadITRFiling(w, r, claims)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tax.ComputeITR(f.Form))
}
