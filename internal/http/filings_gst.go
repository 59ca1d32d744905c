package http

import (
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
	gstinPattern  = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)
	periodPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-[0-9]{4}$`)
)

var gstReturnTypes = map[string]bool{
	"GSTR1":  true,
	"GSTR3B": true,
	"GSTR4":  true,
	"GSTR9":  true,
	"GSTR9C": true,
}

type gstFilingRequest struct {
	GSTIN      string            `json:"gstin"`
	ReturnType string            `json:"returnType"`
	Period     string            `json:"period"`
	Form       model.GSTFormData `json:"form"`
}

type gstFilingResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	GSTIN           string            `json:"gstin"`
	ReturnType      string            `json:"returnType"`
	Period          string            `json:"period"`
	Form            model.GSTFormData `json:"form"`
	Status          string            `json:"status"`
	AckNumber       *string           `json:"ackNumber,omitempty"`
	FiledAt         *time.Time        `json:"filedAt,omitempty"`
	Remarks         *string           `json:"remarks,omitempty"`
	RejectionReason *string           `json:"rejectionReason,omitempty"`
	AllowedNext     []filing.Status   `json:"allowedNext"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func mapGSTFiling(f model.GSTFiling) gstFilingResponse {
	return gstFilingResponse{
		ID:              f.ID,
		UserID:          f.UserID,
		GSTIN:           f.GSTIN,
		ReturnType:      f.ReturnType,
		Period:          f.Period,
		Form:            f.Form,
		Status:          string(f.Status),
		AckNumber:       f.AckNumber,
		FiledAt:         f.FiledAt,
		Remarks:         f.Remarks,
		RejectionReason: f.RejectionReason,
		AllowedNext:     filing.AllowedNext(filing.KindGST, f.Status),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

func (s *Server) loadGSTFiling(w http.ResponseWriter, r *http.Request, claims *auth.Claims) (model.GSTFiling, bool) {
	f, err := s.store.GetGSTFiling(r.Context(), chi.URLParam(r, "filingId"))
	if err != nil {
		writeStoreError(w, err, "get gst filing")
		return model.GSTFiling{}, false
	}
	if f.UserID != claims.UserID && claims.Role != model.RoleStaff {
		writeError(w, http.StatusNotFound, "not_found")
		return model.GSTFiling{}, false
	}
	return f, true
}

func (s *Server) handleCreateGSTFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req gstFilingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !gstinPattern.MatchString(req.GSTIN) {
		writeError(w, http.StatusBadRequest, "invalid_gstin")
		return
	}
	if !gstReturnTypes[req.ReturnType] {
		writeError(w, http.StatusBadRequest, "invalid_return_type")
		return
	}
	if !periodPattern.MatchString(req.Period) {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}

	now := time.Now().UTC()
	f := model.GSTFiling{
		ID:         uuid.NewString(),
		UserID:     claims.UserID,
		GSTIN:      req.GSTIN,
		ReturnType: req.ReturnType,
		Period:     req.Period,
		Form:       req.Form,
		Status:     filing.StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateGSTFiling(r.Context(), f); err != nil {
		writeStoreError(w, err, "create gst filing")
		return
	}

	s.producer.Publish(events.Event{Type: "filing.created", UserID: claims.UserID, Subject: f.ID, Detail: map[string]string{"kind": "GST"}})
	writeJSON(w, http.StatusCreated, mapGSTFiling(f))
}

func (s *Server) handleListGSTFilings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	q := r.URL.Query()

	filter := repository.FilingFilter{
		UserID: claims.UserID,
		Year:   q.Get("period"),
		Page:   atoiOrZero(q.Get("page")),
		Limit:  atoiOrZero(q.Get("limit")),
	}
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

	filings, total, err := s.store.ListGSTFilings(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "list gst filings")
		return
	}

	items := make([]gstFilingResponse, 0, len(filings))
	for _, f := range filings {
		items = append(items, mapGSTFiling(f))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filings": items,
		"total":   total,
	})
}

func (s *Server) handleGSTSummary(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	userID := claims.UserID
	if claims.Role == model.RoleStaff {
		userID = r.URL.Query().Get("userId")
	}
	summary, err := s.store.GSTStatusSummary(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "gst status summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

func (s *Server) handleGetGSTFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadGSTFiling(w, r, claims)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapGSTFiling(f))
}

func (s *Server) handlePatchGSTFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadGSTFiling(w, r, claims)
	if !ok {
		return
	}

	var req struct {
		gstFilingRequest
		Remarks *string `json:"remarks"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if req.Remarks != nil {
		updated, err := s.store.UpdateGSTRemarks(r.Context(), f.ID, *req.Remarks)
		if err != nil {
			writeStoreError(w, err, "update gst remarks")
			return
		}
		if !updated {
			writeError(w, http.StatusConflict, "filing_not_editable")
			return
		}
	}

	if req.GSTIN != "" || req.ReturnType != "" || req.Period != "" || req.Form != (model.GSTFormData{}) {
		if f.UserID != claims.UserID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if !filing.Editable(f.Status) {
			writeError(w, http.StatusConflict, "filing_not_editable")
			return
		}
		gstin := f.GSTIN
		if req.GSTIN != "" {
			if !gstinPattern.MatchString(req.GSTIN) {
				writeError(w, http.StatusBadRequest, "invalid_gstin")
				return
			}
			gstin = req.GSTIN
		}
		returnType := f.ReturnType
		if req.ReturnType != "" {
			if !gstReturnTypes[req.ReturnType] {
				writeError(w, http.StatusBadRequest, "invalid_return_type")
				return
			}
			returnType = req.ReturnType
		}
		period := f.Period
		if req.Period != "" {
			if !periodPattern.MatchString(req.Period) {
				writeError(w, http.StatusBadRequest, "invalid_period")
				return
			}
			period = req.Period
		}
		form := f.Form
		if req.Form != (model.GSTFormData{}) {
			form = req.Form
		}
		updated, err := s.store.UpdateGSTForm(r.Context(), f.ID, gstin, returnType, period, form)
		if err != nil {
			writeStoreError(w, err, "update gst form")
			return
		}
		if !updated {
			writeError(w, http.StatusConflict, "filing_not_editable")
			return
		}
	}

	fresh, err := s.store.GetGSTFiling(r.Context(), f.ID)
	if err != nil {
		writeStoreError(w, err, "reload gst filing")
		return
	}
	writeJSON(w, http.StatusOK, mapGSTFiling(fresh))
}

func (s *Server) handleDeleteGSTFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadGSTFiling(w, r, claims)
	if !ok {
		return
	}
	if f.UserID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	deleted, err := s.store.DeleteGSTFiling(r.Context(), f.ID)
	if err != nil {
		writeStoreError(w, err, "delete gst filing")
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "filing_not_deletable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSubmitGSTFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadGSTFiling(w, r, claims)
	if !ok {
		return
	}

	actor := filing.Actor{Role: claims.Role, IsOwner: f.UserID == claims.UserID}
	if err := filing.CheckTransition(filing.KindGST, actor, f.Status, filing.StatusDocumentsPending, filing.TransitionInput{}); err != nil {
		writeTransitionError(w, err)
		return
	}
	s.applyGSTTransition(w, r, f, f.Status, filing.StatusDocumentsPending, filing.TransitionInput{}, nil)
}

func (s *Server) handleTransitionGSTFiling(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadGSTFiling(w, r, claims)
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
	if err := filing.CheckTransition(filing.KindGST, actor, f.Status, to, in); err != nil {
		writeTransitionError(w, err)
		return
	}
	s.applyGSTTransition(w, r, f, f.Status, to, in, &claims.UserID)
}

func (s *Server) applyGSTTransition(w http.ResponseWriter, r *http.Request, f model.GSTFiling, from, to filing.Status, in filing.TransitionInput, reviewerID *string) {
	moved, err := s.store.TransitionGSTFiling(r.Context(), f.ID, from, to, in, reviewerID)
	if err != nil {
		writeStoreError(w, err, "transition gst filing")
		return
	}
	if !moved {
		writeError(w, http.StatusConflict, "status_conflict")
		return
	}

	filingTransitions.WithLabelValues("GST", string(to)).Inc()
	s.producer.Publish(events.Event{
		Type:    "filing.transition",
		UserID:  f.UserID,
		Subject: f.ID,
		Detail:  map[string]string{"kind": "GST", "from": string(from), "to": string(to)},
	})

	fresh, err := s.store.GetGSTFiling(r.Context(), f.ID)
	if err != nil {
		writeStoreError(w, err, "reload gst filing")
		return
	}
	writeJSON(w, http.StatusOK, mapGSTFiling(fresh))
}

func (s *Server) handleGSTComputation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	f, ok := s.loadGSTFiling(w, r, claims)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tax.ComputeGST(f.Form))
}
