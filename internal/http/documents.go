package http

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adarsh745/etaxmentor-sub000/internal/events"
	"github.com/adarsh745/etaxmentor-sub000/internal/model"
	"github.com/adarsh745/etaxmentor-sub000/internal/storage"
)

type documentResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	FilingKind      *string    `json:"filingKind,omitempty"`
	FilingID        *string    `json:"filingId,omitempty"`
	OriginalName    string     `json:"originalName"`
	MimeType        string     `json:"mimeType"`
	SizeBytes       int64      `json:"sizeBytes"`
	DocType         string     `json:"docType"`
	FinancialYear   *string    `json:"financialYear,omitempty"`
	Status          string     `json:"status"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func mapDocument(d model.Document) documentResponse {
	return documentResponse{
		ID:              d.ID,
		UserID:          d.UserID,
		FilingKind:      d.FilingKind,
		FilingID:        d.FilingID,
		OriginalName:    d.OriginalName,
		MimeType:        d.MimeType,
		SizeBytes:       d.SizeBytes,
		DocType:         d.DocType,
		FinancialYear:   d.FinancialYear,
		Status:          d.Status,
		RejectionReason: d.RejectionReason,
		VerifiedAt:      d.VerifiedAt,
		CreatedAt:       d.CreatedAt,
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	userID := claims.UserID
	if claims.Role == model.RoleStaff {
		if requested := r.URL.Query().Get("userId"); requested != "" {
			userID = requested
		}
	}

	docs, err := s.store.ListDocuments(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "list documents")
		return
	}

	items := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, mapDocument(d))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": items})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	// Cap the request body before parsing so an oversized upload never
	// buffers past the limit. The slack covers the other multipart fields.
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+64*1024)
	if err := r.ParseMultipartForm(storage.MaxUploadBytes + 64*1024); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			documentUploads.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file")
		return
	}
	defer file.Close()

	docType := r.FormValue("docType")
	if docType == "" {
		writeError(w, http.StatusBadRequest, "missing_doc_type")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if err := storage.Validate(header.Size, mimeType); err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			documentUploads.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
		case errors.Is(err, storage.ErrUnsupportedType):
			documentUploads.WithLabelValues("unsupported_type").Inc()
			writeError(w, http.StatusUnsupportedMediaType, "unsupported_type")
		default:
			writeError(w, http.StatusBadRequest, "invalid_request")
		}
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if int64(len(data)) > storage.MaxUploadBytes {
		documentUploads.WithLabelValues("too_large").Inc()
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
		return
	}

	key := storage.NewKey(claims.UserID, mimeType)
	if err := s.blobs.Put(r.Context(), key, data, mimeType); err != nil {
		documentUploads.WithLabelValues("error").Inc()
		log.Printf("blob write error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	doc := model.Document{
		ID:           uuid.NewString(),
		UserID:       claims.UserID,
		StoredName:   key,
		OriginalName: header.Filename,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		StorageKey:   key,
		DocType:      docType,
		Status:       model.DocumentStatusUploaded,
		CreatedAt:    time.Now().UTC(),
	}
	if v := r.FormValue("financialYear"); v != "" {
		doc.FinancialYear = &v
	}
	if kind, id := r.FormValue("filingKind"), r.FormValue("filingId"); kind != "" && id != "" {
		if kind != "ITR" && kind != "GST" {
			writeError(w, http.StatusBadRequest, "invalid_filing_kind")
			return
		}
		doc.FilingKind = &kind
		doc.FilingID = &id
	}

	if err := s.store.CreateDocument(r.Context(), doc); err != nil {
		// The blob is already written; remove it so no orphan bytes linger.
		if cleanupErr := s.blobs.Delete(r.Context(), key); cleanupErr != nil {
			log.Printf("orphan blob cleanup error for %s: %v", key, cleanupErr)
		}
		documentUploads.WithLabelValues("error").Inc()
		writeStoreError(w, err, "create document")
		return
	}

	documentUploads.WithLabelValues("accepted").Inc()
	s.producer.Publish(events.Event{Type: "document.uploaded", UserID: claims.UserID, Subject: doc.ID, Detail: map[string]string{"docType": docType}})
	writeJSON(w, http.StatusCreated, mapDocument(doc))
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		writeStoreError(w, err, "get document")
		return
	}
	if doc.UserID != claims.UserID && claims.Role != model.RoleStaff {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	blob, err := s.blobs.Get(r.Context(), doc.StorageKey)
	if err != nil {
		log.Printf("blob read error for %s: %v", doc.StorageKey, err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.OriginalName))
	if _, err := io.Copy(w, blob); err != nil {
		log.Printf("blob stream error for %s: %v", doc.StorageKey, err)
	}
}

func (s *Server) handleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req struct {
		Outcome string `json:"outcome"`
		Reason  string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Outcome != model.DocumentStatusVerified && req.Outcome != model.DocumentStatusRejected {
		writeError(w, http.StatusBadRequest, "invalid_outcome")
		return
	}
	var reason *string
	if req.Outcome == model.DocumentStatusRejected {
		if req.Reason == "" {
			writeError(w, http.StatusBadRequest, "reason_required")
			return
		}
		reason = &req.Reason
	}

	docID := chi.URLParam(r, "documentId")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		writeStoreError(w, err, "get document")
		return
	}

	updated, err := s.store.VerifyDocument(r.Context(), docID, claims.UserID, req.Outcome, reason)
	if err != nil {
		writeStoreError(w, err, "verify document")
		return
	}
	if !updated {
		writeError(w, http.StatusConflict, "already_finalized")
		return
	}

	s.producer.Publish(events.Event{
		Type:    "document.verified",
		UserID:  doc.UserID,
		Subject: docID,
		Detail:  map[string]string{"outcome": req.Outcome, "by": claims.UserID},
	})

	fresh, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		writeStoreError(w, err, "reload document")
		return
	}
	writeJSON(w, http.StatusOK, mapDocument(fresh))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		writeStoreError(w, err, "get document")
		return
	}
	// Deletion is the owner's alone. Staff verify documents, they do not
	// remove them.
	if doc.UserID != claims.UserID {
		if claims.Role == model.RoleStaff {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	deleted, err := s.store.DeleteDocument(r.Context(), doc.ID)
	if err != nil {
		writeStoreError(w, err, "delete document")
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "document_locked")
		return
	}

	// Metadata row is gone; the blob follows best effort.
	if err := s.blobs.Delete(r.Context(), doc.StorageKey); err != nil {
		log.Printf("blob delete error for %s: %v", doc.StorageKey, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
