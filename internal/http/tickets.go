package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adarsh745/etaxmentor-sub000/internal/events"
	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

var ticketPriorities = map[string]bool{"LOW": true, "MEDIUM": true, "HIGH": true}

var ticketStatuses = map[string]bool{"OPEN": true, "IN_PROGRESS": true, "RESOLVED": true, "CLOSED": true}

type ticketResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Subject   string    `json:"subject"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ticketMessageResponse struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func mapTicket(t model.Ticket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Subject:   t.Subject,
		Priority:  t.Priority,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	userID := claims.UserID
	if claims.Role == model.RoleStaff {
		userID = r.URL.Query().Get("userId")
	}

	tickets, err := s.store.ListTickets(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "list tickets")
		return
	}

	items := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, mapTicket(t))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": items})
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req struct {
		Subject  string `json:"subject"`
		Priority string `json:"priority"`
		Body     string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "missing_subject")
		return
	}
	if req.Priority == "" {
		req.Priority = "MEDIUM"
	}
	if !ticketPriorities[req.Priority] {
		writeError(w, http.StatusBadRequest, "invalid_priority")
		return
	}

	now := time.Now().UTC()
	ticket := model.Ticket{
		ID:        uuid.NewString(),
		UserID:    claims.UserID,
		Subject:   req.Subject,
		Priority:  req.Priority,
		Status:    "OPEN",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTicket(r.Context(), ticket); err != nil {
		writeStoreError(w, err, "create ticket")
		return
	}

	// An opening message is optional but common; store it as the first entry.
	if body := strings.TrimSpace(req.Body); body != "" {
		message := model.TicketMessage{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			SenderID:  claims.UserID,
			Body:      body,
			CreatedAt: now,
		}
		if err := s.store.AddTicketMessage(r.Context(), message); err != nil {
			writeStoreError(w, err, "add opening message")
			return
		}
	}

	s.producer.Publish(events.Event{Type: "ticket.created", UserID: claims.UserID, Subject: ticket.ID})
	writeJSON(w, http.StatusCreated, mapTicket(ticket))
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	ticket, err := s.store.GetTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		writeStoreError(w, err, "get ticket")
		return
	}
	if ticket.UserID != claims.UserID && claims.Role != model.RoleStaff {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	messages, err := s.store.ListTicketMessages(r.Context(), ticket.ID)
	if err != nil {
		writeStoreError(w, err, "list ticket messages")
		return
	}
	items := make([]ticketMessageResponse, 0, len(messages))
	for _, m := range messages {
		items = append(items, ticketMessageResponse{ID: m.ID, SenderID: m.SenderID, Body: m.Body, CreatedAt: m.CreatedAt})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket":   mapTicket(ticket),
		"messages": items,
	})
}

func (s *Server) handleAddTicketMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	ticket, err := s.store.GetTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		writeStoreError(w, err, "get ticket")
		return
	}
	if ticket.UserID != claims.UserID && claims.Role != model.RoleStaff {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if ticket.Status == "CLOSED" {
		writeError(w, http.StatusConflict, "ticket_closed")
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "missing_body")
		return
	}

	message := model.TicketMessage{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		SenderID:  claims.UserID,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddTicketMessage(r.Context(), message); err != nil {
		writeStoreError(w, err, "add ticket message")
		return
	}

	writeJSON(w, http.StatusCreated, ticketMessageResponse{
		ID:        message.ID,
		SenderID:  message.SenderID,
		Body:      message.Body,
		CreatedAt: message.CreatedAt,
	})
}

func (s *Server) handlePatchTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !ticketStatuses[req.Status] {
		writeError(w, http.StatusBadRequest, "invalid_ticket_status")
		return
	}

	ticketID := chi.URLParam(r, "ticketId")
	updated, err := s.store.UpdateTicketStatus(r.Context(), ticketID, req.Status)
	if err != nil {
		writeStoreError(w, err, "update ticket status")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	ticket, err := s.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		writeStoreError(w, err, "reload ticket")
		return
	}
	s.producer.Publish(events.Event{Type: "ticket.status_changed", UserID: ticket.UserID, Subject: ticket.ID, Detail: map[string]string{"status": req.Status, "by": claims.UserID}})
	writeJSON(w, http.StatusOK, mapTicket(ticket))
}
