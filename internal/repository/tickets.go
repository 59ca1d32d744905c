package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

func scanTicket(row pgx.Row) (model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) CreateTicket(ctx context.Context, t model.Ticket) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (id, user_id, subject, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.UserID, t.Subject, t.Priority, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTicket(ctx context.Context, id string) (model.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, subject, priority, status, created_at, updated_at FROM tickets WHERE id = $1
	`, id)
	return scanTicket(row)
}

func (s *Store) ListTickets(ctx context.Context, userID string) ([]model.Ticket, error) {
	query := `SELECT id, user_id, subject, priority, status, created_at, updated_at FROM tickets`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *Store) UpdateTicketStatus(ctx context.Context, id, status string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AddTicketMessage(ctx context.Context, m model.TicketMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.TicketID, m.SenderID, m.Body, m.CreatedAt)
	return err
}

func (s *Store) ListTicketMessages(ctx context.Context, ticketID string) ([]model.TicketMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ticket_id, sender_id, body, created_at
		FROM ticket_messages WHERE ticket_id = $1 ORDER BY created_at ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.TicketMessage{}
	for rows.Next() {
		var m model.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
