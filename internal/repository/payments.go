package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

const paymentColumns = `id, user_id, filing_kind, filing_id, amount, currency, purpose, status, provider_ref, created_at`

func scanPayment(row pgx.Row) (model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.FilingKind, &p.FilingID, &p.Amount, &p.Currency,
		&p.Purpose, &p.Status, &p.ProviderRef, &p.CreatedAt)
	return p, err
}

func (s *Store) CreatePayment(ctx context.Context, p model.Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, user_id, filing_kind, filing_id, amount, currency, purpose, status, provider_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.UserID, p.FilingKind, p.FilingID, p.Amount, p.Currency, p.Purpose, p.Status, p.ProviderRef, p.CreatedAt)
	return err
}

func (s *Store) GetPayment(ctx context.Context, id string) (model.Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (s *Store) ListPayments(ctx context.Context, userID string) ([]model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
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

	payments := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SettlePayment records the stubbed gateway outcome. Only a CREATED payment
// can settle, and only once.
func (s *Store) SettlePayment(ctx context.Context, id, status string, providerRef *string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments SET status = $2, provider_ref = $3 WHERE id = $1 AND status = 'CREATED'
	`, id, status, providerRef)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
