package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adarsh745/etaxmentor-sub000/internal/filing"
	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

const gstColumns = `id, user_id, gstin, return_type, period, form, status, ack_number, filed_at,
	remarks, rejection_reason, reviewer_id, created_at, updated_at`

func scanGSTFiling(row pgx.Row) (model.GSTFiling, error) {
	var f model.GSTFiling
	var formRaw []byte
	var status string
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.GSTIN,
		&f.ReturnType,
		&f.Period,
		&formRaw,
		&status,
		&f.AckNumber,
		&f.FiledAt,
		&f.Remarks,
		&f.RejectionReason,
		&f.ReviewerID,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return f, err
	}
	f.Status = filing.Status(status)
	if err := json.Unmarshal(formRaw, &f.Form); err != nil {
		return f, fmt.Errorf("decode gst form: %w", err)
	}
	return f, nil
}

func (s *Store) CreateGSTFiling(ctx context.Context, f model.GSTFiling) error {
	formRaw, err := json.Marshal(f.Form)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO gst_filings (id, user_id, gstin, return_type, period, form, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, f.ID, f.UserID, f.GSTIN, f.ReturnType, f.Period, formRaw, string(f.Status), f.CreatedAt, f.UpdatedAt)
	return err
}

func (s *Store) GetGSTFiling(ctx context.Context, id string) (model.GSTFiling, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+gstColumns+` FROM gst_filings WHERE id = $1`, id)
	return scanGSTFiling(row)
}

func (s *Store) UpdateGSTForm(ctx context.Context, id, gstin, returnType, period string, form model.GSTFormData) (bool, error) {
	formRaw, err := json.Marshal(form)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE gst_filings
		SET gstin = $2, return_type = $3, period = $4, form = $5, updated_at = $6
		WHERE id = $1 AND status IN ('DRAFT', 'DOCUMENTS_PENDING')
	`, id, gstin, returnType, period, formRaw, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateGSTRemarks(ctx context.Context, id, remarks string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE gst_filings SET remarks = $2, updated_at = $3
		WHERE id = $1 AND status <> 'REJECTED'
	`, id, remarks, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) TransitionGSTFiling(ctx context.Context, id string, from, to filing.Status, in filing.TransitionInput, reviewerID *string) (bool, error) {
	now := time.Now().UTC()
	var tag pgconn.CommandTag
	var err error

	switch to {
	case filing.StatusFiled:
		tag, err = s.pool.Exec(ctx, `
			UPDATE gst_filings
			SET status = $3, ack_number = $4, filed_at = $5, reviewer_id = COALESCE($6, reviewer_id), updated_at = $5
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), in.AckNumber, now, reviewerID)
	case filing.StatusRejected:
		tag, err = s.pool.Exec(ctx, `
			UPDATE gst_filings
			SET status = $3, rejection_reason = $4, reviewer_id = COALESCE($5, reviewer_id), updated_at = $6
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), in.Reason, reviewerID, now)
	case filing.StatusCAAssigned:
		tag, err = s.pool.Exec(ctx, `
			UPDATE gst_filings
			SET status = $3, reviewer_id = $4, updated_at = $5
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), reviewerID, now)
	default:
		tag, err = s.pool.Exec(ctx, `
			UPDATE gst_filings
			SET status = $3, updated_at = $4
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), now)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteGSTFiling(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM gst_filings WHERE id = $1 AND status = 'DRAFT'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListGSTFilings(ctx context.Context, filter FilingFilter) ([]model.GSTFiling, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Year != "" {
		args = append(args, filter.Year)
		where += fmt.Sprintf(" AND period = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM gst_filings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.limit(), filter.offset())
	query := `SELECT ` + gstColumns + ` FROM gst_filings` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	filings := []model.GSTFiling{}
	for rows.Next() {
		f, err := scanGSTFiling(rows)
		if err != nil {
			return nil, 0, err
		}
		filings = append(filings, f)
	}
	return filings, total, rows.Err()
}

func (s *Store) GSTStatusSummary(ctx context.Context, userID string) (map[string]int, error) {
	return s.statusSummary(ctx, "gst_filings", userID)
}
