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

const itrColumns = `id, user_id, pan, assessment_year, form, status, ack_number, filed_at,
	remarks, rejection_reason, reviewer_id, refund_amount, created_at, updated_at`

func scanITRFiling(row pgx.Row) (model.ITRFiling, error) {
	var f model.ITRFiling
	var formRaw []byte
	var status string
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.PAN,
		&f.AssessmentYear,
		&formRaw,
		&status,
		&f.AckNumber,
		&f.FiledAt,
		&f.Remarks,
		&f.RejectionReason,
		&f.ReviewerID,
		&f.RefundAmount,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return f, err
	}
	f.Status = filing.Status(status)
	if err := json.Unmarshal(formRaw, &f.Form); err != nil {
		return f, fmt.Errorf("decode itr form: %w", err)
	}
	return f, nil
}

func (s *Store) CreateITRFiling(ctx context.Context, f model.ITRFiling) error {
	formRaw, err := json.Marshal(f.Form)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO itr_filings (id, user_id, pan, assessment_year, form, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, f.ID, f.UserID, f.PAN, f.AssessmentYear, formRaw, string(f.Status), f.CreatedAt, f.UpdatedAt)
	return err
}

func (s *Store) GetITRFiling(ctx context.Context, id string) (model.ITRFiling, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+itrColumns+` FROM itr_filings WHERE id = $1`, id)
	return scanITRFiling(row)
}

// UpdateITRForm rewrites the owner-editable fields. The status guard is part
// of the statement so a concurrent submission cannot race the edit.
func (s *Store) UpdateITRForm(ctx context.Context, id, pan, assessmentYear string, form model.ITRFormData) (bool, error) {
	formRaw, err := json.Marshal(form)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE itr_filings
		SET pan = $2, assessment_year = $3, form = $4, updated_at = $5
		WHERE id = $1 AND status IN ('DRAFT', 'DOCUMENTS_PENDING')
	`, id, pan, assessmentYear, formRaw, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateITRRemarks(ctx context.Context, id, remarks string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE itr_filings SET remarks = $2, updated_at = $3
		WHERE id = $1 AND status <> 'REJECTED'
	`, id, remarks, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionITRFiling applies a validated transition as a single conditional
// update keyed on the expected current status. A false return means the row
// was not in the expected status anymore: the caller lost the race.
func (s *Store) TransitionITRFiling(ctx context.Context, id string, from, to filing.Status, in filing.TransitionInput, reviewerID *string) (bool, error) {
	now := time.Now().UTC()
	var tag pgconn.CommandTag
	var err error

	switch to {
	case filing.StatusFiled:
		tag, err = s.pool.Exec(ctx, `
			UPDATE itr_filings
			SET status = $3, ack_number = $4, filed_at = $5, reviewer_id = COALESCE($6, reviewer_id), updated_at = $5
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), in.AckNumber, now, reviewerID)
	case filing.StatusRejected:
		tag, err = s.pool.Exec(ctx, `
			UPDATE itr_filings
			SET status = $3, rejection_reason = $4, reviewer_id = COALESCE($5, reviewer_id), updated_at = $6
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), in.Reason, reviewerID, now)
	case filing.StatusRefundInitiated:
		tag, err = s.pool.Exec(ctx, `
			UPDATE itr_filings
			SET status = $3, refund_amount = $4, updated_at = $5
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), in.RefundAmount, now)
	case filing.StatusCAAssigned:
		tag, err = s.pool.Exec(ctx, `
			UPDATE itr_filings
			SET status = $3, reviewer_id = $4, updated_at = $5
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), reviewerID, now)
	default:
		tag, err = s.pool.Exec(ctx, `
			UPDATE itr_filings
			SET status = $3, updated_at = $4
			WHERE id = $1 AND status = $2
		`, id, string(from), string(to), now)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteITRFiling removes a draft. The DRAFT guard lives in the statement so
// a filing already submitted can never be deleted.
func (s *Store) DeleteITRFiling(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM itr_filings WHERE id = $1 AND status = 'DRAFT'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type FilingFilter struct {
	UserID string // empty for staff-wide listings
	Status string
	Year   string // assessment year (ITR) or period (GST)
	Page   int
	Limit  int
}

func (f FilingFilter) offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.limit()
}

func (f FilingFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 100 {
		return 20
	}
	return f.Limit
}

func (s *Store) ListITRFilings(ctx context.Context, filter FilingFilter) ([]model.ITRFiling, int, error) {
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
		where += fmt.Sprintf(" AND assessment_year = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM itr_filings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.limit(), filter.offset())
	query := `SELECT ` + itrColumns + ` FROM itr_filings` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	filings := []model.ITRFiling{}
	for rows.Next() {
		f, err := scanITRFiling(rows)
		if err != nil {
			return nil, 0, err
		}
		filings = append(filings, f)
	}
	return filings, total, rows.Err()
}

func (s *Store) ITRStatusSummary(ctx context.Context, userID string) (map[string]int, error) {
	return s.statusSummary(ctx, "itr_filings", userID)
}

func (s *Store) statusSummary(ctx context.Context, table, userID string) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM ` + table
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` GROUP BY status`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		summary[status] = count
	}
	return summary, rows.Err()
}
