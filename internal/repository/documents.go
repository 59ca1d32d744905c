package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

const documentColumns = `id, user_id, filing_kind, filing_id, stored_name, original_name, mime_type,
	size_bytes, storage_key, doc_type, financial_year, status, rejection_reason, verified_at, verified_by, created_at`

func scanDocument(row pgx.Row) (model.Document, error) {
	var d model.Document
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.FilingKind,
		&d.FilingID,
		&d.StoredName,
		&d.OriginalName,
		&d.MimeType,
		&d.SizeBytes,
		&d.StorageKey,
		&d.DocType,
		&d.FinancialYear,
		&d.Status,
		&d.RejectionReason,
		&d.VerifiedAt,
		&d.VerifiedBy,
		&d.CreatedAt,
	)
	return d, err
}

func (s *Store) CreateDocument(ctx context.Context, d model.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, filing_kind, filing_id, stored_name, original_name, mime_type,
			size_bytes, storage_key, doc_type, financial_year, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, d.ID, d.UserID, d.FilingKind, d.FilingID, d.StoredName, d.OriginalName, d.MimeType,
		d.SizeBytes, d.StorageKey, d.DocType, d.FinancialYear, d.Status, d.CreatedAt)
	return err
}

func (s *Store) GetDocument(ctx context.Context, id string) (model.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *Store) ListDocuments(ctx context.Context, userID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// VerifyDocument finalizes a document as VERIFIED or REJECTED. The status
// guard makes re-verification of an already finalized document lose, which
// the handler reports as already_finalized.
func (s *Store) VerifyDocument(ctx context.Context, id, staffID, outcome string, reason *string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, rejection_reason = $3, verified_at = $4, verified_by = $5
		WHERE id = $1 AND status IN ('UPLOADED', 'PROCESSING')
	`, id, outcome, reason, time.Now().UTC(), staffID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteDocument removes the metadata row unless verification already locked
// the document in.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND status <> 'VERIFIED'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
