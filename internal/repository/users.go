package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

// ErrDuplicateEmail is returned when a registration collides with an
// existing account.
var ErrDuplicateEmail = errors.New("email already registered")

const userColumns = `id, email, name, phone, role, status, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.Role,
		&user.Status,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// CreateUser inserts the user row and its credential row in one transaction.
func (s *Store) CreateUser(ctx context.Context, user model.User, passwordHash string) error {
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, name, phone, role, status, email_verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, user.ID, user.Email, user.Name, user.Phone, user.Role, user.Status, user.EmailVerified, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO credentials (user_id, password_hash, rotated_at)
			VALUES ($1, $2, $3)
		`, user.ID, passwordHash, user.CreatedAt)
		return err
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) GetCredential(ctx context.Context, userID string) (model.Credential, error) {
	var cred model.Credential
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, rotated_at FROM credentials WHERE user_id = $1
	`, userID)
	err := row.Scan(&cred.UserID, &cred.PasswordHash, &cred.RotatedAt)
	return cred, err
}

// ReplaceCredential swaps the stored hash for a new one. The old hash is gone
// once this returns; there is no in-place mutation to roll back to.
func (s *Store) ReplaceCredential(ctx context.Context, userID, passwordHash string, rotatedAt time.Time) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM credentials WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO credentials (user_id, password_hash, rotated_at)
			VALUES ($1, $2, $3)
		`, userID, passwordHash, rotatedAt)
		return err
	})
}
