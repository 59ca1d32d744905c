package repository

import (
	"context"
	"time"

	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

func (s *Store) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, session.TokenHash, session.UserID, session.CreatedAt, session.ExpiresAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetSession(ctx context.Context, tokenHash string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT token_hash, user_id, created_at, expires_at, user_agent, ip_address
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.TokenHash, &session.UserID, &session.CreatedAt, &session.ExpiresAt, &session.UserAgent, &session.IPAddress)
	return session, err
}

// DeleteSession is idempotent: deleting an absent session is not an error.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteUserSessionsExcept revokes every session of the user other than the
// one identified by keepTokenHash. Used on password change. The revoked
// hashes are returned so callers can evict any cached verdicts for them.
func (s *Store) DeleteUserSessionsExcept(ctx context.Context, userID, keepTokenHash string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM sessions WHERE user_id = $1 AND token_hash <> $2 RETURNING token_hash
	`, userID, keepTokenHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revoked := []string{}
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		revoked = append(revoked, hash)
	}
	return revoked, rows.Err()
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
