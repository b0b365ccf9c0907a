package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists refresh token hashes.  Only the SHA-256 hash of a
// refresh token is stored; the raw token lives solely in the client's
// cookie, so a leaked refresh_tokens table cannot mint sessions.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh records a newly issued refresh token hash for the user.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	const q = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`
	_, err := r.DB.ExecContext(ctx, q, userID, tokenHash, exp)
	return err
}

// ValidateRefresh resolves a token hash to its user.  Revoked and
// expired tokens both report sql.ErrNoRows so callers treat every
// rejection the same way and the response leaks nothing about why.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	const q = `SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = ? LIMIT 1`
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	if err := r.DB.QueryRowContext(ctx, q, tokenHash).Scan(&userID, &expiresAt, &revokedAt); err != nil {
		return 0, err
	}
	if revokedAt.Valid || time.Now().UTC().After(expiresAt) {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}

// RevokeByHash revokes a single token, as on logout of one session.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	const q = `UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = ? AND revoked_at IS NULL`
	_, err := r.DB.ExecContext(ctx, q, tokenHash)
	return err
}

// RevokeAllForUser revokes every active token the user holds, the
// logout-everywhere path.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	const q = `UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = ? AND revoked_at IS NULL`
	_, err := r.DB.ExecContext(ctx, q, userID)
	return err
}
