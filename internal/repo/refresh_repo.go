package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easylink/server/internal/model"
)

// RefreshRepo defines refresh session storage. Sessions are never deleted;
// revocation sets revoked_at so the audit trail survives.
type RefreshRepo interface {
	Create(ctx context.Context, s model.RefreshSession) (model.RefreshSession, error)
	// ConsumeByHash returns the active session for the hash. An expired session is
	// revoked in the same transaction and reported as ErrNotFound (fail-closed:
	// presenting an expired token burns it). Redemption and revocation on the
	// same row are mutually exclusive via a row lock.
	ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (model.RefreshSession, error)
	// RevokeByHash revokes the matching active session if one exists. Idempotent:
	// unknown or already-revoked hashes are a no-op.
	RevokeByHash(ctx context.Context, tokenHash string, now time.Time) error
	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) error
}

type refreshRepo struct {
	db *sql.DB
}

// NewRefreshRepo creates a Postgres-backed RefreshRepo.
func NewRefreshRepo(db *sql.DB) RefreshRepo {
	return &refreshRepo{db: db}
}

func (r *refreshRepo) Create(ctx context.Context, s model.RefreshSession) (model.RefreshSession, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_sessions (account_id, token_hash, expires_at, request_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.AccountID, s.TokenHash, s.ExpiresAt, s.RequestIP, s.UserAgent).Scan(&idStr, &s.CreatedAt)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("insert refresh session: %w", err)
	}
	s.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("parse session ID: %w", err)
	}
	return s, nil
}

func (r *refreshRepo) ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (model.RefreshSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var s model.RefreshSession
	var idStr, accountIDStr string
	err = tx.QueryRowContext(ctx, `
		SELECT id, account_id, token_hash, created_at, expires_at, revoked_at, request_ip, user_agent
		FROM refresh_sessions
		WHERE token_hash = $1 AND revoked_at IS NULL
		FOR UPDATE
	`, tokenHash).Scan(
		&idStr,
		&accountIDStr,
		&s.TokenHash,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.RevokedAt,
		&s.RequestIP,
		&s.UserAgent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshSession{}, ErrNotFound
		}
		return model.RefreshSession{}, fmt.Errorf("find refresh session: %w", err)
	}
	s.ID, _ = uuid.Parse(idStr)
	s.AccountID, _ = uuid.Parse(accountIDStr)

	if now.After(s.ExpiresAt) {
		if _, err := tx.ExecContext(ctx, `
			UPDATE refresh_sessions SET revoked_at = $2 WHERE id = $1
		`, s.ID, now); err != nil {
			return model.RefreshSession{}, fmt.Errorf("revoke expired session: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return model.RefreshSession{}, fmt.Errorf("commit: %w", err)
		}
		return model.RefreshSession{}, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return model.RefreshSession{}, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}

func (r *refreshRepo) RevokeByHash(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash, now)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (r *refreshRepo) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET revoked_at = $2
		WHERE account_id = $1 AND revoked_at IS NULL
	`, accountID, now)
	if err != nil {
		return fmt.Errorf("revoke all sessions for account: %w", err)
	}
	return nil
}
