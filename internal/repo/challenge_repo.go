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

// ChallengeRepo defines second-factor challenge storage.
type ChallengeRepo interface {
	Create(ctx context.Context, ch model.TwoFactorChallenge) (model.TwoFactorChallenge, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.TwoFactorChallenge, error)
	// IncrementAttempt bumps the attempt counter atomically and returns the new
	// value, so exhaustion stays monotonic under concurrent attempts.
	IncrementAttempt(ctx context.Context, id uuid.UUID) (int, error)
	// MarkUsed sets used_at once; a second call returns ErrNotFound.
	MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error
}

type challengeRepo struct {
	db *sql.DB
}

// NewChallengeRepo creates a Postgres-backed ChallengeRepo.
func NewChallengeRepo(db *sql.DB) ChallengeRepo {
	return &challengeRepo{db: db}
}

func (r *challengeRepo) Create(ctx context.Context, ch model.TwoFactorChallenge) (model.TwoFactorChallenge, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO two_factor_challenges (account_id, code_hash, expires_at, request_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, ch.AccountID, ch.CodeHash, ch.ExpiresAt, ch.RequestIP, ch.UserAgent).Scan(&idStr, &ch.CreatedAt)
	if err != nil {
		return model.TwoFactorChallenge{}, fmt.Errorf("insert challenge: %w", err)
	}
	ch.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.TwoFactorChallenge{}, fmt.Errorf("parse challenge ID: %w", err)
	}
	return ch, nil
}

func (r *challengeRepo) GetByID(ctx context.Context, id uuid.UUID) (model.TwoFactorChallenge, error) {
	var ch model.TwoFactorChallenge
	var idStr, accountIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, code_hash, expires_at, attempts, used_at, request_ip, user_agent, created_at
		FROM two_factor_challenges
		WHERE id = $1
	`, id).Scan(
		&idStr,
		&accountIDStr,
		&ch.CodeHash,
		&ch.ExpiresAt,
		&ch.Attempts,
		&ch.UsedAt,
		&ch.RequestIP,
		&ch.UserAgent,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TwoFactorChallenge{}, ErrNotFound
		}
		return model.TwoFactorChallenge{}, fmt.Errorf("query challenge: %w", err)
	}
	ch.ID, _ = uuid.Parse(idStr)
	ch.AccountID, _ = uuid.Parse(accountIDStr)
	return ch, nil
}

func (r *challengeRepo) IncrementAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE two_factor_challenges
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment attempt: %w", err)
	}
	return attempts, nil
}

func (r *challengeRepo) MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE two_factor_challenges
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark challenge used: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
