package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/easylink/server/internal/model"
)

// AccountRepo defines account storage. Counter mutations are single atomic
// statements so concurrent login attempts against one account serialize on the
// row instead of racing in process.
type AccountRepo interface {
	Create(ctx context.Context, acc model.Account) (model.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	// ConsumeVerificationToken marks the account verified and clears the token.
	// Returns ErrNotFound if the token is unknown, expired, or already consumed.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) error
	// RecordLoginFailure increments the failure counter and sets lock_until once
	// the counter reaches threshold. Returns the new counter value.
	RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, error)
	// RecordLoginSuccess resets the failure counter, clears any lock, and stamps
	// last_login_at.
	RecordLoginSuccess(ctx context.Context, id uuid.UUID, now time.Time) error
}

type accountRepo struct {
	db *sql.DB
}

// NewAccountRepo creates a Postgres-backed AccountRepo.
func NewAccountRepo(db *sql.DB) AccountRepo {
	return &accountRepo{db: db}
}

const accountColumns = `id, email, display_name, COALESCE(password_hash, ''), email_verified,
	verification_token, verification_expires_at, failed_attempts, lock_until, last_login_at, created_at`

func scanAccount(row *sql.Row) (model.Account, error) {
	var acc model.Account
	var idStr string
	err := row.Scan(
		&idStr,
		&acc.Email,
		&acc.DisplayName,
		&acc.PasswordHash,
		&acc.EmailVerified,
		&acc.VerificationToken,
		&acc.VerificationExpiresAt,
		&acc.FailedAttempts,
		&acc.LockUntil,
		&acc.LastLoginAt,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("scan account: %w", err)
	}
	acc.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse account ID: %w", err)
	}
	return acc, nil
}

// Create inserts a new account. Unique-violation on email maps to ErrDuplicate.
func (r *accountRepo) Create(ctx context.Context, acc model.Account) (model.Account, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (email, display_name, password_hash, verification_token, verification_expires_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id, created_at
	`, acc.Email, acc.DisplayName, acc.PasswordHash, acc.VerificationToken, acc.VerificationExpiresAt).
		Scan(&idStr, &acc.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.Account{}, ErrDuplicate
		}
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}
	acc.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse account ID: %w", err)
	}
	return acc, nil
}

// GetByID retrieves an account by id.
func (r *accountRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByEmail retrieves an account by (already normalized) email.
func (r *accountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// ConsumeVerificationToken flips the account to verified in one guarded update,
// so a replayed token finds zero matching rows.
func (r *accountRepo) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET email_verified = true, verification_token = NULL, verification_expires_at = NULL
		WHERE verification_token = $1
		  AND verification_expires_at > $2
		  AND email_verified = false
	`, token, now)
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLoginFailure is a single read-modify-write so two concurrent wrong
// passwords cannot both observe "under threshold".
func (r *accountRepo) RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    lock_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE lock_until END
		WHERE id = $1
		RETURNING failed_attempts
	`, id, threshold, lockUntil).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return attempts, nil
}

func (r *accountRepo) RecordLoginSuccess(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET failed_attempts = 0, lock_until = NULL, last_login_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
