package auth

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/easylink/server/internal/mail"
	"github.com/easylink/server/internal/model"
	"github.com/easylink/server/internal/repo"
)

const (
	verificationTokenTTL = 24 * time.Hour

	// Lockout policy: lockoutThreshold consecutive failures suspend password
	// authentication for lockoutDuration. Self-healing, no manual reset.
	lockoutThreshold = 5
	lockoutDuration  = 15 * time.Minute
)

// AccountService creates accounts, verifies email ownership, and verifies
// passwords under the lockout policy.
type AccountService struct {
	accounts repo.AccountRepo
	hasher   *PasswordHasher
	sender   mail.Sender
	log      *zap.Logger
	now      Clock
}

// NewAccountService creates an account service. A nil clock uses the system clock.
func NewAccountService(accounts repo.AccountRepo, hasher *PasswordHasher, sender mail.Sender, log *zap.Logger, now Clock) *AccountService {
	if now == nil {
		now = SystemClock
	}
	return &AccountService{accounts: accounts, hasher: hasher, sender: sender, log: log, now: now}
}

// NormalizeEmail lower-cases and trims an address and rejects malformed input.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email", ErrValidation)
	}
	return email, nil
}

// CreateAccount registers a new account and triggers the verification email.
// The raw verification token never reaches the caller. Duplicate emails are
// rejected whether or not the existing account is verified.
func (s *AccountService) CreateAccount(ctx context.Context, email, password, displayName string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	expiresAt := s.now().Add(verificationTokenTTL)

	_, err = s.accounts.Create(ctx, model.Account{
		Email:                 email,
		DisplayName:           strings.TrimSpace(displayName),
		PasswordHash:          passwordHash,
		VerificationToken:     &token,
		VerificationExpiresAt: &expiresAt,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("create account: %w", err)
	}

	if err := s.sender.SendVerification(ctx, email, token); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}

	s.log.Info("account created", zap.String("email", maskEmail(email)))
	return nil
}

// VerifyEmail consumes a single-use verification token. A replayed or expired
// token fails with ErrInvalidToken.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	err := s.accounts.ConsumeVerificationToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("consume verification token: %w", err)
	}
	return nil
}

// CheckPassword verifies a password under the lockout policy. The counter
// mutations run as atomic storage updates, so concurrent attempts cannot slip
// past the threshold.
func (s *AccountService) CheckPassword(ctx context.Context, email, password string) (model.Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return model.Account{}, err
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Account{}, ErrInvalidCredentials
		}
		return model.Account{}, fmt.Errorf("load account: %w", err)
	}

	now := s.now()
	if acc.Locked(now) {
		return model.Account{}, ErrAccountLocked
	}

	// Password-less accounts authenticate through a different path; no counter
	// bump, the outcome is identical to an unknown email.
	if acc.PasswordHash == "" || !s.hasher.Verify(acc.PasswordHash, password) {
		if acc.PasswordHash != "" {
			attempts, ferr := s.accounts.RecordLoginFailure(ctx, acc.ID, lockoutThreshold, now.Add(lockoutDuration))
			if ferr != nil {
				return model.Account{}, fmt.Errorf("record login failure: %w", ferr)
			}
			if attempts >= lockoutThreshold {
				s.log.Warn("account locked after repeated failures",
					zap.String("email", maskEmail(email)),
					zap.Int("attempts", attempts),
				)
			}
		}
		return model.Account{}, ErrInvalidCredentials
	}

	if err := s.accounts.RecordLoginSuccess(ctx, acc.ID, now); err != nil {
		return model.Account{}, fmt.Errorf("record login success: %w", err)
	}
	acc.FailedAttempts = 0
	acc.LockUntil = nil
	acc.LastLoginAt = &now
	return acc, nil
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***"
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
