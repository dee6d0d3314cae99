package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easylink/server/internal/mail"
	"github.com/easylink/server/internal/model"
	"github.com/easylink/server/internal/repo"
)

const (
	challengeTTL         = 10 * time.Minute
	maxChallengeAttempts = 5
	codeModulus          = 1000000 // 6-digit codes
)

// ChallengeService issues and verifies email one-time-code challenges.
type ChallengeService struct {
	challenges repo.ChallengeRepo
	accounts   repo.AccountRepo
	hasher     *PasswordHasher
	sender     mail.Sender
	log        *zap.Logger
	now        Clock
}

// NewChallengeService creates a challenge service. A nil clock uses the system clock.
func NewChallengeService(challenges repo.ChallengeRepo, accounts repo.AccountRepo, hasher *PasswordHasher, sender mail.Sender, log *zap.Logger, now Clock) *ChallengeService {
	if now == nil {
		now = SystemClock
	}
	return &ChallengeService{
		challenges: challenges,
		accounts:   accounts,
		hasher:     hasher,
		sender:     sender,
		log:        log,
		now:        now,
	}
}

// CreateChallenge generates a one-time code, stores only its hash, and mails
// the code to the account. Returns the opaque challenge id, never the code.
func (s *ChallengeService) CreateChallenge(ctx context.Context, acc model.Account, ip, userAgent string) (uuid.UUID, error) {
	code, err := generateCode()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate code: %w", err)
	}
	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash code: %w", err)
	}

	ch, err := s.challenges.Create(ctx, model.TwoFactorChallenge{
		AccountID: acc.ID,
		CodeHash:  codeHash,
		ExpiresAt: s.now().Add(challengeTTL),
		RequestIP: optional(ip),
		UserAgent: optional(userAgent),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create challenge: %w", err)
	}

	if err := s.sender.SendLoginCode(ctx, acc.Email, code); err != nil {
		return uuid.Nil, fmt.Errorf("send login code: %w", err)
	}

	s.log.Info("second-factor challenge issued",
		zap.String("email", maskEmail(acc.Email)),
		zap.String("challenge_id", ch.ID.String()),
	)
	return ch.ID, nil
}

// Verify checks a submitted code. Every failure branch returns the same
// ErrInvalidChallenge: not found, already used, expired, attempts exhausted,
// and code mismatch are indistinguishable to the caller. The attempt counter
// is incremented before the comparison so exhaustion is monotonic even under
// concurrent submissions.
func (s *ChallengeService) Verify(ctx context.Context, challengeID uuid.UUID, code string) (model.Account, error) {
	ch, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Account{}, ErrInvalidChallenge
		}
		return model.Account{}, fmt.Errorf("load challenge: %w", err)
	}

	if ch.UsedAt != nil {
		return model.Account{}, ErrInvalidChallenge
	}
	if s.now().After(ch.ExpiresAt) {
		return model.Account{}, ErrInvalidChallenge
	}
	if ch.Attempts >= maxChallengeAttempts {
		return model.Account{}, ErrInvalidChallenge
	}

	attempts, err := s.challenges.IncrementAttempt(ctx, ch.ID)
	if err != nil {
		return model.Account{}, fmt.Errorf("record attempt: %w", err)
	}
	if attempts > maxChallengeAttempts {
		return model.Account{}, ErrInvalidChallenge
	}

	if !s.hasher.Verify(ch.CodeHash, code) {
		return model.Account{}, ErrInvalidChallenge
	}

	// Guarded by used_at IS NULL: of two concurrent correct submissions only
	// one lands here successfully.
	if err := s.challenges.MarkUsed(ctx, ch.ID, s.now()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Account{}, ErrInvalidChallenge
		}
		return model.Account{}, fmt.Errorf("consume challenge: %w", err)
	}

	acc, err := s.accounts.GetByID(ctx, ch.AccountID)
	if err != nil {
		return model.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acc, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeModulus))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
