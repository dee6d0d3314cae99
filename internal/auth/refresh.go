package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easylink/server/internal/model"
	"github.com/easylink/server/internal/repo"
)

const (
	refreshTTLRemember = 30 * 24 * time.Hour
	refreshTTLNormal   = 24 * time.Hour
)

// randomToken returns a random Base64URL token (32 bytes of entropy). Used for
// refresh secrets and email verification tokens.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashRefreshToken returns SHA-256 hex of the raw token. The secret is
// high-entropy, so a plain digest suffices and keeps lookup by hash O(1).
func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RefreshService issues, redeems, and revokes refresh tokens.
type RefreshService struct {
	sessions repo.RefreshRepo
	accounts repo.AccountRepo
	now      Clock
}

// NewRefreshService creates a refresh token service. A nil clock uses the
// system clock.
func NewRefreshService(sessions repo.RefreshRepo, accounts repo.AccountRepo, now Clock) *RefreshService {
	if now == nil {
		now = SystemClock
	}
	return &RefreshService{sessions: sessions, accounts: accounts, now: now}
}

// Issue persists a new session and returns the raw secret. This is the only
// time the raw value exists outside the caller; storage keeps the hash.
func (s *RefreshService) Issue(ctx context.Context, accountID uuid.UUID, rememberMe bool, ip, userAgent string) (string, error) {
	raw, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	ttl := refreshTTLNormal
	if rememberMe {
		ttl = refreshTTLRemember
	}
	_, err = s.sessions.Create(ctx, model.RefreshSession{
		AccountID: accountID,
		TokenHash: hashRefreshToken(raw),
		ExpiresAt: s.now().Add(ttl),
		RequestIP: optional(ip),
		UserAgent: optional(userAgent),
	})
	if err != nil {
		return "", fmt.Errorf("store refresh session: %w", err)
	}
	return raw, nil
}

// ConsumeForAccess redeems a raw token for its owning account. Expired tokens
// are burned by the store on presentation; unknown, revoked, and expired all
// surface as ErrInvalidRefreshToken.
func (s *RefreshService) ConsumeForAccess(ctx context.Context, raw string) (model.Account, error) {
	sess, err := s.sessions.ConsumeByHash(ctx, hashRefreshToken(raw), s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Account{}, ErrInvalidRefreshToken
		}
		return model.Account{}, fmt.Errorf("consume refresh session: %w", err)
	}

	acc, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return model.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acc, nil
}

// Revoke marks the matching active session revoked. Idempotent: unknown and
// already-revoked tokens are a silent no-op so logout cannot fail visibly.
func (s *RefreshService) Revoke(ctx context.Context, raw string) error {
	if err := s.sessions.RevokeByHash(ctx, hashRefreshToken(raw), s.now()); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// RevokeAll revokes every active session for the account.
func (s *RefreshService) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	if err := s.sessions.RevokeAllForAccount(ctx, accountID, s.now()); err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}
	return nil
}
