package auth

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier receives authenticated-identity events. The notification hub sits
// behind this interface as a downstream consumer; failures there must never
// fail a login.
type Notifier interface {
	LoginSucceeded(ctx context.Context, accountID uuid.UUID, ip, userAgent string)
}

// TokenPair is the bearer credential set returned on full authentication.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service composes the account, challenge, refresh, and token services into
// the public sign-up / sign-in / refresh / logout flows. The flow is a strict
// ladder: password verification gates challenge issuance, and a completed
// second factor gates token minting; no step is skippable.
type Service struct {
	accounts   *AccountService
	challenges *ChallengeService
	refresh    *RefreshService
	tokens     *TokenService
	notifier   Notifier
	log        *zap.Logger
}

// NewService creates the auth orchestrator. notifier may be nil.
func NewService(accounts *AccountService, challenges *ChallengeService, refresh *RefreshService, tokens *TokenService, notifier Notifier, log *zap.Logger) *Service {
	return &Service{
		accounts:   accounts,
		challenges: challenges,
		refresh:    refresh,
		tokens:     tokens,
		notifier:   notifier,
		log:        log,
	}
}

// SignUp registers an account and sends the verification email. No session is
// granted.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) error {
	return s.accounts.CreateAccount(ctx, email, password, displayName)
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.accounts.VerifyEmail(ctx, token)
}

// SignIn verifies the password and issues a second-factor challenge. The
// response carries only the challenge id, never a token.
func (s *Service) SignIn(ctx context.Context, email, password, ip, userAgent string) (uuid.UUID, error) {
	acc, err := s.accounts.CheckPassword(ctx, email, password)
	if err != nil {
		return uuid.Nil, err
	}
	return s.challenges.CreateChallenge(ctx, acc, ip, userAgent)
}

// VerifyTwoFactor completes authentication: on a correct code it mints the
// access token and the refresh token together. This is the only path that
// issues a refresh token.
func (s *Service) VerifyTwoFactor(ctx context.Context, challengeID uuid.UUID, code string, rememberMe bool, ip, userAgent string) (TokenPair, error) {
	acc, err := s.challenges.Verify(ctx, challengeID, code)
	if err != nil {
		return TokenPair{}, err
	}

	access, err := s.tokens.Sign(acc.ID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.refresh.Issue(ctx, acc.ID, rememberMe, ip, userAgent)
	if err != nil {
		return TokenPair{}, err
	}

	if s.notifier != nil {
		s.notifier.LoginSucceeded(ctx, acc.ID, ip, userAgent)
	}
	s.log.Info("login completed", zap.String("email", maskEmail(acc.Email)))
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh redeems a refresh token for a fresh access token. The refresh token
// itself is not rotated.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (string, error) {
	acc, err := s.refresh.ConsumeForAccess(ctx, rawRefreshToken)
	if err != nil {
		return "", err
	}
	return s.tokens.Sign(acc.ID)
}

// Logout revokes the presented refresh token. Already-minted access tokens
// simply expire. Unknown or already-revoked tokens are not an error.
func (s *Service) Logout(ctx context.Context, rawRefreshToken string) error {
	return s.refresh.Revoke(ctx, rawRefreshToken)
}
