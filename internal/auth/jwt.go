package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultAccessTokenTTL = 15 * time.Minute

// TokenService mints and validates short-lived HS256 access tokens. Tokens are
// stateless: nothing is persisted and individual tokens cannot be revoked, they
// only expire.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    Clock
}

// NewTokenService creates a token service. ttl <= 0 falls back to the default
// access token TTL; a nil clock uses the system clock.
func NewTokenService(secret string, ttl time.Duration, now Clock) *TokenService {
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	if now == nil {
		now = SystemClock
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: now}
}

// Sign mints an access token asserting the account id as subject.
func (s *TokenService) Sign(accountID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the subject account id.
// Expiry is enforced with zero leeway: a token is rejected the instant its
// expiry passes. All failures surface as ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return accountID, nil
}
