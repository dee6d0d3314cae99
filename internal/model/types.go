package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is the identity anchor. An account with an empty PasswordHash cannot
// authenticate with a password until one is set.
type Account struct {
	ID                    uuid.UUID
	Email                 string
	DisplayName           string
	PasswordHash          string
	EmailVerified         bool
	VerificationToken     *string
	VerificationExpiresAt *time.Time
	FailedAttempts        int
	LockUntil             *time.Time
	LastLoginAt           *time.Time
	CreatedAt             time.Time
}

// Locked reports whether password authentication is suspended at the given instant.
func (a Account) Locked(now time.Time) bool {
	return a.LockUntil != nil && now.Before(*a.LockUntil)
}

// TwoFactorChallenge is a single attempt window for one login. UsedAt transitions
// nil -> set exactly once; Attempts only ever grows.
type TwoFactorChallenge struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	UsedAt    *time.Time
	RequestIP *string
	UserAgent *string
	CreatedAt time.Time
}

// RefreshSession is a redeemable long-lived secret. Only the SHA-256 of the raw
// token is stored; the raw value leaves the service exactly once, at issuance.
type RefreshSession struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	RequestIP *string
	UserAgent *string
}

// Active reports whether the session can still be redeemed at the given instant.
func (s RefreshSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && !now.After(s.ExpiresAt)
}

// Notification is an event delivered to an account's feed and SSE stream.
type Notification struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Kind      string
	Payload   string
	ReadAt    *time.Time
	CreatedAt time.Time
}
