package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-at-least-32-characters"

func TestTokenService_SignAndVerify(t *testing.T) {
	clock := newFakeClock()
	svc := NewTokenService(testSecret, 15*time.Minute, clock.Now)

	accountID := uuid.New()
	token, err := svc.Sign(accountID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, subject)
}

func TestTokenService_ZeroSkewExpiry(t *testing.T) {
	clock := newFakeClock()
	ttl := 5 * time.Minute
	svc := NewTokenService(testSecret, ttl, clock.Now)

	token, err := svc.Sign(uuid.New())
	require.NoError(t, err)

	// valid at exp-1s
	clock.Advance(ttl - time.Second)
	_, err = svc.Verify(token)
	require.NoError(t, err)

	// invalid at exactly exp, no grace window
	clock.Advance(time.Second)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsTampered(t *testing.T) {
	clock := newFakeClock()
	svc := NewTokenService(testSecret, time.Minute, clock.Now)

	token, err := svc.Sign(uuid.New())
	require.NoError(t, err)

	_, err = svc.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	clock := newFakeClock()
	svc := NewTokenService(testSecret, time.Minute, clock.Now)
	other := NewTokenService("another-secret-that-is-long-enough-too", time.Minute, clock.Now)

	token, err := other.Sign(uuid.New())
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
