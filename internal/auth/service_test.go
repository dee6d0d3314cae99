package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easylink/server/internal/repo/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	logins []uuid.UUID
}

func (n *recordingNotifier) LoginSucceeded(ctx context.Context, accountID uuid.UUID, ip, userAgent string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logins = append(n.logins, accountID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.logins)
}

func newServiceFixture(t *testing.T) (*Service, *captureSender, *fakeClock, *recordingNotifier) {
	t.Helper()
	clock := newFakeClock()
	sender := &captureSender{}
	notifier := &recordingNotifier{}
	hasher := testHasher()
	accounts := memory.NewAccountStore()

	svc := NewService(
		NewAccountService(accounts, hasher, sender, testLogger(), clock.Now),
		NewChallengeService(memory.NewChallengeStore(), accounts, hasher, sender, testLogger(), clock.Now),
		NewRefreshService(memory.NewRefreshStore(), accounts, clock.Now),
		NewTokenService(testSecret, 15*time.Minute, clock.Now),
		notifier,
		testLogger(),
	)
	return svc, sender, clock, notifier
}

// TestService_FullLifecycle walks sign-up through logout end to end.
func TestService_FullLifecycle(t *testing.T) {
	svc, sender, _, notifier := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SignUp(ctx, "alice@example.com", "password1", "Alice"))
	require.NoError(t, svc.VerifyEmail(ctx, sender.VerificationToken()))

	challengeID, err := svc.SignIn(ctx, "alice@example.com", "password1", "203.0.113.9", "test-agent")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, challengeID)
	require.Len(t, sender.LoginCode(), 6)

	pair, err := svc.VerifyTwoFactor(ctx, challengeID, sender.LoginCode(), false, "203.0.113.9", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 1, notifier.count())

	access, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, access)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// logout stays silent on an already-revoked token
	assert.NoError(t, svc.Logout(ctx, pair.RefreshToken))
}

func TestService_SignInWrongPasswordIssuesNoChallenge(t *testing.T) {
	svc, sender, _, _ := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SignUp(ctx, "alice@example.com", "password1", ""))

	_, err := svc.SignIn(ctx, "alice@example.com", "wrong", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, sender.LoginCode())
}

func TestService_LockedAccountWithCorrectPassword(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SignUp(ctx, "bob@example.com", "password1", ""))

	for i := 0; i < lockoutThreshold; i++ {
		_, err := svc.SignIn(ctx, "bob@example.com", "wrong", "", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := svc.SignIn(ctx, "bob@example.com", "password1", "", "")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestService_WrongCodeMintsNothing(t *testing.T) {
	svc, sender, _, notifier := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SignUp(ctx, "alice@example.com", "password1", ""))

	challengeID, err := svc.SignIn(ctx, "alice@example.com", "password1", "", "")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == sender.LoginCode() {
		wrong = "000001"
	}
	_, err = svc.VerifyTwoFactor(ctx, challengeID, wrong, false, "", "")
	assert.ErrorIs(t, err, ErrInvalidChallenge)
	assert.Equal(t, 0, notifier.count())
}

func TestService_ChallengeIsSingleUse(t *testing.T) {
	svc, sender, _, _ := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SignUp(ctx, "alice@example.com", "password1", ""))

	challengeID, err := svc.SignIn(ctx, "alice@example.com", "password1", "", "")
	require.NoError(t, err)

	_, err = svc.VerifyTwoFactor(ctx, challengeID, sender.LoginCode(), false, "", "")
	require.NoError(t, err)

	_, err = svc.VerifyTwoFactor(ctx, challengeID, sender.LoginCode(), false, "", "")
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}
