package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeClock is a manually advanced clock so expiry tests never sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// captureSender records the secrets handed to the mail boundary so tests can
// complete the out-of-band steps.
type captureSender struct {
	mu                sync.Mutex
	verificationToken string
	loginCode         string
}

func (s *captureSender) SendVerification(ctx context.Context, email, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verificationToken = token
	return nil
}

func (s *captureSender) SendLoginCode(ctx context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCode = code
	return nil
}

func (s *captureSender) VerificationToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verificationToken
}

func (s *captureSender) LoginCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCode
}

func testHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
