package tests

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/easylink/server/internal/auth"
	httphandler "github.com/easylink/server/internal/http"
	"github.com/easylink/server/internal/http/handlers"
	"github.com/easylink/server/internal/notify"
	"github.com/easylink/server/internal/repo"
	"github.com/easylink/server/internal/repo/memory"
)

const (
	testJWTSecret       = "test-jwt-secret-at-least-32-characters-long"
	testFrontendBaseURL = "http://frontend.test"
)

// testMailbox captures outbound mail so tests can complete the out-of-band
// verification and second-factor steps.
type testMailbox struct {
	mu                sync.Mutex
	verificationToken string
	loginCode         string
}

func (m *testMailbox) SendVerification(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verificationToken = token
	return nil
}

func (m *testMailbox) SendLoginCode(ctx context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCode = code
	return nil
}

func (m *testMailbox) VerificationToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verificationToken
}

func (m *testMailbox) LoginCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginCode
}

// testClock is a manually advanced clock shared by every service under test.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type repos struct {
	accounts      repo.AccountRepo
	challenges    repo.ChallengeRepo
	refresh       repo.RefreshRepo
	notifications repo.NotificationRepo
}

type testServer struct {
	Server  *httptest.Server
	Mailbox *testMailbox
	Clock   *testClock
}

func (s *testServer) BaseURL() string { return s.Server.URL }

// newTestServer wires the full HTTP stack over the given repos.
func newTestServer(t *testing.T, r repos) *testServer {
	t.Helper()

	clock := newTestClock()
	mailbox := &testMailbox{}
	log := zap.NewNop()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	hub := notify.NewHub()
	notifier := notify.NewService(r.notifications, hub, log)

	accountSvc := auth.NewAccountService(r.accounts, hasher, mailbox, log, clock.Now)
	challengeSvc := auth.NewChallengeService(r.challenges, r.accounts, hasher, mailbox, log, clock.Now)
	refreshSvc := auth.NewRefreshService(r.refresh, r.accounts, clock.Now)
	tokenSvc := auth.NewTokenService(testJWTSecret, 15*time.Minute, clock.Now)
	authSvc := auth.NewService(accountSvc, challengeSvc, refreshSvc, tokenSvc, notifier, log)

	authHandler := handlers.NewAuthHandler(authSvc, log, testFrontendBaseURL)
	notificationHandler := handlers.NewNotificationHandler(notifier, log)

	router := httphandler.NewRouter(authHandler, notificationHandler, tokenSvc, r.accounts, log, []string{testFrontendBaseURL})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, Mailbox: mailbox, Clock: clock}
}

// newMemoryServer runs the stack over in-memory stores; no database needed.
func newMemoryServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServer(t, repos{
		accounts:      memory.NewAccountStore(),
		challenges:    memory.NewChallengeStore(),
		refresh:       memory.NewRefreshStore(),
		notifications: memory.NewNotificationStore(),
	})
}

// newPostgresServer runs the stack over the Postgres repos. Callers must have
// checked DATABASE_URL.
func newPostgresServer(t *testing.T, database *sql.DB) *testServer {
	t.Helper()
	return newTestServer(t, repos{
		accounts:      repo.NewAccountRepo(database),
		challenges:    repo.NewChallengeRepo(database),
		refresh:       repo.NewRefreshRepo(database),
		notifications: repo.NewNotificationRepo(database),
	})
}
