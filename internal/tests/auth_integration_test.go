package tests

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easylink/server/internal/db"
)

// openTestDB connects to the database named by DATABASE_URL, runs migrations
// and wipes auth state. Tests that call it are skipped when the variable is
// unset so the suite stays runnable without infrastructure.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	database, err := db.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, RunMigrations(database))
	require.NoError(t, TruncateAuthTables(context.Background(), database))
	return database
}

func TestPostgresAuthLifecycle(t *testing.T) {
	database := openTestDB(t)
	ts := newPostgresServer(t, database)
	client := noRedirectClient()

	access := signUpAndSignIn(t, ts, client, "grace@example.com", "integration password")

	resp := getWithBearer(t, client, ts.BaseURL()+"/me", access)
	var me struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	decodeBody(t, resp, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "grace@example.com", me.Email)
	assert.True(t, me.EmailVerified)

	// Double sign-up against the real unique index.
	resp = postJSON(t, client, ts.BaseURL()+"/auth/signup", map[string]any{
		"email":    "Grace@example.com",
		"password": "another password",
	}, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPostgresRefreshRevocation(t *testing.T) {
	database := openTestDB(t)
	ts := newPostgresServer(t, database)
	client := noRedirectClient()

	resp := postJSON(t, client, ts.BaseURL()+"/auth/signup", map[string]any{
		"email":    "heidi@example.com",
		"password": "integration password",
	}, "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getWithBearer(t, client, ts.BaseURL()+"/auth/verify-email?token="+ts.Mailbox.VerificationToken(), "")
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = postJSON(t, client, ts.BaseURL()+"/auth/signin", map[string]any{
		"email":    "heidi@example.com",
		"password": "integration password",
	}, "")
	var signIn struct {
		ChallengeID string `json:"challenge_id"`
	}
	decodeBody(t, resp, &signIn)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, ts.BaseURL()+"/auth/signin/verify-2fa", map[string]any{
		"challenge_id": signIn.ChallengeID,
		"code":         ts.Mailbox.LoginCode(),
		"remember_me":  true,
	}, "")
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, resp, &tokens)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, tokens.RefreshToken)

	// Remember-me sessions survive a long gap.
	ts.Clock.Advance(72 * time.Hour)
	resp = postJSON(t, client, ts.BaseURL()+"/auth/refresh", map[string]any{
		"refresh_token": tokens.RefreshToken,
	}, "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, ts.BaseURL()+"/auth/logout", map[string]any{
		"refresh_token": tokens.RefreshToken,
	}, "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The revoked row stays revoked at the database level.
	var revoked sql.NullTime
	err := database.QueryRowContext(context.Background(),
		"SELECT revoked_at FROM refresh_sessions LIMIT 1").Scan(&revoked)
	require.NoError(t, err)
	assert.True(t, revoked.Valid)

	resp = postJSON(t, client, ts.BaseURL()+"/auth/refresh", map[string]any{
		"refresh_token": tokens.RefreshToken,
	}, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
