package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/easylink/server/internal/auth"
	"github.com/easylink/server/internal/model"
	"github.com/easylink/server/internal/repo"
)

type contextKey string

const (
	accountKey   contextKey = "account"
	accountIDKey contextKey = "account_id"
)

// Authenticate validates the Bearer access token and attaches the account to
// the request context. The subject claim is the account id used for all
// downstream authorization.
func Authenticate(tokens *auth.TokenService, accounts repo.AccountRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			accountID, err := tokens.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			acc, err := accounts.GetByID(r.Context(), accountID)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "account not found")
				return
			}

			ctx := context.WithValue(r.Context(), accountKey, &acc)
			ctx = context.WithValue(ctx, accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccount returns the account attached by Authenticate.
func GetAccount(ctx context.Context) (*model.Account, bool) {
	acc, ok := ctx.Value(accountKey).(*model.Account)
	return acc, ok
}

// GetAccountID returns the authenticated account id.
func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDKey).(uuid.UUID)
	return id, ok
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
