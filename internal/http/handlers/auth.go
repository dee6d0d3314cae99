package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easylink/server/internal/auth"
	"github.com/easylink/server/internal/middleware"
)

// AuthHandler handles the public authentication endpoints.
type AuthHandler struct {
	svc             *auth.Service
	log             *zap.Logger
	frontendBaseURL string

	// Per-IP limiters on the hashing-heavy endpoints. The account lockout and
	// challenge attempt ceilings live in storage; these only blunt volume.
	signupLimiter *middleware.RateLimiter
	signinLimiter *middleware.RateLimiter
	verifyLimiter *middleware.RateLimiter
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(svc *auth.Service, log *zap.Logger, frontendBaseURL string) *AuthHandler {
	return &AuthHandler{
		svc:             svc,
		log:             log,
		frontendBaseURL: frontendBaseURL,
		signupLimiter:   middleware.NewRateLimiter(10*time.Minute, 10),
		signinLimiter:   middleware.NewRateLimiter(10*time.Minute, 20),
		verifyLimiter:   middleware.NewRateLimiter(10*time.Minute, 30),
	}
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// HandleSignUp handles POST /auth/signup.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.signupLimiter.Allow(middleware.ClientIP(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if err := h.svc.SignUp(r.Context(), req.Email, req.Password, req.DisplayName); err != nil {
		h.respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "verification_email_sent"})
}

// HandleVerifyEmail handles GET /auth/verify-email?token=...; on success the
// browser is redirected to the frontend confirmation page.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := h.svc.VerifyEmail(r.Context(), token); err != nil {
		h.respondAuthError(w, err)
		return
	}
	http.Redirect(w, r, h.frontendBaseURL+"/email-verified", http.StatusFound)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	ChallengeID string `json:"challenge_id"`
}

// HandleSignIn handles POST /auth/signin. A correct password yields a
// second-factor challenge id, never a token.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.signinLimiter.Allow(middleware.ClientIP(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	challengeID, err := h.svc.SignIn(r.Context(), req.Email, req.Password, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		h.respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, signInResponse{ChallengeID: challengeID.String()})
}

type verifyTwoFactorRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
	RememberMe  bool   `json:"remember_me"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// HandleVerifyTwoFactor handles POST /auth/signin/verify-2fa.
func (h *AuthHandler) HandleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.verifyLimiter.Allow(middleware.ClientIP(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	challengeID, err := uuid.Parse(strings.TrimSpace(req.ChallengeID))
	if err != nil || strings.TrimSpace(req.Code) == "" {
		respondWithError(w, http.StatusBadRequest, "challenge_id and code are required")
		return
	}

	pair, err := h.svc.VerifyTwoFactor(r.Context(), challengeID, strings.TrimSpace(req.Code), req.RememberMe, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		h.respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh handles POST /auth/refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	access, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

// HandleLogout handles POST /auth/logout. Revocation never fails for unknown
// or already-revoked tokens.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		h.log.Error("logout", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type accountResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// HandleMe handles GET /me (protected).
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	acc, ok := middleware.GetAccount(r.Context())
	if !ok || acc == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, accountResponse{
		ID:            acc.ID.String(),
		Email:         acc.Email,
		DisplayName:   acc.DisplayName,
		EmailVerified: acc.EmailVerified,
	})
}

// respondAuthError maps the closed auth error set to HTTP statuses. Anything
// outside the set is logged and surfaced as an opaque 500.
func (h *AuthHandler) respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrDuplicateAccount):
		respondWithError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, auth.ErrAccountLocked):
		respondWithError(w, http.StatusLocked, "account locked")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidChallenge):
		respondWithError(w, http.StatusUnauthorized, "invalid code")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		respondWithError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, auth.ErrInvalidToken):
		respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
	default:
		h.log.Error("auth operation failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
