package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/easylink/server/internal/auth"
	"github.com/easylink/server/internal/http/handlers"
	"github.com/easylink/server/internal/middleware"
	"github.com/easylink/server/internal/repo"
)

// NewRouter configures all routes. Protected routes sit behind the
// access-token middleware; the SSE stream shares it.
func NewRouter(
	authHandler *handlers.AuthHandler,
	notificationHandler *handlers.NotificationHandler,
	tokens *auth.TokenService,
	accounts repo.AccountRepo,
	log *zap.Logger,
	corsOrigins []string,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.NewHealthHandler().ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Get("/verify-email", authHandler.HandleVerifyEmail)
		r.Post("/signin", authHandler.HandleSignIn)
		r.Post("/signin/verify-2fa", authHandler.HandleVerifyTwoFactor)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens, accounts))
		r.Get("/me", authHandler.HandleMe)
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.HandleList)
			r.Post("/{id}/read", notificationHandler.HandleMarkRead)
			r.Get("/stream", notificationHandler.HandleStream)
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", chimw.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
