package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/easylink/server/internal/auth"
	"github.com/easylink/server/internal/config"
	"github.com/easylink/server/internal/db"
	httphandler "github.com/easylink/server/internal/http"
	"github.com/easylink/server/internal/http/handlers"
	"github.com/easylink/server/internal/mail"
	"github.com/easylink/server/internal/notify"
	"github.com/easylink/server/internal/repo"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.DevMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer database.Close()
	log.Info("database connected", zap.String("dsn", db.RedactDSN(cfg.DatabaseURL)))

	if err := runMigrations(database); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}

	accountRepo := repo.NewAccountRepo(database)
	challengeRepo := repo.NewChallengeRepo(database)
	refreshRepo := repo.NewRefreshRepo(database)
	notificationRepo := repo.NewNotificationRepo(database)

	sender := mail.NewDevSender(log, cfg.FrontendBaseURL)
	hasher := auth.NewPasswordHasher(0)

	hub := notify.NewHub()
	notifier := notify.NewService(notificationRepo, hub, log)

	accountSvc := auth.NewAccountService(accountRepo, hasher, sender, log, nil)
	challengeSvc := auth.NewChallengeService(challengeRepo, accountRepo, hasher, sender, log, nil)
	refreshSvc := auth.NewRefreshService(refreshRepo, accountRepo, nil)
	tokenSvc := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, nil)
	authSvc := auth.NewService(accountSvc, challengeSvc, refreshSvc, tokenSvc, notifier, log)

	authHandler := handlers.NewAuthHandler(authSvc, log, cfg.FrontendBaseURL)
	notificationHandler := handlers.NewNotificationHandler(notifier, log)

	router := httphandler.NewRouter(authHandler, notificationHandler, tokenSvc, accountRepo, log, []string{cfg.FrontendBaseURL})

	// No WriteTimeout: the SSE stream at /api/notifications/stream holds its
	// response open indefinitely.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
}

func newLogger(devMode bool) (*zap.Logger, error) {
	if devMode {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	dir := "internal/db/migrations"
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory %q not found (run from the module root)", dir)
	}
	if err := goose.Up(database, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
