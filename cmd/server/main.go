// Package main is the entrypoint for the certbot-ui API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certops/certbot-ui/internal/api"
	"github.com/certops/certbot-ui/internal/api/handler"
	mw "github.com/certops/certbot-ui/internal/api/middleware"
	"github.com/certops/certbot-ui/internal/auth"
	"github.com/certops/certbot-ui/internal/cache"
	"github.com/certops/certbot-ui/internal/certbot"
	"github.com/certops/certbot-ui/internal/config"
	"github.com/certops/certbot-ui/internal/jobs"
	"github.com/certops/certbot-ui/internal/store"
	"github.com/certops/certbot-ui/internal/ws"
	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 30 * time.Second

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "certbot", cfg.Certbot.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and seed the development admin account
	pgStore := store.NewPostgresStore(pool)
	if err := seedDefaultAdmin(ctx, pgStore, cfg.Server.Env); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// 6. Job store with background retention cleanup
	jobStore := jobs.NewStore()
	jobStore.StartCleanup(ctx, jobs.CleanupInterval)

	// 7. Websocket hub and certbot orchestrator
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	hub := ws.NewHub(tokens)
	defer hub.Close()

	runner := certbot.NewExecRunner(cfg.Certbot.Path, cfg.Certbot.Timeout)
	svc := certbot.NewService(cfg.Certbot, runner, jobStore, hub, redisCache)

	// 8. Build router with dependencies
	authMW := mw.NewAuth(tokens)
	rateLimit := mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMin, cfg.RateLimit.AuthPerMin)

	authHandler := handler.NewAuthHandler(pgStore, tokens)
	certHandler := handler.NewCertificateHandler(svc, jobStore, cfg.Certbot.ConfigDir)
	jobHandler := handler.NewJobHandler(jobStore)
	healthHandler := handler.NewHealthHandler(pgStore, redisCache, svc)

	router := api.NewRouter(api.Dependencies{
		Auth:      authMW,
		RateLimit: rateLimit,

		HealthHandler:        healthHandler.Health,
		CertbotHealthHandler: healthHandler.Certbot,

		LoginHandler:          authHandler.Login,
		RegisterHandler:       authHandler.Register,
		ChangePasswordHandler: authHandler.ChangePassword,
		MeHandler:             authHandler.Me,

		ListCertificates:    certHandler.List,
		GetCertificate:      certHandler.Get,
		DownloadHandler:     certHandler.Download,
		ObtainHandler:       certHandler.Obtain,
		RenewHandler:        certHandler.Renew,
		RevokeHandler:       certHandler.Revoke,
		DeleteHandler:       certHandler.Delete,
		LogsHandler:         certHandler.Logs,
		DNSChallengeHandler: certHandler.DNSChallenge,

		ListJobsHandler: jobHandler.List,
		GetJobHandler:   jobHandler.Get,

		WebsocketHandler: hub.ServeHTTP,
	})

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// seedDefaultAdmin creates the admin/admin123 account on an empty user table
// so a fresh development install is reachable. Production installs must
// create accounts through the register endpoint.
func seedDefaultAdmin(ctx context.Context, s store.Store, env string) error {
	if env == "production" {
		return nil
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     defaultAdminUsername,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		// Lost a race with another instance seeding the same account.
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil
		}
		return err
	}

	slog.Warn("seeded default admin account, change the password before exposing this service",
		"username", defaultAdminUsername)
	return nil
}
