package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"

	"github.com/znz-systems/triage/internal/account"
	"github.com/znz-systems/triage/internal/auth"
	"github.com/znz-systems/triage/internal/blob"
	"github.com/znz-systems/triage/internal/classifier"
	"github.com/znz-systems/triage/internal/config"
	"github.com/znz-systems/triage/internal/database"
	"github.com/znz-systems/triage/internal/fetch"
	"github.com/znz-systems/triage/internal/mail"
	"github.com/znz-systems/triage/internal/metrics"
	"github.com/znz-systems/triage/internal/pipeline"
	"github.com/znz-systems/triage/internal/ratelimit"
	"github.com/znz-systems/triage/internal/secret"
	"github.com/znz-systems/triage/internal/store/postgres"
	"github.com/znz-systems/triage/internal/synclock"
	"github.com/znz-systems/triage/internal/web"
	"github.com/znz-systems/triage/internal/web/handlers"
	"github.com/znz-systems/triage/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.LogFormat, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Migrations
	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Stores
	userStore := postgres.NewUserStore(db)
	emailStore := postgres.NewEmailStore(db)
	notificationStore := postgres.NewNotificationStore(db)

	// Mail-account secrets
	var box *secret.Box
	if len(cfg.MailSecretKey) > 0 {
		box, err = secret.NewBox(cfg.MailSecretKey)
	} else {
		slog.Warn("MAIL_SECRET_KEY not set, using an ephemeral key; stored IMAP passwords will not survive a restart")
		box, err = secret.NewEphemeralBox()
	}
	if err != nil {
		slog.Error("failed to create secret box", "error", err)
		os.Exit(1)
	}

	// Services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, "triage", time.Duration(cfg.JWTTTLMinutes)*time.Minute)
	authService := auth.NewService(userStore, tokens)
	accountService := account.NewService(userStore, box)

	// Classifier
	artifacts, err := blob.Open(ctx, blob.Config{
		Backend:           cfg.ModelBackend,
		Dir:               cfg.ModelDir,
		S3Bucket:          cfg.S3Bucket,
		S3Region:          cfg.S3Region,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretKey,
		S3ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		slog.Error("failed to open model storage", "error", err)
		os.Exit(1)
	}
	cls, err := classifier.Load(ctx, artifacts, classifier.Keys{
		Vectorizer: cfg.VectorizerKey,
		Model:      cfg.ModelKey,
	})
	if err != nil {
		slog.Error("failed to load classifier", "error", err)
		os.Exit(1)
	}

	// Pipeline
	fetcher := fetch.NewIMAPFetcher(fetch.Config{
		Addr:     cfg.IMAPAddr,
		Security: fetch.Security(cfg.IMAPSecurity),
	})
	opts := pipeline.Options{MaxMessages: cfg.SyncMaxMessages}
	if cfg.SMTPEnabled {
		smtpClient := mail.NewSMTPClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		opts.Alerter = mail.NewAlerter(smtpClient, userStore)
	}
	syncer := pipeline.NewSyncer(fetcher, cls, emailStore, notificationStore, opts)

	// Health
	health := healthcheck.NewHandler()
	health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(db, time.Second))

	// Sync locks
	var locks synclock.Locker = synclock.NewMemory()
	if cfg.RedisURL != "" {
		redisLocks, err := synclock.NewRedis(ctx, cfg.RedisURL, time.Duration(cfg.SyncLockTTLSeconds)*time.Second)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisLocks.Close()
		health.AddReadinessCheck("redis", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return redisLocks.Ping(pingCtx)
		})
		locks = redisLocks
	}

	// Rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	// Router
	router := web.NewRouter(web.RouterDeps{
		AuthHandler:         handlers.NewAuthHandler(authService),
		IMAPHandler:         handlers.NewIMAPHandler(accountService, syncer, locks),
		EmailHandler:        handlers.NewEmailHandler(emailStore),
		NotificationHandler: handlers.NewNotificationHandler(notificationStore),
		AuthService:         authService,
		Limiter:             limiter,
		Health:              health,
		Metrics:             metrics.Handler(),
		CORSOrigins:         cfg.CORSOrigins,
	})

	// Server. WriteTimeout leaves room for a full mailbox sync.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("triage starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
