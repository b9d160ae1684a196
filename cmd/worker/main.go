package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/austrian-business-infrastructure/fo/internal/config"
	"github.com/austrian-business-infrastructure/fo/internal/document"
	"github.com/austrian-business-infrastructure/fo/internal/email"
	"github.com/austrian-business-infrastructure/fo/internal/identity"
	"github.com/austrian-business-infrastructure/fo/internal/notification"
	"github.com/austrian-business-infrastructure/fo/internal/sigfield"
	"github.com/austrian-business-infrastructure/fo/internal/signature"
	"github.com/austrian-business-infrastructure/fo/internal/signer"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/austrian-business-infrastructure/fo/pkg/cache"
	"github.com/austrian-business-infrastructure/fo/pkg/database"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	workerID := fmt.Sprintf("worker-%s-%d", hostname(), os.Getpid())
	logger.Info("starting worker", "worker_id", workerID)

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.DefaultPostgresConfig(cfg.DatabaseURL)
	db, err := database.NewPool(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	var redis *cache.Client
	if cfg.RedisURL != "" {
		redisConfig := cache.DefaultRedisConfig(cfg.RedisURL)
		redis, err = cache.NewClient(ctx, redisConfig)
		if err != nil {
			logger.Warn("failed to connect to redis, proceeding without it", "error", err)
		} else {
			defer redis.Close()
			logger.Info("connected to redis")
		}
	}

	identityRepo := identity.NewRepository(db.Pool)
	tenantSettingsRepo := tenant.NewSettingsRepository(db.Pool)
	signerRepo := signer.NewRepository(db.Pool)
	signatureRepo := signature.NewRepository(db.Pool)
	docRepo := document.NewRepository(db.Pool)
	auditRepo := audit.NewRepository(db.Pool)
	auditLog := audit.NewLogger(auditRepo, db.Pool, logger)

	var mailer email.Service
	if cfg.SMTPHost != "" {
		mailer = email.NewSMTPService(&email.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Password: cfg.SMTPPassword, From: cfg.SMTPFrom,
		})
	} else {
		mailer = email.NewNoopService()
	}
	notifier := notification.NewService(tenantSettingsRepo, mailer, notification.ProcessWideConfig{
		ResendAPIKey: cfg.ResendAPIKey, ResendFrom: cfg.ResendFromEmail,
		ZAPIInstanceID: cfg.ZAPIInstanceID, ZAPIToken: cfg.ZAPIToken, ZAPIClient: cfg.ZAPIClientToken,
	}, logger)

	docStorage, err := document.NewStorage(&document.StorageConfig{
		Type:              document.StorageType(cfg.StorageType),
		LocalPath:         cfg.StorageLocalPath,
		S3Endpoint:        cfg.StorageS3Endpoint,
		S3Bucket:          cfg.StorageS3Bucket,
		S3Region:          cfg.StorageS3Region,
		S3AccessKeyID:     cfg.StorageS3AccessKeyID,
		S3SecretAccessKey: cfg.StorageS3SecretKey,
		S3UseSSL:          cfg.StorageS3UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create document storage: %w", err)
	}

	docService := document.NewService(db.Pool, docRepo, docStorage, auditLog)
	embedder := sigfield.NewEmbedder()
	signatureService := signature.NewService(db.Pool, signatureRepo, docRepo, signerRepo, identityRepo, docStorage, embedder, auditLog, notifier, cfg.FrontURL, logger)

	sched := &scheduler{
		docService:       docService,
		signatureService: signatureService,
		pollInterval:     cfg.PollInterval,
		logger:           logger,
	}

	healthServer := startHealthServer(cfg.HealthPort, db, redis, logger)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sched.run(gctx)
		return nil
	})

	logger.Info("worker started", "poll_interval", cfg.PollInterval, "health_port", cfg.HealthPort)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	sig := <-shutdown
	logger.Info("shutdown signal received", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		group.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("scheduler stopped")
	case <-shutdownCtx.Done():
		logger.Warn("scheduler shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}

// scheduler implements spec §4.10's two polling hooks: reminder delivery
// for documents nearing their deadline, and deadline-expiry transitions.
type scheduler struct {
	docService       *document.Service
	signatureService *signature.Service
	pollInterval     time.Duration
	logger           *slog.Logger
}

func (s *scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.docService.DueReminders(ctx, now)
	if err != nil {
		s.logger.Error("due reminders query failed", "error", err)
	} else {
		for _, doc := range due {
			if err := s.signatureService.SendReminders(ctx, doc); err != nil {
				s.logger.Error("send reminders failed", "document_id", doc.ID, "error", err)
			}
		}
		if len(due) > 0 {
			s.logger.Info("reminders sent", "count", len(due))
		}
	}

	expired, err := s.docService.ExpireOverdue(ctx, now)
	if err != nil {
		s.logger.Error("expire overdue failed", "error", err)
	} else if expired > 0 {
		s.logger.Info("documents expired", "count", expired)
	}
}

func startHealthServer(port int, db *database.Pool, redis *cache.Client, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		healthy := true
		dbStatus := "healthy"
		if err := db.Health(ctx); err != nil {
			dbStatus = "unhealthy"
			healthy = false
		}
		redisStatus := "unavailable"
		if redis != nil {
			if err := redis.Health(ctx); err != nil {
				redisStatus = "unhealthy"
				healthy = false
			} else {
				redisStatus = "healthy"
			}
		}

		status := http.StatusOK
		readyState := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			readyState = "not_ready"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"status":"%s","checks":{"database":"%s","redis":"%s"}}`, readyState, dbStatus, redisStatus)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	return server
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "worker"
}
