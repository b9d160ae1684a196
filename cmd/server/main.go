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

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/austrian-business-infrastructure/fo/internal/auth"
	"github.com/austrian-business-infrastructure/fo/internal/config"
	"github.com/austrian-business-infrastructure/fo/internal/document"
	"github.com/austrian-business-infrastructure/fo/internal/email"
	"github.com/austrian-business-infrastructure/fo/internal/folder"
	"github.com/austrian-business-infrastructure/fo/internal/identity"
	"github.com/austrian-business-infrastructure/fo/internal/invitation"
	"github.com/austrian-business-infrastructure/fo/internal/notification"
	"github.com/austrian-business-infrastructure/fo/internal/otp"
	"github.com/austrian-business-infrastructure/fo/internal/payment"
	"github.com/austrian-business-infrastructure/fo/internal/session"
	"github.com/austrian-business-infrastructure/fo/internal/sigfield"
	"github.com/austrian-business-infrastructure/fo/internal/signature"
	"github.com/austrian-business-infrastructure/fo/internal/signer"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/austrian-business-infrastructure/fo/pkg/cache"
	"github.com/austrian-business-infrastructure/fo/pkg/database"
	"github.com/google/uuid"
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

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting server")

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	isDev := os.Getenv("APP_ENV") == "dev" || os.Getenv("APP_ENV") == "development"
	if err := auth.MustLoadKeys(isDev); err != nil {
		return fmt.Errorf("failed to load JWT keys: %w", err)
	}
	logger.Info("JWT signing keys loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.DefaultPostgresConfig(cfg.DatabaseURL)
	db, err := database.NewPool(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	redisConfig := cache.DefaultRedisConfig(cfg.RedisURL)
	redis, err := cache.NewClient(ctx, redisConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redis.Close()
	logger.Info("connected to redis")

	router := api.NewRouter(logger)
	router.Use(api.RequestID)
	router.Use(api.Recovery(logger))
	router.Use(api.Logger(logger))
	router.Use(api.CORS(cfg.AllowedOrigins))
	router.Use(api.SecureHeaders)
	router.Use(api.ContentSecurityPolicy(api.DefaultCSPConfig()))

	router.HandleFunc("GET /health", healthHandler())
	router.HandleFunc("GET /ready", readyHandler(db, redis))

	// Repositories
	identityRepo := identity.NewRepository(db.Pool)
	tenantRepo := tenant.NewRepository(db.Pool)
	planRepo := tenant.NewPlanRepository(db.Pool)
	memberRepo := tenant.NewMemberRepository(db.Pool)
	settingsRepo := tenant.NewSettingsRepository(db.Pool)
	sessionRepo := session.NewRepository(db.Pool, redis, cfg.JWTRefreshTokenExpiry)
	otpRepo := otp.NewRepository(db.Pool)
	auditRepo := audit.NewRepository(db.Pool)
	signerRepo := signer.NewRepository(db.Pool)
	signatureRepo := signature.NewRepository(db.Pool)
	docRepo := document.NewRepository(db.Pool)
	folderRepo := folder.NewRepository(db.Pool)

	auditLog := audit.NewLogger(auditRepo, db.Pool, logger)

	// Email / notification adapters
	var mailer email.Service
	if cfg.SMTPHost != "" {
		mailer = email.NewSMTPService(&email.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Password: cfg.SMTPPassword, From: cfg.SMTPFrom,
		})
	} else {
		mailer = email.NewNoopService()
	}
	notifier := notification.NewService(settingsRepo, mailer, notification.ProcessWideConfig{
		ResendAPIKey: cfg.ResendAPIKey, ResendFrom: cfg.ResendFromEmail,
		ZAPIInstanceID: cfg.ZAPIInstanceID, ZAPIToken: cfg.ZAPIToken, ZAPIClient: cfg.ZAPIClientToken,
	}, logger)

	// Document storage
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

	// Services
	tenantService := tenant.NewService(db.Pool, tenantRepo, planRepo, memberRepo, identityRepo, auditLog)
	docService := document.NewService(db.Pool, docRepo, docStorage, auditLog)
	folderService := folder.NewService(folderRepo, auditLog)
	embedder := sigfield.NewEmbedder()
	signatureService := signature.NewService(db.Pool, signatureRepo, docRepo, signerRepo, identityRepo, docStorage, embedder, auditLog, notifier, cfg.FrontURL, logger)
	signerService := signer.NewService(db.Pool, signerRepo, docRepo, otpRepo, auditLog, notifier, logger)

	signerIDsFor := func(ctx context.Context, documentID uuid.UUID) ([]uuid.UUID, error) {
		return signerRepo.IDsForDocument(ctx, documentID)
	}
	signerSummariesFor := func(ctx context.Context, documentID uuid.UUID) ([]document.SignerSummary, error) {
		signers, err := signerRepo.ForDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		summaries := make([]document.SignerSummary, len(signers))
		for i, s := range signers {
			summaries[i] = document.SignerSummary{Name: s.Name, Email: s.Email, Status: string(s.Status), SignedAt: s.SignedAt}
		}
		return summaries, nil
	}

	// JWT + sessions
	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtManager := auth.NewJWTManager(jwtConfig)
	revocationList := auth.NewTokenRevocationList(redis.Client)
	jwtManager.SetRevocationList(revocationList)

	rateLimiter := auth.NewRateLimiter(redis.Client)

	// Handlers
	authHandler := auth.NewHandler(tenantService, identityRepo, sessionRepo, otpRepo, jwtManager, rateLimiter, auditLog, mailer, logger, cfg.FrontURL)
	invitationHandler := invitation.NewHandler(tenantService, logger)
	paymentHandler := payment.NewHandler(tenantService, logger)
	checkDocumentQuota := func(ctx context.Context, tenantID uuid.UUID) error {
		return tenantService.CheckQuota(ctx, tenantID, docRepo, false, true)
	}
	checkFolder := func(ctx context.Context, tenantID, folderID uuid.UUID) error {
		return folderService.BelongsToTenant(ctx, tenantID, folderID)
	}
	docHandler := document.NewHandler(docService, auditLog, signerIDsFor, checkDocumentQuota, checkFolder, signerSummariesFor, logger)
	signerHandler := signer.NewHandler(signerService)
	signatureHandler := signature.NewHandler(signatureService, signerService)
	folderHandler := folder.NewHandler(folderService)

	authMiddleware := auth.NewAuthMiddleware(jwtManager)
	requireAuth := authMiddleware.RequireAuth
	requireManager := authMiddleware.RequireRole(auth.RoleManager)

	authHandler.RegisterRoutes(router, requireAuth)
	invitationHandler.RegisterRoutes(router, requireAuth)
	docHandler.RegisterRoutes(router, requireAuth)
	signerHandler.RegisterRoutes(router)
	signatureHandler.RegisterRoutes(router, requireManager)
	paymentHandler.RegisterRoutes(router)
	folderHandler.RegisterRoutes(router, requireAuth)

	logger.Info("API routes registered")

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Address())
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed, forcing close", "error", err)
			if err := server.Close(); err != nil {
				return fmt.Errorf("could not close server: %w", err)
			}
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.JSONResponse(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}

func readyHandler(db *database.Pool, redis *cache.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		checks := make(map[string]string)
		healthy := true

		if err := db.Health(ctx); err != nil {
			checks["database"] = "unhealthy"
			healthy = false
		} else {
			checks["database"] = "healthy"
		}

		if err := redis.Health(ctx); err != nil {
			checks["redis"] = "unhealthy"
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}

		api.JSONResponse(w, status, map[string]interface{}{
			"status": map[bool]string{true: "ready", false: "not_ready"}[healthy],
			"checks": checks,
		})
	}
}
