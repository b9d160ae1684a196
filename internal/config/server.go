package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServerConfig holds all server configuration (spec §6's env var list).
type ServerConfig struct {
	// Server
	ServerHost string
	ServerPort int
	LogLevel   string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret             string
	JWTRefreshSecret      string
	JWTAccessTokenExpiry  time.Duration
	JWTRefreshTokenExpiry time.Duration

	// URLs
	FrontURL   string
	APIBaseURL string

	// Bootstrap admin (spec §9: seeded once, read exactly at seed time)
	DefaultAdminEmail    string
	DefaultAdminPassword string

	// Rate limiting
	RateLimitRequestsPerMinute int
	RateLimitLoginPerMinute    int

	// Email (SMTP fallback when Resend is not configured)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Resend (spec §4.11)
	ResendAPIKey    string
	ResendFromEmail string

	// Z-API WhatsApp (spec §4.11)
	ZAPIInstanceID  string
	ZAPIToken       string
	ZAPIClientToken string

	// Asaas payment gateway (spec §6, collaborator only)
	AsaasBaseURL string
	AsaasAPIKey  string

	// PAdES signing certificate (spec §6 signature collaborator)
	PAdESCertificatePath     string
	PAdESCertificatePassword string

	// Application
	AppName        string
	AllowedOrigins []string

	// Features
	EnableRegistration bool

	// Storage
	StorageType          string
	StorageLocalPath     string
	StorageS3Endpoint    string
	StorageS3Bucket      string
	StorageS3Region      string
	StorageS3AccessKeyID string
	StorageS3SecretKey   string
	StorageS3UseSSL      bool
}

// LoadServerConfig loads configuration from environment variables.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret:             os.Getenv("JWT_SECRET"),
		JWTRefreshSecret:      os.Getenv("JWT_REFRESH_SECRET"),
		JWTAccessTokenExpiry:  getEnvDuration("JWT_ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		JWTRefreshTokenExpiry: getEnvDuration("JWT_REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),

		FrontURL:   getEnv("FRONT_URL", "http://localhost:3000"),
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),

		DefaultAdminEmail:    os.Getenv("DEFAULT_ADMIN_EMAIL"),
		DefaultAdminPassword: os.Getenv("DEFAULT_ADMIN_PASSWORD"),

		RateLimitRequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 100),
		RateLimitLoginPerMinute:    getEnvInt("RATE_LIMIT_LOGIN_PER_MINUTE", 5),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),

		ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
		ResendFromEmail: getEnv("RESEND_FROM_EMAIL", "noreply@example.com"),

		ZAPIInstanceID:  os.Getenv("ZAPI_INSTANCE_ID"),
		ZAPIToken:       os.Getenv("ZAPI_TOKEN"),
		ZAPIClientToken: os.Getenv("ZAPI_CLIENT_TOKEN"),

		AsaasBaseURL: getEnv("ASAAS_BASE_URL", "https://api.asaas.com/v3"),
		AsaasAPIKey:  os.Getenv("ASAAS_API_KEY"),

		PAdESCertificatePath:     os.Getenv("PADES_CERTIFICATE_PATH"),
		PAdESCertificatePassword: os.Getenv("PADES_CERTIFICATE_PASSWORD"),

		AppName:        getEnv("APP_NAME", "Document Signing Platform"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:8080"}),

		EnableRegistration: getEnvBool("ENABLE_REGISTRATION", true),

		StorageType:          getEnv("STORAGE_TYPE", "local"),
		StorageLocalPath:     getEnv("STORAGE_LOCAL_PATH", "./data/documents"),
		StorageS3Endpoint:    os.Getenv("STORAGE_S3_ENDPOINT"),
		StorageS3Bucket:      getEnv("STORAGE_S3_BUCKET", "documents"),
		StorageS3Region:      getEnv("STORAGE_S3_REGION", "us-east-1"),
		StorageS3AccessKeyID: os.Getenv("STORAGE_S3_ACCESS_KEY_ID"),
		StorageS3SecretKey:   os.Getenv("STORAGE_S3_SECRET_KEY"),
		StorageS3UseSSL:      getEnvBool("STORAGE_S3_USE_SSL", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present. In production
// it also rejects insecure defaults to prevent misconfiguration.
func (c *ServerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}
	if len(c.JWTRefreshSecret) < 32 {
		return fmt.Errorf("JWT_REFRESH_SECRET must be at least 32 characters")
	}

	env := getEnv("APP_ENV", "production")
	if env == "production" || env == "prod" {
		insecureSecrets := []string{
			"dev-jwt-secret-change-in-production",
			"your-256-bit-secret-key-change-in-production",
			"change-me",
			"secret",
		}
		for _, insecure := range insecureSecrets {
			if c.JWTSecret == insecure || c.JWTRefreshSecret == insecure {
				return fmt.Errorf("JWT_SECRET/JWT_REFRESH_SECRET contains an insecure default value - please generate a secure secret with: openssl rand -hex 32")
			}
		}
		if containsAny(c.DatabaseURL, []string{"abp_dev_password", "password", "postgres:postgres"}) {
			return fmt.Errorf("DATABASE_URL contains an insecure default password - please use a strong password")
		}
	}

	return nil
}

// containsAny checks if s contains any of the substrings
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if len(sub) > 0 && len(s) >= len(sub) {
			for i := 0; i <= len(s)-len(sub); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

// Address returns the server address in host:port format
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// StorageConfigResult mirrors document.StorageConfig's shape for initialization.
type StorageConfigResult struct {
	Type              string
	LocalPath         string
	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UseSSL          bool
}

func (c *ServerConfig) StorageConfig() *StorageConfigResult {
	return &StorageConfigResult{
		Type:              c.StorageType,
		LocalPath:         c.StorageLocalPath,
		S3Endpoint:        c.StorageS3Endpoint,
		S3Bucket:          c.StorageS3Bucket,
		S3Region:          c.StorageS3Region,
		S3AccessKeyID:     c.StorageS3AccessKeyID,
		S3SecretAccessKey: c.StorageS3SecretKey,
		S3UseSSL:          c.StorageS3UseSSL,
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, s := range splitAndTrim(value, ",") {
			if s != "" {
				result = append(result, s)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var result []string
	for _, part := range split(s, sep) {
		trimmed := trim(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func split(s, sep string) []string {
	var result []string
	start := 0
	for i := 0; i <= len(s)-len(sep); i++ {
		if s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
		}
	}
	result = append(result, s[start:])
	return result
}

func trim(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// WorkerConfig holds worker process configuration (spec §4.10 scheduler).
type WorkerConfig struct {
	DatabaseURL string
	RedisURL    string

	WorkerConcurrency int
	PollInterval      time.Duration
	ShutdownTimeout   time.Duration
	JobTimeout        time.Duration

	HealthPort int
	LogLevel   string

	FrontURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	ResendAPIKey    string
	ResendFromEmail string

	ZAPIInstanceID  string
	ZAPIToken       string
	ZAPIClientToken string

	StorageType          string
	StorageLocalPath     string
	StorageS3Endpoint    string
	StorageS3Bucket      string
	StorageS3Region      string
	StorageS3AccessKeyID string
	StorageS3SecretKey   string
	StorageS3UseSSL      bool
}

// LoadWorkerConfig loads worker configuration from environment variables
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		PollInterval:      getEnvDuration("WORKER_POLL_INTERVAL", 1*time.Minute),
		ShutdownTimeout:   getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
		JobTimeout:        getEnvDuration("JOB_TIMEOUT", 30*time.Minute),

		HealthPort: getEnvInt("WORKER_HEALTH_PORT", 8081),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		FrontURL: getEnv("FRONT_URL", "http://localhost:3000"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),

		ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
		ResendFromEmail: getEnv("RESEND_FROM_EMAIL", "noreply@example.com"),

		ZAPIInstanceID:  os.Getenv("ZAPI_INSTANCE_ID"),
		ZAPIToken:       os.Getenv("ZAPI_TOKEN"),
		ZAPIClientToken: os.Getenv("ZAPI_CLIENT_TOKEN"),

		StorageType:          getEnv("STORAGE_TYPE", "local"),
		StorageLocalPath:     getEnv("STORAGE_LOCAL_PATH", "./data/documents"),
		StorageS3Endpoint:    os.Getenv("STORAGE_S3_ENDPOINT"),
		StorageS3Bucket:      getEnv("STORAGE_S3_BUCKET", "documents"),
		StorageS3Region:      getEnv("STORAGE_S3_REGION", "us-east-1"),
		StorageS3AccessKeyID: os.Getenv("STORAGE_S3_ACCESS_KEY_ID"),
		StorageS3SecretKey:   os.Getenv("STORAGE_S3_SECRET_KEY"),
		StorageS3UseSSL:      getEnvBool("STORAGE_S3_USE_SSL", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *WorkerConfig) StorageConfig() *StorageConfigResult {
	return &StorageConfigResult{
		Type:              c.StorageType,
		LocalPath:         c.StorageLocalPath,
		S3Endpoint:        c.StorageS3Endpoint,
		S3Bucket:          c.StorageS3Bucket,
		S3Region:          c.StorageS3Region,
		S3AccessKeyID:     c.StorageS3AccessKeyID,
		S3SecretAccessKey: c.StorageS3SecretKey,
		S3UseSSL:          c.StorageS3UseSSL,
	}
}

// Validate checks that all required configuration is present
func (c *WorkerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at most 100")
	}
	return nil
}
