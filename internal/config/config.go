// Package config loads server configuration from GALLEY_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all galley-server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Metadata store ("memory" or "postgres")
	StoreBackend  string
	DatabaseURL   string
	MigrationsDir string

	// Blob storage ("local" or "s3")
	StorageBackend   string
	LocalStoragePath string
	S3Endpoint       string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3Region         string
	S3UseSSL         bool

	// TLS (optional; if both set the main server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// OIDC (optional)
	OIDCIssuerURL  string
	OIDCClientID   string
	OIDCAdminClaim string
	OIDCAdminValue string

	// Limits
	MaxUploadSize     int64
	RequestsPerMinute int

	// Shutdown
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  envOr("GALLEY_LISTEN_ADDR", ":8080"),
		MetricsAddr: envOr("GALLEY_METRICS_ADDR", ":9090"),

		LogLevel:  envOr("GALLEY_LOG_LEVEL", "info"),
		LogFormat: envOr("GALLEY_LOG_FORMAT", "json"),

		StoreBackend:  envOr("GALLEY_STORE", "memory"),
		DatabaseURL:   envOr("GALLEY_DATABASE_URL", ""),
		MigrationsDir: envOr("GALLEY_MIGRATIONS_DIR", "migrations"),

		StorageBackend:   envOr("GALLEY_STORAGE", "local"),
		LocalStoragePath: envOr("GALLEY_STORAGE_PATH", "data/blobs"),
		S3Endpoint:       envOr("GALLEY_S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:         envOr("GALLEY_S3_BUCKET", "galley"),
		S3AccessKey:      envOr("GALLEY_S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      envOr("GALLEY_S3_SECRET_KEY", "minioadmin"),
		S3Region:         envOr("GALLEY_S3_REGION", "us-east-1"),
		S3UseSSL:         envBoolOr("GALLEY_S3_USE_SSL", false),

		TLSCertFile: envOr("GALLEY_TLS_CERT_FILE", ""),
		TLSKeyFile:  envOr("GALLEY_TLS_KEY_FILE", ""),

		JWTSecret: envOr("GALLEY_JWT_SECRET", ""),
		TokenTTL:  envDurOr("GALLEY_TOKEN_TTL", 24*time.Hour),

		OIDCIssuerURL:  envOr("GALLEY_OIDC_ISSUER_URL", ""),
		OIDCClientID:   envOr("GALLEY_OIDC_CLIENT_ID", ""),
		OIDCAdminClaim: envOr("GALLEY_OIDC_ADMIN_CLAIM", "is_admin"),
		OIDCAdminValue: envOr("GALLEY_OIDC_ADMIN_VALUE", "true"),

		MaxUploadSize:     envInt64Or("GALLEY_MAX_UPLOAD_SIZE", 100*1024*1024),
		RequestsPerMinute: envIntOr("GALLEY_REQUESTS_PER_MINUTE", 0),

		ShutdownTimeout: envDurOr("GALLEY_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	switch cfg.StoreBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("GALLEY_DATABASE_URL is required when GALLEY_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("invalid GALLEY_STORE %q (want memory or postgres)", cfg.StoreBackend)
	}

	switch cfg.StorageBackend {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("invalid GALLEY_STORAGE %q (want local or s3)", cfg.StorageBackend)
	}

	switch cfg.LogFormat {
	case "json", "console":
	default:
		return nil, fmt.Errorf("invalid GALLEY_LOG_FORMAT %q (want json or console)", cfg.LogFormat)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("GALLEY_JWT_SECRET is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64Or(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDurOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
