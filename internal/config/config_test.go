package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GALLEY_JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("StoreBackend = %q, want memory", cfg.StoreBackend)
	}
	if cfg.StorageBackend != "local" {
		t.Errorf("StorageBackend = %q, want local", cfg.StorageBackend)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.MaxUploadSize != 100*1024*1024 {
		t.Errorf("MaxUploadSize = %d, want 100MiB", cfg.MaxUploadSize)
	}
	if cfg.RequestsPerMinute != 0 {
		t.Errorf("RequestsPerMinute = %d, want 0", cfg.RequestsPerMinute)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GALLEY_JWT_SECRET", "test-secret")
	t.Setenv("GALLEY_LISTEN_ADDR", ":9999")
	t.Setenv("GALLEY_S3_USE_SSL", "true")
	t.Setenv("GALLEY_TOKEN_TTL", "30m")
	t.Setenv("GALLEY_MAX_UPLOAD_SIZE", "1024")
	t.Setenv("GALLEY_REQUESTS_PER_MINUTE", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want :9999", cfg.ListenAddr)
	}
	if !cfg.S3UseSSL {
		t.Error("S3UseSSL = false, want true")
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL = %v, want 30m", cfg.TokenTTL)
	}
	if cfg.MaxUploadSize != 1024 {
		t.Errorf("MaxUploadSize = %d, want 1024", cfg.MaxUploadSize)
	}
	if cfg.RequestsPerMinute != 120 {
		t.Errorf("RequestsPerMinute = %d, want 120", cfg.RequestsPerMinute)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GALLEY_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without GALLEY_JWT_SECRET")
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("GALLEY_JWT_SECRET", "test-secret")
	t.Setenv("GALLEY_STORE", "cassandra")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted unknown store backend")
	}
}

func TestLoadPostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("GALLEY_JWT_SECRET", "test-secret")
	t.Setenv("GALLEY_STORE", "postgres")
	t.Setenv("GALLEY_DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted postgres store without a database URL")
	}
}

func TestLoadRejectsUnknownStorage(t *testing.T) {
	t.Setenv("GALLEY_JWT_SECRET", "test-secret")
	t.Setenv("GALLEY_STORAGE", "tape")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted unknown storage backend")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GALLEY_JWT_SECRET", "test-secret")
	t.Setenv("GALLEY_S3_USE_SSL", "not-a-bool")
	t.Setenv("GALLEY_TOKEN_TTL", "not-a-duration")
	t.Setenv("GALLEY_REQUESTS_PER_MINUTE", "not-an-int")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.S3UseSSL {
		t.Error("S3UseSSL: want fallback false for unparseable value")
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want fallback 24h", cfg.TokenTTL)
	}
	if cfg.RequestsPerMinute != 0 {
		t.Errorf("RequestsPerMinute = %d, want fallback 0", cfg.RequestsPerMinute)
	}
}
