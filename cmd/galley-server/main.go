// Galley Server
//
// Features:
// - Project and directory-tree endpoints for the editor file browser
// - Content upload/download with HTTP range support
// - SSE change feed per project
// - JWT auth with sessions, admin endpoints, optional OIDC
// - Prometheus metrics & structured logging (zap)
// - Pluggable metadata (memory, PostgreSQL) and blob storage (local, S3)
package main

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/api"
	"github.com/galleylabs/galley/internal/auth"
	"github.com/galleylabs/galley/internal/config"
	"github.com/galleylabs/galley/internal/events"
	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metadata"
	"github.com/galleylabs/galley/internal/metadata/memory"
	"github.com/galleylabs/galley/internal/metadata/postgres"
	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/internal/ratelimit"
	"github.com/galleylabs/galley/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Galley Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metadata store
	var (
		store   metadata.Store
		pgStore *postgres.Store
	)
	switch cfg.StoreBackend {
	case "postgres":
		logging.Info("connecting to PostgreSQL...")
		pgStore, err = postgres.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}
		if cfg.MigrationsDir != "" {
			logging.Info("running migrations...", zap.String("dir", cfg.MigrationsDir))
			if err := pgStore.Migrate(cfg.MigrationsDir); err != nil {
				logging.Fatal("migration failed", zap.Error(err))
			}
		}
		store = pgStore
	default:
		logging.Info("using in-memory metadata store")
		store = memory.New()
	}
	defer store.Close()

	// Initialize auth
	authHandler := auth.New(store, cfg.JWTSecret, cfg.TokenTTL)
	if err := authHandler.EnsureDefaultAdmin(ctx); err != nil {
		logging.Error("failed to ensure default admin", zap.Error(err))
	}

	// Initialize OIDC provider (optional)
	if cfg.OIDCIssuerURL != "" {
		oidcProvider, err := auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			IssuerURL:  cfg.OIDCIssuerURL,
			ClientID:   cfg.OIDCClientID,
			AdminClaim: cfg.OIDCAdminClaim,
			AdminValue: cfg.OIDCAdminValue,
		}, store)
		if err != nil {
			logging.Fatal("OIDC provider init failed", zap.Error(err))
		}
		if oidcProvider != nil {
			authHandler.SetOIDCProvider(oidcProvider)
		}
	}

	// Initialize SSE broadcaster
	broadcaster := events.NewBroadcaster()
	logging.Info("SSE broadcaster initialized")

	// Initialize blob storage
	backend, err := storage.New(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer backend.Close()
	logging.Info("storage backend ready", zap.String("type", backend.Type()))

	// Initialize rate limiter
	limiter := ratelimit.New(cfg.RequestsPerMinute)
	if limiter.Enabled() {
		logging.Info("rate limiting enabled", zap.Int("rpm", cfg.RequestsPerMinute))
	}

	// Create API server
	srv := api.NewServer(store, backend, authHandler, broadcaster, limiter, cfg.MaxUploadSize)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server. Event streams run until their request
	// context ends, so requests inherit the server lifecycle context.
	httpServer := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     srv.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("forced shutdown", zap.Error(err))
			httpServer.Close()
		}
		metricsServer.Close()
	}()

	// Start periodic entry-count gauge refresh
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshEntryGauges(ctx, store)
			}
		}
	}()

	// Start periodic connection metrics update
	if pgStore != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pgStore.UpdateConnectionMetrics()
				}
			}
		}()
	}

	// Start periodic rate-limit bucket cleanup
	if limiter.Enabled() {
		go func() {
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					limiter.Cleanup(24 * time.Hour)
				}
			}
		}()
	}

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}

// refreshEntryGauges updates the per-project entry gauge for every
// known project.
func refreshEntryGauges(ctx context.Context, store metadata.Store) {
	projects, err := store.Projects(ctx)
	if err != nil {
		logging.Error("entry gauge refresh failed", zap.Error(err))
		return
	}
	for _, p := range projects {
		n, err := store.EntryCount(ctx, p.ID)
		if err != nil {
			continue
		}
		metrics.SetProjectEntries(p.ID, n)
	}
}
