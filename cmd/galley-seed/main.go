// galley-seed loads a local directory into a Galley project.
//
// Backend-agnostic: blobs go through the storage.Backend interface, so
// it works against local or S3 storage. Metadata lands in PostgreSQL.
// Designed to run once as an init container.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/config"
	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metadata"
	"github.com/galleylabs/galley/internal/metadata/postgres"
	"github.com/galleylabs/galley/internal/storage"
)

func main() {
	dataDir := flag.String("data", "testdata", "directory with seed files")
	projectID := flag.String("project", "demo", "project id to load into")
	projectName := flag.String("name", "", "project display name (defaults to the id)")
	migrationsDir := flag.String("migrations", "", "migrations directory (defaults to GALLEY_MIGRATIONS_DIR)")
	flag.Parse()

	if err := logging.Init(logging.Config{Level: "info", Format: "console"}); err != nil {
		panic("logging init: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("galley-seed starting...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("config error", zap.Error(err))
	}
	if cfg.StoreBackend != "postgres" {
		logging.Fatal("seeding needs GALLEY_STORE=postgres; a memory store discards the data on exit")
	}

	ctx := context.Background()

	// Connect to PostgreSQL with retries
	var store *postgres.Store
	for i := 0; i < 15; i++ {
		store, err = postgres.New(cfg.DatabaseURL)
		if err == nil {
			break
		}
		logging.Info("waiting for PostgreSQL",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logging.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer store.Close()

	// Run migrations
	dir := *migrationsDir
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	if dir != "" {
		logging.Info("running migrations...", zap.String("dir", dir))
		if err := store.Migrate(dir); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}

	// Initialize blob storage
	backend, err := storage.New(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer backend.Close()

	// Create the target project
	name := *projectName
	if name == "" {
		name = *projectID
	}
	if _, err := store.CreateProject(ctx, *projectID, name); err != nil {
		if !errors.Is(err, metadata.ErrConflict) {
			logging.Fatal("failed to create project", zap.Error(err))
		}
		logging.Info("project exists, reseeding into it", zap.String("project", *projectID))
	}

	// Walk data directory. Parents are visited before their contents,
	// so directory rows always exist by the time children arrive.
	logging.Info("seeding files...",
		zap.String("dir", *dataDir),
		zap.String("project", *projectID))

	var files, dirs int
	err = filepath.Walk(*dataDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relPath, relErr := filepath.Rel(*dataDir, path)
		if relErr != nil || relPath == "." {
			return relErr
		}
		entryPath := filepath.ToSlash(relPath)

		if info.IsDir() {
			if err := seedDir(ctx, store, *projectID, entryPath, info); err != nil {
				return err
			}
			dirs++
			return nil
		}
		if err := seedFile(ctx, store, backend, *projectID, path, entryPath, info); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		logging.Fatal("walk failed", zap.Error(err))
	}

	total, _ := store.EntryCount(ctx, *projectID)
	logging.Info("seeding complete",
		zap.Int("dirs", dirs),
		zap.Int("files", files),
		zap.Int64("entries", total))
}

// seedDir inserts one directory row. A row that is already there is
// left alone so reseeding works.
func seedDir(ctx context.Context, store metadata.Store, project, path string, info os.FileInfo) error {
	_, err := store.Insert(ctx, metadata.EntryRow{
		ProjectID: project,
		Path:      path,
		IsDir:     true,
		ModTime:   info.ModTime().UTC(),
	})
	if err != nil && !errors.Is(err, metadata.ErrConflict) {
		return fmt.Errorf("insert dir %s: %w", path, err)
	}
	logging.Info("  DIR", zap.String("path", path))
	return nil
}

// seedFile inserts one file row and uploads its content. Reseeding an
// existing file overwrites the blob and refreshes size and mtime.
func seedFile(ctx context.Context, store metadata.Store, backend storage.Backend, project, localPath, path string, info os.FileInfo) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	row, err := store.Insert(ctx, metadata.EntryRow{
		ProjectID: project,
		Path:      path,
		IsDir:     false,
		Size:      int64(len(data)),
		ModTime:   info.ModTime().UTC(),
	})
	switch {
	case errors.Is(err, metadata.ErrConflict):
		row, err = store.Get(ctx, project, path)
		if err != nil {
			return fmt.Errorf("load existing %s: %w", path, err)
		}
		if row.IsDir {
			return fmt.Errorf("seed file %s: a directory is in the way", path)
		}
	case err != nil:
		return fmt.Errorf("insert file %s: %w", path, err)
	}

	if err := backend.PutObject(ctx, row.ContentKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	if err := store.UpdateFile(ctx, project, path, int64(len(data)), info.ModTime().UTC()); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	logging.Info("  FILE", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
