package explorer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/pkg/backend"
	"github.com/galleylabs/galley/pkg/dragdrop"
	"github.com/galleylabs/galley/pkg/models"
)

// Mutations call the backend synchronously and only touch engine state
// after the backend reports success: the affected parents are
// invalidated and refetched, listings under a renamed, moved, or
// deleted directory are dropped wholesale, and the forest is rebuilt.
// There are no optimistic updates; a failed mutation leaves every
// listing, the expanded set, and the selection exactly as they were.

// Create makes an empty file or a directory at path.
func (e *Explorer) Create(ctx context.Context, path models.Path, kind models.EntryKind) error {
	be, epoch := e.backendLocked()
	if err := be.CreateEntry(ctx, path, kind); err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	e.applyMutation(ctx, epoch, nil, []models.Path{path.Parent()})
	return nil
}

// Rename gives the entry at from the new path to. Renaming across
// directories re-parents the entry.
func (e *Explorer) Rename(ctx context.Context, from, to models.Path) error {
	if !dragdrop.IsValidDrop(from, to.Parent()) {
		return fmt.Errorf("rename %q: target is inside the renamed directory", from)
	}
	be, epoch := e.backendLocked()
	if err := be.RenameEntry(ctx, from, to); err != nil {
		return fmt.Errorf("rename %q: %w", from, err)
	}
	e.applyMutation(ctx, epoch, []models.Path{from}, []models.Path{from.Parent(), to.Parent()})
	return nil
}

// Move drops the entry at from into toDir, keeping its name. The
// anti-reflexive and anti-ancestral checks run before the backend is
// asked.
func (e *Explorer) Move(ctx context.Context, from models.Path, toDir models.Path) error {
	if !dragdrop.IsValidDrop(from, toDir) {
		return fmt.Errorf("move %q: invalid target %q", from, toDir)
	}
	be, epoch := e.backendLocked()
	if err := be.MoveEntry(ctx, from, toDir); err != nil {
		return fmt.Errorf("move %q: %w", from, err)
	}
	e.applyMutation(ctx, epoch, []models.Path{from}, []models.Path{from.Parent(), toDir})
	return nil
}

// Duplicate copies the entry at from (a file or a whole directory
// tree) to to.
func (e *Explorer) Duplicate(ctx context.Context, from, to models.Path) error {
	be, epoch := e.backendLocked()
	if err := be.DuplicateEntry(ctx, from, to); err != nil {
		return fmt.Errorf("duplicate %q: %w", from, err)
	}
	e.applyMutation(ctx, epoch, nil, []models.Path{to.Parent()})
	return nil
}

// Delete removes the entry at path. Deleting a non-empty directory
// requires recursive.
func (e *Explorer) Delete(ctx context.Context, path models.Path, recursive bool) error {
	be, epoch := e.backendLocked()
	if err := be.DeleteEntry(ctx, path, recursive); err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}
	e.applyMutation(ctx, epoch, []models.Path{path}, []models.Path{path.Parent()})
	return nil
}

// Refresh force-refetches one directory level, bypassing the cache.
func (e *Explorer) Refresh(ctx context.Context, dir models.Path) error {
	be, epoch := e.backendLocked()
	entries, err := be.ListDir(ctx, dir)
	completedAt := time.Now()
	if err != nil {
		return fmt.Errorf("refresh %q: %w", dir, err)
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.stats.StaleDrops.Add(1)
		e.mu.Unlock()
		return nil
	}
	e.cache.Invalidate(dir)
	e.cache.Set(dir, entries, completedAt)
	snap := e.rebuildLocked()
	e.mu.Unlock()
	e.fireChange(snap)
	return nil
}

func (e *Explorer) backendLocked() (backend.Backend, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.be, e.epoch
}

// applyMutation refetches the affected parents, then applies the
// invalidations and the fresh listings in one locked step. Results are
// discarded when the project epoch moved while the backend call was in
// flight. A parent whose refetch failed stays invalidated (it rebuilds
// as unloaded) and the error goes to OnError.
func (e *Explorer) applyMutation(ctx context.Context, epoch uint64, dropPrefixes, parents []models.Path) {
	be, _ := e.backendLocked()

	type refetch struct {
		dir         models.Path
		entries     []models.Entry
		completedAt time.Time
		err         error
	}
	seen := make(map[models.Path]struct{}, len(parents))
	results := make([]refetch, 0, len(parents))
	for _, dir := range parents {
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		entries, err := be.ListDir(ctx, dir)
		results = append(results, refetch{dir: dir, entries: entries, completedAt: time.Now(), err: err})
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.stats.StaleDrops.Add(1)
		e.mu.Unlock()
		return
	}
	for _, prefix := range dropPrefixes {
		e.cache.InvalidatePrefix(prefix)
	}
	var failed []refetch
	for _, r := range results {
		e.cache.Invalidate(r.dir)
		if r.err != nil {
			e.stats.FetchErrors.Add(1)
			failed = append(failed, r)
			continue
		}
		e.cache.Set(r.dir, r.entries, r.completedAt)
	}
	snap := e.rebuildLocked()
	e.mu.Unlock()

	for _, r := range failed {
		e.log.Warn("refetch after mutation failed",
			zap.String("dir", r.dir.String()),
			zap.Error(r.err))
		e.fireError(fmt.Errorf("list %q: %w", r.dir, r.err))
	}
	e.fireChange(snap)
}
