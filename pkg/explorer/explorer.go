// Package explorer orchestrates the tree engine against a backend. It
// owns the folder cache, the expanded set, the selection, and the view
// options, launches directory fetches, and rebuilds the display forest
// after every change. One mutex serializes all state changes; fetch
// completions arrive on goroutines and take the same lock. Callbacks
// are always invoked outside it.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/pkg/backend"
	"github.com/galleylabs/galley/pkg/cache"
	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/selection"
	"github.com/galleylabs/galley/pkg/session"
	"github.com/galleylabs/galley/pkg/tree"
	"github.com/galleylabs/galley/pkg/view"
)

// Config configures a new Explorer. Backend and ProjectID are
// required; everything else is optional.
type Config struct {
	Backend   backend.Backend
	ProjectID string
	Logger    *zap.Logger
	Session   *session.Store
	OnChange  func(Snapshot)
	OnOpen    func(models.Path)
	OnError   func(error)
}

// Snapshot is a consistent copy of the display state. Forest and Rows
// share node pointers with later snapshots only until the next rebuild;
// holders must treat the nodes as read-only.
type Snapshot struct {
	Project   string
	Epoch     uint64
	Forest    []*models.TreeNode
	Rows      []*models.TreeNode
	Selection selection.State
	Pending   []models.Path
}

// Stats counts engine activity. Fields are atomic and safe to read
// while the explorer is running.
type Stats struct {
	Fetches     atomic.Int64
	FetchErrors atomic.Int64
	CacheHits   atomic.Int64
	StaleDrops  atomic.Int64
	Rebuilds    atomic.Int64
}

// Explorer is the single logical mutator of one project's tree state.
type Explorer struct {
	mu       sync.Mutex
	be       backend.Backend
	project  string
	epoch    uint64
	cache    *cache.FolderCache
	expanded tree.ExpandedSet
	sel      *selection.Engine
	opts     view.Options
	pending  map[models.Path]struct{}
	fetchCtx context.Context // set by Open/SwitchProject; bounds gesture fetches

	forest []*models.TreeNode
	rows   []*models.TreeNode

	log      *zap.Logger
	sessions *session.Store
	onChange func(Snapshot)
	onOpen   func(models.Path)
	onError  func(error)

	stats Stats
}

// New builds an explorer for cfg.ProjectID. Saved view state is loaded
// from the session store when one is attached; nothing is fetched until
// Open.
func New(cfg Config) (*Explorer, error) {
	if cfg.Backend == nil {
		return nil, errors.New("explorer: backend is required")
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("explorer: project id is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &Explorer{
		be:       cfg.Backend,
		project:  cfg.ProjectID,
		cache:    cache.New(),
		sel:      selection.New(),
		pending:  make(map[models.Path]struct{}),
		fetchCtx: context.Background(),
		log:      log,
		sessions: cfg.Session,
		onChange: cfg.OnChange,
		onOpen:   cfg.OnOpen,
		onError:  cfg.OnError,
	}
	e.loadSessionLocked()
	return e, nil
}

// Open launches the root fetch, plus one fetch per directory the
// session store remembered as expanded, so a restored project comes
// back fully populated. The context bounds these and every later
// gesture-triggered fetch until the next Open or SwitchProject.
func (e *Explorer) Open(ctx context.Context) {
	e.mu.Lock()
	e.fetchCtx = ctx
	e.launchFetchLocked(models.Root)
	e.launchExpandedLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.fireChange(snap)
}

// SwitchProject abandons the current project: the epoch is bumped so
// in-flight fetch results are discarded, cache, expanded set, and
// selection are replaced wholesale, view options reset to the new
// project's saved state, and the new root is fetched.
func (e *Explorer) SwitchProject(ctx context.Context, be backend.Backend, projectID string) error {
	if be == nil {
		return errors.New("explorer: backend is required")
	}
	if projectID == "" {
		return errors.New("explorer: project id is required")
	}
	e.mu.Lock()
	e.epoch++
	e.be = be
	e.project = projectID
	e.cache = cache.New()
	e.sel = selection.New()
	e.pending = make(map[models.Path]struct{})
	e.fetchCtx = ctx
	e.loadSessionLocked()
	e.launchFetchLocked(models.Root)
	e.launchExpandedLocked()
	snap := e.rebuildLocked()
	e.mu.Unlock()
	e.fireChange(snap)
	return nil
}

// Project returns the current project id.
func (e *Explorer) Project() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project
}

// Options returns the current view options.
func (e *Explorer) Options() view.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// Snapshot returns the current display state.
func (e *Explorer) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Stats returns the engine's activity counters.
func (e *Explorer) Stats() *Stats {
	return &e.stats
}

// launchExpandedLocked fetches every expanded directory that has no
// cached listing and no fetch in flight. Expanded paths that no longer
// exist fail over OnError and stay harmlessly in the set.
func (e *Explorer) launchExpandedLocked() {
	for p := range e.expanded {
		if e.cache.Has(p) {
			continue
		}
		if _, inflight := e.pending[p]; inflight {
			continue
		}
		e.launchFetchLocked(p)
	}
}

// launchFetchLocked starts an async listing fetch for dir, stamped with
// the current epoch. Completions from an older epoch are dropped.
func (e *Explorer) launchFetchLocked(dir models.Path) {
	e.pending[dir] = struct{}{}
	epoch := e.epoch
	ctx := e.fetchCtx
	be := e.be
	e.stats.Fetches.Add(1)
	go func() {
		entries, err := be.ListDir(ctx, dir)
		e.completeFetch(epoch, dir, entries, time.Now(), err)
	}()
}

func (e *Explorer) completeFetch(epoch uint64, dir models.Path, entries []models.Entry, completedAt time.Time, err error) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.stats.StaleDrops.Add(1)
		e.mu.Unlock()
		e.log.Debug("dropping fetch result from a previous project",
			zap.String("dir", dir.String()),
			zap.Uint64("epoch", epoch))
		return
	}
	delete(e.pending, dir)

	if err != nil {
		// The path stays expanded so the next expand retries.
		e.stats.FetchErrors.Add(1)
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.log.Warn("directory fetch failed",
			zap.String("dir", dir.String()),
			zap.Error(err))
		e.fireError(fmt.Errorf("list %q: %w", dir, err))
		e.fireChange(snap)
		return
	}

	if !e.cache.Set(dir, entries, completedAt) {
		e.log.Debug("discarding fetch result older than cached listing",
			zap.String("dir", dir.String()))
	}
	snap := e.rebuildLocked()
	e.mu.Unlock()
	e.fireChange(snap)
}

// rebuildLocked rematerializes the display forest from the cache and
// the expanded set, applies the view pipeline, and prunes the selection
// against what is actually displayed.
func (e *Explorer) rebuildLocked() Snapshot {
	raw := tree.Build(models.Root, 0, e.cache, e.expanded)
	e.forest = view.Apply(raw, e.opts)
	e.rows = tree.Flatten(e.forest)
	e.sel.Prune(tree.PathSet(e.rows))
	e.stats.Rebuilds.Add(1)
	return e.snapshotLocked()
}

func (e *Explorer) snapshotLocked() Snapshot {
	pending := make([]models.Path, 0, len(e.pending))
	for p := range e.pending {
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	return Snapshot{
		Project:   e.project,
		Epoch:     e.epoch,
		Forest:    e.forest,
		Rows:      e.rows,
		Selection: e.sel.Snapshot(),
		Pending:   pending,
	}
}

// loadSessionLocked seeds the expanded set and view options from the
// session store, falling back to defaults.
func (e *Explorer) loadSessionLocked() {
	st := session.DefaultState()
	if e.sessions != nil {
		if saved, ok := e.sessions.Load(e.project); ok {
			st = saved
		}
	}
	e.expanded = tree.NewExpandedSet(st.Expanded...)
	e.opts = view.Options{
		ShowHidden: st.ShowHidden,
		Types:      st.Types,
		SortBy:     st.SortBy,
		Order:      st.Order,
	}
}

// sessionStateLocked captures what Save persists. The write itself
// happens outside the lock via persist.
func (e *Explorer) sessionStateLocked() (string, session.State, bool) {
	if e.sessions == nil {
		return "", session.State{}, false
	}
	return e.project, session.State{
		Expanded:   e.expanded.Paths(),
		ShowHidden: e.opts.ShowHidden,
		Types:      e.opts.Types,
		SortBy:     e.opts.SortBy,
		Order:      e.opts.Order,
	}, true
}

// persist saves view state best-effort; a failed save is logged and
// otherwise ignored.
func (e *Explorer) persist(project string, st session.State, ok bool) {
	if !ok {
		return
	}
	if err := e.sessions.Save(project, st); err != nil {
		e.log.Warn("saving view state failed",
			zap.String("project", project),
			zap.Error(err))
	}
}

func (e *Explorer) fireChange(snap Snapshot) {
	if e.onChange != nil {
		e.onChange(snap)
	}
}

func (e *Explorer) fireOpen(p models.Path) {
	if e.onOpen != nil {
		e.onOpen(p)
	}
}

func (e *Explorer) fireError(err error) {
	if e.onError != nil {
		e.onError(err)
	}
}
