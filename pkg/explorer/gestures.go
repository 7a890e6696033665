package explorer

import (
	"github.com/galleylabs/galley/pkg/keynav"
	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/session"
	"github.com/galleylabs/galley/pkg/tree"
	"github.com/galleylabs/galley/pkg/view"
)

// Expand marks p expanded and fetches its listing unless it is already
// cached or a fetch is in flight. Expanding an expanded-but-unloaded
// path retries the fetch.
func (e *Explorer) Expand(p models.Path) {
	e.mu.Lock()
	e.expandLocked(p)
	snap := e.rebuildLocked()
	project, st, save := e.sessionStateLocked()
	e.mu.Unlock()
	e.persist(project, st, save)
	e.fireChange(snap)
}

// Collapse removes p from the expanded set. The cached listing is
// kept; re-expanding is instant.
func (e *Explorer) Collapse(p models.Path) {
	e.mu.Lock()
	e.expanded.Remove(p)
	snap := e.rebuildLocked()
	project, st, save := e.sessionStateLocked()
	e.mu.Unlock()
	e.persist(project, st, save)
	e.fireChange(snap)
}

// ToggleExpand expands p if collapsed and collapses it if expanded.
func (e *Explorer) ToggleExpand(p models.Path) {
	e.mu.Lock()
	if e.expanded.Has(p) {
		e.expanded.Remove(p)
	} else {
		e.expandLocked(p)
	}
	snap := e.rebuildLocked()
	project, st, save := e.sessionStateLocked()
	e.mu.Unlock()
	e.persist(project, st, save)
	e.fireChange(snap)
}

func (e *Explorer) expandLocked(p models.Path) {
	e.expanded.Add(p)
	if e.cache.Has(p) {
		e.stats.CacheHits.Add(1)
		return
	}
	if _, inflight := e.pending[p]; !inflight {
		e.launchFetchLocked(p)
	}
}

// Click handles a pointer click on the row at p. A plain click selects;
// on a file it also opens, on a directory it also toggles expansion.
// Ctrl toggles p in the selection, shift selects the range from the
// anchor. Clicks on paths not currently displayed are ignored.
func (e *Explorer) Click(p models.Path, mods keynav.Modifiers) {
	e.mu.Lock()
	n := e.rowLocked(p)
	if n == nil {
		e.mu.Unlock()
		return
	}

	openIt := false
	expandedChanged := false
	switch {
	case mods.Ctrl:
		e.sel.Toggle(p)
	case mods.Shift:
		e.sel.RangeTo(p, tree.Paths(e.rows))
	default:
		e.sel.Click(p)
		if n.IsDir {
			if e.expanded.Has(p) {
				e.expanded.Remove(p)
			} else {
				e.expandLocked(p)
			}
			expandedChanged = true
		} else {
			openIt = true
		}
	}

	var snap Snapshot
	if expandedChanged {
		snap = e.rebuildLocked()
	} else {
		snap = e.snapshotLocked()
	}
	var (
		project string
		st      session.State
		save    bool
	)
	if expandedChanged {
		project, st, save = e.sessionStateLocked()
	}
	e.mu.Unlock()

	e.persist(project, st, save)
	e.fireChange(snap)
	if openIt {
		e.fireOpen(p)
	}
}

// HandleKey feeds one key event to the navigator. Expand and collapse
// intents are applied internally, open fires OnOpen, and destructive
// intents (delete, rename, create) come back to the host untouched.
func (e *Explorer) HandleKey(key keynav.Key, mods keynav.Modifiers) (keynav.Intent, bool) {
	e.mu.Lock()
	intent, ok := keynav.Handle(keynav.Snapshot{Nodes: e.rows, Expanded: e.expanded}, e.sel, key, mods)

	var (
		hostIntent      keynav.Intent
		hostOK          bool
		openPath        = models.Root
		expandedChanged bool
	)
	if ok {
		switch intent.Kind {
		case keynav.IntentExpand:
			e.expandLocked(intent.Path)
			expandedChanged = true
		case keynav.IntentCollapse:
			e.expanded.Remove(intent.Path)
			expandedChanged = true
		case keynav.IntentOpen:
			openPath = intent.Path
		default:
			hostIntent, hostOK = intent, true
		}
	}

	var snap Snapshot
	if expandedChanged {
		snap = e.rebuildLocked()
	} else {
		snap = e.snapshotLocked()
	}
	var (
		project string
		st      session.State
		save    bool
	)
	if expandedChanged {
		project, st, save = e.sessionStateLocked()
	}
	e.mu.Unlock()

	e.persist(project, st, save)
	e.fireChange(snap)
	if !openPath.IsRoot() {
		e.fireOpen(openPath)
	}
	return hostIntent, hostOK
}

// SetShowHidden toggles the dotfile filter and rebuilds.
func (e *Explorer) SetShowHidden(show bool) {
	e.setOptions(func(o *view.Options) { o.ShowHidden = show }, true)
}

// SetTypeFilter restricts the view to one file-type family.
func (e *Explorer) SetTypeFilter(f view.TypeFilter) {
	e.setOptions(func(o *view.Options) { o.Types = f }, true)
}

// SetSearch filters the view by a substring of the entry name. The
// query is ephemeral and never persisted.
func (e *Explorer) SetSearch(query string) {
	e.setOptions(func(o *view.Options) { o.Query = query }, false)
}

// SetSort changes the sort key and direction.
func (e *Explorer) SetSort(key view.SortKey, order view.SortOrder) {
	e.setOptions(func(o *view.Options) {
		o.SortBy = key
		o.Order = order
	}, true)
}

func (e *Explorer) setOptions(mutate func(*view.Options), persistent bool) {
	e.mu.Lock()
	mutate(&e.opts)
	snap := e.rebuildLocked()
	var (
		project string
		st      session.State
		save    bool
	)
	if persistent {
		project, st, save = e.sessionStateLocked()
	}
	e.mu.Unlock()
	e.persist(project, st, save)
	e.fireChange(snap)
}

func (e *Explorer) rowLocked(p models.Path) *models.TreeNode {
	for _, n := range e.rows {
		if n.Path == p {
			return n
		}
	}
	return nil
}
