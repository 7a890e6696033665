// Package selection tracks which rows of the flattened display forest
// are selected, plus the range anchor and the keyboard focus. All
// range operations are defined over the flatten order handed in by the
// caller; the engine itself never looks at the tree.
package selection

import (
	"sort"

	"github.com/galleylabs/galley/pkg/models"
)

// State is a copyable snapshot of the engine. The root sentinel ""
// doubles as "unset" for Anchor and Focus; the root itself is never
// selectable and never appears in a flatten.
type State struct {
	Selected []models.Path `json:"selected"`
	Anchor   models.Path   `json:"anchor"`
	Focus    models.Path   `json:"focus"`
}

// Engine owns one project's selection state.
type Engine struct {
	selected map[models.Path]struct{}
	anchor   models.Path
	focus    models.Path
}

// New returns an empty selection.
func New() *Engine {
	return &Engine{selected: make(map[models.Path]struct{})}
}

// Click replaces the selection with p and moves both anchor and focus
// to it (a plain click).
func (e *Engine) Click(p models.Path) {
	if p.IsRoot() {
		return
	}
	e.selected = map[models.Path]struct{}{p: {}}
	e.anchor = p
	e.focus = p
}

// Toggle flips p's membership without clearing the rest (ctrl-click,
// or Space on the focused row). The anchor and focus move to p whether
// it was selected or deselected.
func (e *Engine) Toggle(p models.Path) {
	if p.IsRoot() {
		return
	}
	if _, ok := e.selected[p]; ok {
		delete(e.selected, p)
	} else {
		e.selected[p] = struct{}{}
	}
	e.anchor = p
	e.focus = p
}

// RangeTo replaces the selection with the contiguous flatten slice
// between the anchor and p, whichever side of the anchor p is on. The
// anchor stays put so successive shift-clicks pivot around it; focus
// moves to p. Without a usable anchor this degrades to Click.
func (e *Engine) RangeTo(p models.Path, flat []models.Path) {
	if p.IsRoot() {
		return
	}
	ai := indexOf(flat, e.anchor)
	pi := indexOf(flat, p)
	if ai < 0 || pi < 0 {
		e.Click(p)
		return
	}
	lo, hi := ai, pi
	if lo > hi {
		lo, hi = hi, lo
	}
	e.selected = make(map[models.Path]struct{}, hi-lo+1)
	for _, q := range flat[lo : hi+1] {
		e.selected[q] = struct{}{}
	}
	e.focus = p
}

// SelectAll selects every visible row; anchor and focus stay.
func (e *Engine) SelectAll(flat []models.Path) {
	e.selected = make(map[models.Path]struct{}, len(flat))
	for _, p := range flat {
		if p.IsRoot() {
			continue
		}
		e.selected[p] = struct{}{}
	}
}

// Clear empties the selection and drops the anchor. Focus is the
// keyboard position, not selection, and survives.
func (e *Engine) Clear() {
	e.selected = make(map[models.Path]struct{})
	e.anchor = models.Root
}

// SetFocus moves the keyboard focus without touching the selection.
func (e *Engine) SetFocus(p models.Path) {
	e.focus = p
}

// Prune silently intersects the selection with the paths that still
// exist in the displayed forest, clearing the anchor or focus if they
// fell out. Runs after every rebuild.
func (e *Engine) Prune(valid map[models.Path]struct{}) {
	for p := range e.selected {
		if _, ok := valid[p]; !ok {
			delete(e.selected, p)
		}
	}
	if _, ok := valid[e.anchor]; !ok {
		e.anchor = models.Root
	}
	if _, ok := valid[e.focus]; !ok {
		e.focus = models.Root
	}
}

// IsSelected reports whether p is selected.
func (e *Engine) IsSelected(p models.Path) bool {
	_, ok := e.selected[p]
	return ok
}

// Count returns the number of selected rows.
func (e *Engine) Count() int {
	return len(e.selected)
}

// Focus returns the focused path, or the root sentinel when nothing is
// focused.
func (e *Engine) Focus() models.Path {
	return e.focus
}

// Anchor returns the range anchor, or the root sentinel when unset.
func (e *Engine) Anchor() models.Path {
	return e.anchor
}

// Snapshot returns a copy of the state with selected paths in lexical
// order.
func (e *Engine) Snapshot() State {
	sel := make([]models.Path, 0, len(e.selected))
	for p := range e.selected {
		sel = append(sel, p)
	}
	sort.Slice(sel, func(i, j int) bool { return sel[i] < sel[j] })
	return State{Selected: sel, Anchor: e.anchor, Focus: e.focus}
}

func indexOf(flat []models.Path, p models.Path) int {
	if p.IsRoot() {
		return -1
	}
	for i, q := range flat {
		if q == p {
			return i
		}
	}
	return -1
}
