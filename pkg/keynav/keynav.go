// Package keynav maps key events onto the flattened display forest:
// focus movement and selection changes are applied directly through
// the selection engine, and everything that would touch the tree or
// the backend comes back as an intent for the caller to act on. The
// navigator itself never expands, fetches, or mutates anything.
package keynav

import (
	"strings"

	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/selection"
	"github.com/galleylabs/galley/pkg/tree"
)

// Key is a key name as delivered by the host, following the DOM
// KeyboardEvent.key convention.
type Key string

const (
	KeyArrowUp    Key = "ArrowUp"
	KeyArrowDown  Key = "ArrowDown"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
	KeyEnter      Key = "Enter"
	KeySpace      Key = " "
	KeyEscape     Key = "Escape"
	KeyDelete     Key = "Delete"
	KeyBackspace  Key = "Backspace"
	KeyF2         Key = "F2"
)

// Modifiers carries the modifier state of a key event.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
}

// IntentKind identifies what the host is being asked to do.
type IntentKind string

const (
	IntentExpand       IntentKind = "expand"
	IntentCollapse     IntentKind = "collapse"
	IntentOpen         IntentKind = "open"
	IntentDelete       IntentKind = "delete"
	IntentRename       IntentKind = "rename"
	IntentCreateFile   IntentKind = "create_file"
	IntentCreateFolder IntentKind = "create_folder"
)

// Intent is a request the navigator hands back instead of acting.
type Intent struct {
	Kind IntentKind
	Path models.Path
}

// Snapshot is the slice of the world the navigator needs: the
// flattened display forest and the expanded set.
type Snapshot struct {
	Nodes    []*models.TreeNode
	Expanded tree.ExpandedSet
}

// Handle processes one key event. Focus and selection changes happen
// in place on sel; an intent is returned when the key asks for
// something beyond that. There is no wraparound at either end of the
// list.
func Handle(v Snapshot, sel *selection.Engine, key Key, mods Modifiers) (Intent, bool) {
	switch key {
	case KeyArrowDown:
		moveFocus(v, sel, mods, +1)
	case KeyArrowUp:
		moveFocus(v, sel, mods, -1)
	case KeyArrowRight:
		return focusRight(v, sel)
	case KeyArrowLeft:
		return focusLeft(v, sel)
	case KeyEnter:
		n := focusedNode(v, sel)
		if n == nil {
			break
		}
		if n.IsDir {
			if v.Expanded.Has(n.Path) {
				return Intent{Kind: IntentCollapse, Path: n.Path}, true
			}
			return Intent{Kind: IntentExpand, Path: n.Path}, true
		}
		return Intent{Kind: IntentOpen, Path: n.Path}, true
	case KeySpace:
		if f := sel.Focus(); !f.IsRoot() {
			sel.Toggle(f)
		}
	case KeyEscape:
		sel.Clear()
	case KeyDelete, KeyBackspace:
		if f := sel.Focus(); !f.IsRoot() {
			return Intent{Kind: IntentDelete, Path: f}, true
		}
	case KeyF2:
		if f := sel.Focus(); !f.IsRoot() {
			return Intent{Kind: IntentRename, Path: f}, true
		}
	default:
		switch {
		case mods.Ctrl && mods.Shift && strings.EqualFold(string(key), "n"):
			return Intent{Kind: IntentCreateFolder, Path: sel.Focus()}, true
		case mods.Ctrl && strings.EqualFold(string(key), "n"):
			return Intent{Kind: IntentCreateFile, Path: sel.Focus()}, true
		case mods.Ctrl && strings.EqualFold(string(key), "a"):
			sel.SelectAll(tree.Paths(v.Nodes))
		}
	}
	return Intent{}, false
}

// moveFocus steps the focus one row. Plain movement re-selects the new
// row, Ctrl moves the focus alone, Shift grows the anchor range.
func moveFocus(v Snapshot, sel *selection.Engine, mods Modifiers, delta int) {
	if len(v.Nodes) == 0 {
		return
	}
	idx := focusedIndex(v, sel)
	var target int
	if idx < 0 {
		if delta > 0 {
			target = 0
		} else {
			target = len(v.Nodes) - 1
		}
	} else {
		target = idx + delta
		if target < 0 || target >= len(v.Nodes) {
			return
		}
	}
	p := v.Nodes[target].Path
	switch {
	case mods.Shift:
		sel.RangeTo(p, tree.Paths(v.Nodes))
	case mods.Ctrl:
		sel.SetFocus(p)
	default:
		sel.Click(p)
	}
}

// focusRight expands a collapsed directory, re-requests an expanded
// one whose listing never arrived, and otherwise steps into the first
// child. Files ignore it.
func focusRight(v Snapshot, sel *selection.Engine) (Intent, bool) {
	n := focusedNode(v, sel)
	if n == nil || !n.IsDir {
		return Intent{}, false
	}
	if !v.Expanded.Has(n.Path) || !n.Loaded() {
		return Intent{Kind: IntentExpand, Path: n.Path}, true
	}
	if len(n.Children) > 0 {
		sel.Click(n.Children[0].Path)
	}
	return Intent{}, false
}

// focusLeft collapses an expanded directory and otherwise climbs to
// the parent. At the top level there is nowhere to go.
func focusLeft(v Snapshot, sel *selection.Engine) (Intent, bool) {
	n := focusedNode(v, sel)
	if n == nil {
		return Intent{}, false
	}
	if n.IsDir && v.Expanded.Has(n.Path) {
		return Intent{Kind: IntentCollapse, Path: n.Path}, true
	}
	if parent := n.Path.Parent(); !parent.IsRoot() {
		sel.Click(parent)
	}
	return Intent{}, false
}

func focusedIndex(v Snapshot, sel *selection.Engine) int {
	f := sel.Focus()
	if f.IsRoot() {
		return -1
	}
	for i, n := range v.Nodes {
		if n.Path == f {
			return i
		}
	}
	return -1
}

func focusedNode(v Snapshot, sel *selection.Engine) *models.TreeNode {
	if i := focusedIndex(v, sel); i >= 0 {
		return v.Nodes[i]
	}
	return nil
}
