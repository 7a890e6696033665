// Package dragdrop validates drag-and-drop move targets. It answers
// one question: may this entry be dropped into that directory. Whether
// the move then succeeds is the backend's business.
package dragdrop

import "github.com/galleylabs/galley/pkg/models"

// IsValidDrop reports whether source may be dropped into targetDir.
// Invalid: dropping an entry onto itself, or into any directory inside
// itself (a directory can never become its own descendant). Dropping
// into the current parent is allowed here; the backend rejects it as a
// conflict if the name is already taken.
func IsValidDrop(source, targetDir models.Path) bool {
	if source == targetDir {
		return false
	}
	if targetDir.IsDescendantOf(source) {
		return false
	}
	return true
}

// CanDropAll reports whether every source in a multi-selection drag
// may be dropped into targetDir.
func CanDropAll(sources []models.Path, targetDir models.Path) bool {
	if len(sources) == 0 {
		return false
	}
	for _, s := range sources {
		if !IsValidDrop(s, targetDir) {
			return false
		}
	}
	return true
}
