// Package tree materializes a display forest from cached directory
// listings and an expanded-directory set. Building is pure: no I/O, no
// mutation of inputs, and the same inputs always produce the same
// forest.
package tree

import (
	"sort"

	"github.com/galleylabs/galley/pkg/models"
)

// Lister is the read side of the folder-content cache.
type Lister interface {
	Get(dir models.Path) ([]models.Entry, bool)
}

// ExpandedSet tracks which directories the user has expanded. The set
// may carry paths that are still being fetched, that failed to fetch,
// or that no longer exist; the builder ignores anything it cannot use.
type ExpandedSet map[models.Path]struct{}

// NewExpandedSet returns a set holding the given paths.
func NewExpandedSet(paths ...models.Path) ExpandedSet {
	s := make(ExpandedSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether p is expanded.
func (s ExpandedSet) Has(p models.Path) bool {
	_, ok := s[p]
	return ok
}

// Add marks p expanded.
func (s ExpandedSet) Add(p models.Path) {
	s[p] = struct{}{}
}

// Remove collapses p.
func (s ExpandedSet) Remove(p models.Path) {
	delete(s, p)
}

// Paths returns the expanded paths in lexical order.
func (s ExpandedSet) Paths() []models.Path {
	out := make([]models.Path, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build materializes the forest under root at the given depth.
//
// Entries keep the order the backend reported them in. A directory
// gets children iff it is expanded and its listing is cached; an
// expanded directory with no cached listing keeps nil Children, which
// is the caller's signal that a fetch is needed. File paths in the
// expanded set are ignored. An uncached root yields an empty forest.
func Build(root models.Path, depth int, listings Lister, expanded ExpandedSet) []*models.TreeNode {
	entries, ok := listings.Get(root)
	if !ok {
		return nil
	}
	nodes := make([]*models.TreeNode, 0, len(entries))
	for _, e := range entries {
		p := root.Join(e.Name)
		n := &models.TreeNode{Entry: e, Path: p, Depth: depth}
		if e.IsDir && expanded.Has(p) {
			if _, cached := listings.Get(p); cached {
				n.Children = Build(p, depth+1, listings, expanded)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Flatten linearizes a forest in pre-order: each node followed by its
// children. This is the row order every selection and keyboard
// operation works in.
func Flatten(forest []*models.TreeNode) []*models.TreeNode {
	var out []*models.TreeNode
	var walk func([]*models.TreeNode)
	walk = func(nodes []*models.TreeNode) {
		for _, n := range nodes {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(forest)
	return out
}

// Paths projects a flattened forest onto its paths.
func Paths(flat []*models.TreeNode) []models.Path {
	out := make([]models.Path, len(flat))
	for i, n := range flat {
		out[i] = n.Path
	}
	return out
}

// PathSet returns the set of paths present in a flattened forest.
func PathSet(flat []*models.TreeNode) map[models.Path]struct{} {
	set := make(map[models.Path]struct{}, len(flat))
	for _, n := range flat {
		set[n.Path] = struct{}{}
	}
	return set
}

// Find returns the node with the given path, searching recursively.
func Find(forest []*models.TreeNode, p models.Path) *models.TreeNode {
	for _, n := range forest {
		if n.Path == p {
			return n
		}
		if found := Find(n.Children, p); found != nil {
			return found
		}
	}
	return nil
}

// Count returns the total number of nodes in the forest.
func Count(forest []*models.TreeNode) int {
	total := 0
	for _, n := range forest {
		total += 1 + Count(n.Children)
	}
	return total
}
