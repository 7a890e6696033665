// Package view turns a raw display forest into what the file browser
// shows: hidden-file filter, type filter, search filter, then sort,
// always in that order. Transforms are pure; the input forest is never
// mutated.
package view

import (
	"path"
	"strings"

	"github.com/galleylabs/galley/pkg/models"
)

// TypeFilter restricts the forest to one family of file types.
type TypeFilter string

const (
	TypeAll   TypeFilter = "all"
	TypeLatex TypeFilter = "latex"
	TypeCode  TypeFilter = "code"
	TypeImage TypeFilter = "image"
)

// Valid reports whether f is a known filter value.
func (f TypeFilter) Valid() bool {
	switch f {
	case TypeAll, TypeLatex, TypeCode, TypeImage:
		return true
	}
	return false
}

// SortKey selects the sort attribute.
type SortKey string

const (
	SortByName SortKey = "name"
	SortBySize SortKey = "size"
	SortByDate SortKey = "date"
)

// SortOrder selects the sort direction.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Options configures the pipeline. The zero value hides dotfiles,
// keeps every type, matches everything, and sorts by name ascending.
type Options struct {
	ShowHidden bool       `json:"show_hidden"`
	Types      TypeFilter `json:"types"`
	Query      string     `json:"-"`
	SortBy     SortKey    `json:"sort_by"`
	Order      SortOrder  `json:"order"`
}

// DefaultOptions returns the browser's initial view options.
func DefaultOptions() Options {
	return Options{Types: TypeAll, SortBy: SortByName, Order: Ascending}
}

// Apply runs the fixed pipeline over the forest and returns a new
// forest. Stage order is part of the contract: a dotfile stays hidden
// even when it matches the query, and sorting always sees the filtered
// forest.
func Apply(forest []*models.TreeNode, o Options) []*models.TreeNode {
	out := forest
	if !o.ShowHidden {
		out = filterHidden(out)
	}
	if o.Types.Valid() && o.Types != TypeAll {
		out = filterType(out, extsFor(o.Types))
	}
	if o.Query != "" {
		out = filterSearch(out, o.Query)
	}
	key, order := o.SortBy, o.Order
	if key == "" {
		key = SortByName
	}
	if order == "" {
		order = Ascending
	}
	return sortForest(out, key, order)
}

func filterHidden(nodes []*models.TreeNode) []*models.TreeNode {
	out := make([]*models.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if strings.HasPrefix(n.Name, ".") {
			continue
		}
		if n.Children != nil {
			c := n.Clone()
			c.Children = filterHidden(n.Children)
			out = append(out, c)
		} else {
			out = append(out, n)
		}
	}
	return out
}

// filterType keeps files whose extension is in exts and directories
// with at least one surviving descendant. A directory whose listing is
// not loaded is kept: its contents are unknown and hiding it would
// also hide the way to fetch them.
func filterType(nodes []*models.TreeNode, exts map[string]struct{}) []*models.TreeNode {
	out := make([]*models.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if !n.IsDir {
			if matchExt(n.Name, exts) {
				out = append(out, n)
			}
			continue
		}
		if n.Children == nil {
			out = append(out, n)
			continue
		}
		kept := filterType(n.Children, exts)
		if len(kept) == 0 {
			continue
		}
		c := n.Clone()
		c.Children = kept
		out = append(out, c)
	}
	return out
}

func matchExt(name string, exts map[string]struct{}) bool {
	_, ok := exts[strings.ToLower(path.Ext(name))]
	return ok
}

// filterSearch keeps nodes whose name contains the query
// (case-insensitive) plus the ancestors needed to reach them.
// Non-matching children of a matching directory are dropped.
func filterSearch(nodes []*models.TreeNode, query string) []*models.TreeNode {
	return searchNodes(nodes, strings.ToLower(query))
}

func searchNodes(nodes []*models.TreeNode, q string) []*models.TreeNode {
	out := make([]*models.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		match := strings.Contains(strings.ToLower(n.Name), q)
		var kept []*models.TreeNode
		if n.Children != nil {
			kept = searchNodes(n.Children, q)
		}
		if !match && len(kept) == 0 {
			continue
		}
		if n.Children != nil {
			c := n.Clone()
			c.Children = kept
			out = append(out, c)
		} else {
			out = append(out, n)
		}
	}
	return out
}
