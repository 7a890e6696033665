// Package models contains the data types shared by the tree engine,
// the backends, and the wire protocol.
package models

import "time"

// Entry is a single directory listing entry as reported by a backend.
type Entry struct {
	Name    string    `json:"name"`
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

// EntryKind selects what CreateEntry creates.
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "dir"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	return k == KindFile || k == KindDir
}

// TreeNode is an Entry placed in the display forest.
//
// Children == nil means the directory's listing has not been loaded
// (or the node is a file, or a collapsed directory); a non-nil empty
// slice means the listing was loaded and the directory is empty. The
// two cases are never interchangeable.
type TreeNode struct {
	Entry
	Path     Path        `json:"path"`
	Depth    int         `json:"depth"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Loaded reports whether the node's children have been materialized.
func (n *TreeNode) Loaded() bool {
	return n.Children != nil
}

// Clone returns a copy of the node with the same children slice.
// Transforms that rewrite children must assign a fresh slice.
func (n *TreeNode) Clone() *TreeNode {
	c := *n
	return &c
}
