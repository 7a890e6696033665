package models

import "strings"

// Path is a slash-joined path relative to the project root. The empty
// string is the root itself. Paths never start or end with a slash and
// never contain empty segments.
type Path string

// Root is the project root sentinel.
const Root Path = ""

// Clean normalizes a raw string into a Path: slashes are collapsed,
// leading/trailing slashes dropped, "." segments removed. ".." is not
// resolved; callers reject it at trust boundaries.
func Clean(raw string) Path {
	if raw == "" || raw == "/" {
		return Root
	}
	parts := strings.Split(raw, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		kept = append(kept, p)
	}
	return Path(strings.Join(kept, "/"))
}

// IsRoot reports whether p is the project root.
func (p Path) IsRoot() bool {
	return p == Root
}

// Join appends a child name to p.
func (p Path) Join(name string) Path {
	if p.IsRoot() {
		return Path(name)
	}
	return p + "/" + Path(name)
}

// Parent returns the containing directory, or the root for top-level
// paths and the root itself.
func (p Path) Parent() Path {
	i := strings.LastIndexByte(string(p), '/')
	if i < 0 {
		return Root
	}
	return p[:i]
}

// BaseName returns the final path segment, or "" for the root.
func (p Path) BaseName() string {
	i := strings.LastIndexByte(string(p), '/')
	return string(p[i+1:])
}

// Depth returns the number of segments; the root has depth zero.
func (p Path) Depth() int {
	if p.IsRoot() {
		return 0
	}
	return strings.Count(string(p), "/") + 1
}

// IsDescendantOf reports whether p is strictly below ancestor. The
// root is an ancestor of every other path; nothing descends from
// itself.
func (p Path) IsDescendantOf(ancestor Path) bool {
	if p == ancestor {
		return false
	}
	if ancestor.IsRoot() {
		return !p.IsRoot()
	}
	return strings.HasPrefix(string(p), string(ancestor)+"/")
}

// Rebase rewrites p from one prefix to another. It returns p unchanged
// when p is not the old prefix or below it.
func (p Path) Rebase(from, to Path) Path {
	if p == from {
		return to
	}
	if !p.IsDescendantOf(from) {
		return p
	}
	rest := string(p[len(from):])
	if !from.IsRoot() {
		rest = strings.TrimPrefix(rest, "/")
	}
	return to.Join(rest)
}

// String returns the path as a plain string.
func (p Path) String() string {
	return string(p)
}
