// Package metadata defines the server-side store of projects, entries,
// users, and sessions. Two implementations exist: memory (dev and
// tests) and postgres.
package metadata

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared with the API layer, which maps them onto 404
// and 409.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Project is one hosted project.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// EntryRow is one tree entry. Path and ParentPath are slash-joined and
// relative to the project root; the root itself has no row and its
// children carry an empty ParentPath. ContentKey names the entry's
// blob; it is empty for directories and stays fixed across rename and
// move so content never has to be copied.
type EntryRow struct {
	ProjectID  string
	Path       string
	ParentPath string
	Name       string
	IsDir      bool
	Size       int64
	ModTime    time.Time
	ContentKey string
}

// KeyPair maps a source entry's content key to its copy's key.
type KeyPair struct {
	OldKey string
	NewKey string
}

// User is one account.
type User struct {
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Session records one issued token, keyed by the SHA-256 hash of the
// token string.
type Session struct {
	ID        int64
	Username  string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Store is the metadata store contract.
//
// Lookups of missing projects, entries, or users return ErrNotFound.
// Creates of existing paths return ErrConflict, creates under a
// missing parent ErrNotFound. Rename and CopyTree re-path or copy
// whole subtrees atomically. Delete of a non-empty directory without
// recursive returns ErrConflict.
type Store interface {
	// Projects.
	CreateProject(ctx context.Context, id, name string) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	Projects(ctx context.Context) ([]Project, error)
	// DeleteProject removes the project and every entry in it,
	// returning the content keys of the removed files.
	DeleteProject(ctx context.Context, id string) ([]string, error)

	// Entries.
	Get(ctx context.Context, project, path string) (EntryRow, error)
	// ListDir returns one level in name order. An empty directory
	// yields an empty slice, a missing one ErrNotFound.
	ListDir(ctx context.Context, project, dir string) ([]EntryRow, error)
	// Insert adds one entry. A zero ModTime is stamped with the
	// current time and an empty ContentKey on a file is assigned a
	// fresh one; the stored row is returned.
	Insert(ctx context.Context, row EntryRow) (EntryRow, error)
	// UpdateFile records a content write on an existing file.
	// Directories are rejected with ErrConflict.
	UpdateFile(ctx context.Context, project, path string, size int64, modTime time.Time) error
	// Rename re-paths the entry and, for directories, its whole
	// subtree. Content keys are untouched. Move is a Rename whose
	// destination keeps the source name.
	Rename(ctx context.Context, project, from, to string) error
	// CopyTree duplicates the entry (and subtree) under a new path
	// with fresh content keys, returning old→new pairs so the caller
	// can copy the blobs.
	CopyTree(ctx context.Context, project, from, to string) ([]KeyPair, error)
	// Delete removes the entry (and subtree when recursive),
	// returning the content keys of the removed files.
	Delete(ctx context.Context, project, path string, recursive bool) ([]string, error)
	EntryCount(ctx context.Context, project string) (int64, error)

	// Users.
	CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (User, error)
	GetUser(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, username string) error
	SetPassword(ctx context.Context, username, passwordHash string) error
	UserCount(ctx context.Context) (int64, error)

	// Sessions.
	CreateSession(ctx context.Context, username, tokenHash string, expiresAt time.Time) (Session, error)
	// IsSessionRevoked reports whether the token may no longer be
	// used. A token without a session row counts as revoked.
	IsSessionRevoked(ctx context.Context, tokenHash string) (bool, error)
	ListSessions(ctx context.Context) ([]Session, error)
	RevokeSession(ctx context.Context, id int64) error
	ActiveSessionCount(ctx context.Context) (int64, error)

	Close() error
}
