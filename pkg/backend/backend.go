// Package backend defines the engine's door to the outside world: the
// listing and mutation operations a project store must provide, and
// the error taxonomy the engine understands.
package backend

import (
	"context"
	"errors"

	"github.com/galleylabs/galley/pkg/models"
)

// Sentinel errors every implementation maps onto. Anything else coming
// out of a Backend is treated as an I/O error. Implementations wrap
// these with detail; callers test with errors.Is.
var (
	ErrNotFound = errors.New("entry not found")
	ErrConflict = errors.New("entry conflict")
)

// Backend lists and mutates one project's entries. Listing is one
// directory level at a time; content I/O is deliberately absent, the
// engine never reads file bodies.
//
// Contract:
//   - ListDir returns the entries of dir in the backend's order, an
//     empty slice for an empty directory, ErrNotFound for a missing
//     one.
//   - CreateEntry makes an empty file or a directory; ErrConflict if
//     the path exists, ErrNotFound if the parent is missing.
//   - RenameEntry and MoveEntry fail with ErrConflict when the target
//     name is taken and ErrNotFound when the source is missing.
//   - DuplicateEntry copies a file or a whole directory tree.
//   - DeleteEntry without recursive fails with ErrConflict on a
//     non-empty directory.
type Backend interface {
	ListDir(ctx context.Context, dir models.Path) ([]models.Entry, error)
	CreateEntry(ctx context.Context, path models.Path, kind models.EntryKind) error
	RenameEntry(ctx context.Context, from, to models.Path) error
	MoveEntry(ctx context.Context, from models.Path, toDir models.Path) error
	DuplicateEntry(ctx context.Context, from, to models.Path) error
	DeleteEntry(ctx context.Context, path models.Path, recursive bool) error
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err means the operation hit an existing
// entry or a non-empty directory.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
