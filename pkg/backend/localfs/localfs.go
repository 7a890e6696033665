// Package localfs implements backend.Backend over a project rooted at
// a local directory. This is the native binding used by desktop builds
// and by tests; the remote binding lives in pkg/client.
package localfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charlievieth/fastwalk"

	"github.com/galleylabs/galley/pkg/backend"
	"github.com/galleylabs/galley/pkg/models"
)

// Local serves one project from a directory on disk.
type Local struct {
	root string
}

// New returns a backend rooted at dir, which must exist.
func New(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute project root.
func (l *Local) Root() string {
	return l.root
}

// abs maps a project path onto the filesystem, confining it to the
// root. Escaping paths read as missing rather than leaking what is
// outside.
func (l *Local) abs(p models.Path) (string, error) {
	clean := models.Clean(string(p))
	for _, seg := range strings.Split(string(clean), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", backend.ErrNotFound, p)
		}
	}
	return filepath.Join(l.root, filepath.FromSlash(string(clean))), nil
}

// ListDir lists exactly one level in name order.
func (l *Local) ListDir(ctx context.Context, dir models.Path) ([]models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := l.abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, mapOSError(err, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", backend.ErrNotFound, dir)
	}

	var entries []models.Entry
	conf := &fastwalk.Config{Follow: true}
	err = fastwalk.Walk(conf, root, func(fullPath string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return nil // unreadable entry, keep walking
		}
		if fullPath == root {
			return nil
		}
		rel, rerr := filepath.Rel(root, fullPath)
		if rerr != nil || strings.ContainsRune(rel, filepath.Separator) {
			// deeper than one level; stop descending here
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		fi, serr := fastwalk.StatDirEntry(fullPath, d)
		if serr != nil {
			return nil
		}
		entries = append(entries, models.Entry{
			Name:    d.Name(),
			IsDir:   fi.IsDir(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	if entries == nil {
		entries = []models.Entry{}
	}
	return entries, nil
}

// CreateEntry makes an empty file or a directory.
func (l *Local) CreateEntry(ctx context.Context, path models.Path, kind models.EntryKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown entry kind %q", kind)
	}
	target, err := l.abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(target); err == nil {
		return fmt.Errorf("%w: %s already exists", backend.ErrConflict, path)
	}
	if err := l.requireDir(path.Parent()); err != nil {
		return err
	}
	if kind == models.KindDir {
		if err := os.Mkdir(target, 0o755); err != nil {
			return mapOSError(err, path)
		}
		return nil
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return mapOSError(err, path)
	}
	return f.Close()
}

// RenameEntry renames within or across directories.
func (l *Local) RenameEntry(ctx context.Context, from, to models.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := l.abs(from)
	if err != nil {
		return err
	}
	dst, err := l.abs(to)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(src); err != nil {
		return mapOSError(err, from)
	}
	// os.Rename silently replaces files; surface it as a conflict
	// instead.
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s already exists", backend.ErrConflict, to)
	}
	if err := l.requireDir(to.Parent()); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return mapOSError(err, from)
	}
	return nil
}

// MoveEntry moves an entry into another directory, keeping its name.
func (l *Local) MoveEntry(ctx context.Context, from models.Path, toDir models.Path) error {
	return l.RenameEntry(ctx, from, toDir.Join(from.BaseName()))
}

// DuplicateEntry copies a file or a whole directory tree.
func (l *Local) DuplicateEntry(ctx context.Context, from, to models.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := l.abs(from)
	if err != nil {
		return err
	}
	dst, err := l.abs(to)
	if err != nil {
		return err
	}
	info, err := os.Lstat(src)
	if err != nil {
		return mapOSError(err, from)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s already exists", backend.ErrConflict, to)
	}
	if err := l.requireDir(to.Parent()); err != nil {
		return err
	}
	if info.IsDir() {
		return copyTree(src, dst)
	}
	return copyFile(src, dst, info.Mode())
}

// DeleteEntry removes an entry. A non-empty directory needs recursive.
func (l *Local) DeleteEntry(ctx context.Context, path models.Path, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := l.abs(path)
	if err != nil {
		return err
	}
	info, err := os.Lstat(target)
	if err != nil {
		return mapOSError(err, path)
	}
	if info.IsDir() && !recursive {
		children, err := os.ReadDir(target)
		if err != nil {
			return mapOSError(err, path)
		}
		if len(children) > 0 {
			return fmt.Errorf("%w: %s is not empty", backend.ErrConflict, path)
		}
	}
	if recursive {
		return os.RemoveAll(target)
	}
	if err := os.Remove(target); err != nil {
		return mapOSError(err, path)
	}
	return nil
}

func (l *Local) requireDir(p models.Path) error {
	abs, err := l.abs(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return mapOSError(err, p)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", backend.ErrNotFound, p)
	}
	return nil
}

func mapOSError(err error, p models.Path) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s", backend.ErrNotFound, p)
	case os.IsExist(err):
		return fmt.Errorf("%w: %s", backend.ErrConflict, p)
	default:
		return fmt.Errorf("%s: %w", p, err)
	}
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}
