// Package memory provides an in-memory metadata store used for
// development and the unit test suite.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/galleylabs/galley/internal/metadata"
	"github.com/galleylabs/galley/pkg/models"
)

// Store is a mutex-guarded in-memory metadata store.
type Store struct {
	mu       sync.Mutex
	projects map[string]metadata.Project
	entries  map[string]map[string]metadata.EntryRow // project → path → row
	users    map[string]metadata.User
	sessions map[int64]metadata.Session
	tokenIdx map[string]int64 // token hash → session id
	nextID   int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		projects: make(map[string]metadata.Project),
		entries:  make(map[string]map[string]metadata.EntryRow),
		users:    make(map[string]metadata.User),
		sessions: make(map[int64]metadata.Session),
		tokenIdx: make(map[string]int64),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// CreateProject adds a project. An existing ID is a conflict.
func (s *Store) CreateProject(ctx context.Context, id, name string) (metadata.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; ok {
		return metadata.Project{}, fmt.Errorf("project %q: %w", id, metadata.ErrConflict)
	}
	p := metadata.Project{ID: id, Name: name, CreatedAt: time.Now().UTC()}
	s.projects[id] = p
	s.entries[id] = make(map[string]metadata.EntryRow)
	return p, nil
}

// GetProject returns one project.
func (s *Store) GetProject(ctx context.Context, id string) (metadata.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return metadata.Project{}, fmt.Errorf("project %q: %w", id, metadata.ErrNotFound)
	}
	return p, nil
}

// Projects returns all projects ordered by ID.
func (s *Store) Projects(ctx context.Context) ([]metadata.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]metadata.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteProject removes the project and all its entries, returning the
// content keys of the removed files.
func (s *Store) DeleteProject(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return nil, fmt.Errorf("project %q: %w", id, metadata.ErrNotFound)
	}
	var keys []string
	for _, row := range s.entries[id] {
		if !row.IsDir {
			keys = append(keys, row.ContentKey)
		}
	}
	delete(s.projects, id)
	delete(s.entries, id)
	sort.Strings(keys)
	return keys, nil
}

// Get returns one entry. The root has no row.
func (s *Store) Get(ctx context.Context, project, path string) (metadata.EntryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[project]
	if !ok {
		return metadata.EntryRow{}, fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	row, ok := rows[path]
	if !ok {
		return metadata.EntryRow{}, fmt.Errorf("entry %q: %w", path, metadata.ErrNotFound)
	}
	return row, nil
}

// ListDir returns the children of dir in name order.
func (s *Store) ListDir(ctx context.Context, project, dir string) ([]metadata.EntryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[project]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	if dir != "" {
		row, ok := rows[dir]
		if !ok || !row.IsDir {
			return nil, fmt.Errorf("directory %q: %w", dir, metadata.ErrNotFound)
		}
	}
	out := make([]metadata.EntryRow, 0, 8)
	for _, row := range rows {
		if row.ParentPath == dir {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Insert adds one entry under an existing parent.
func (s *Store) Insert(ctx context.Context, row metadata.EntryRow) (metadata.EntryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[row.ProjectID]
	if !ok {
		return metadata.EntryRow{}, fmt.Errorf("project %q: %w", row.ProjectID, metadata.ErrNotFound)
	}
	p := models.Path(row.Path)
	if p.IsRoot() {
		return metadata.EntryRow{}, fmt.Errorf("root: %w", metadata.ErrConflict)
	}
	if _, ok := rows[row.Path]; ok {
		return metadata.EntryRow{}, fmt.Errorf("entry %q: %w", row.Path, metadata.ErrConflict)
	}
	if !dirExists(rows, p.Parent().String()) {
		return metadata.EntryRow{}, fmt.Errorf("parent of %q: %w", row.Path, metadata.ErrNotFound)
	}

	row.ParentPath = p.Parent().String()
	row.Name = p.BaseName()
	if row.ModTime.IsZero() {
		row.ModTime = time.Now().UTC()
	}
	if row.IsDir {
		row.ContentKey = ""
	} else if row.ContentKey == "" {
		row.ContentKey = uuid.NewString()
	}
	rows[row.Path] = row
	return row, nil
}

// UpdateFile records a content write on an existing file.
func (s *Store) UpdateFile(ctx context.Context, project, path string, size int64, modTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[project]
	if !ok {
		return fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	row, ok := rows[path]
	if !ok {
		return fmt.Errorf("entry %q: %w", path, metadata.ErrNotFound)
	}
	if row.IsDir {
		return fmt.Errorf("entry %q is a directory: %w", path, metadata.ErrConflict)
	}
	row.Size = size
	row.ModTime = modTime
	rows[path] = row
	return nil
}

// Rename re-paths an entry and its subtree. Content keys are kept.
func (s *Store) Rename(ctx context.Context, project, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[project]
	if !ok {
		return fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	if err := checkDest(rows, from, to); err != nil {
		return err
	}

	fromP, toP := models.Path(from), models.Path(to)
	moved := collectSubtree(rows, fromP)
	for _, row := range moved {
		delete(rows, row.Path)
	}
	for _, row := range moved {
		p := models.Path(row.Path).Rebase(fromP, toP)
		row.Path = p.String()
		row.ParentPath = p.Parent().String()
		row.Name = p.BaseName()
		rows[row.Path] = row
	}
	return nil
}

// CopyTree duplicates an entry and its subtree with fresh content keys.
func (s *Store) CopyTree(ctx context.Context, project, from, to string) ([]metadata.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[project]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	if err := checkDest(rows, from, to); err != nil {
		return nil, err
	}

	fromP, toP := models.Path(from), models.Path(to)
	src := collectSubtree(rows, fromP)
	now := time.Now().UTC()
	var pairs []metadata.KeyPair
	for _, row := range src {
		p := models.Path(row.Path).Rebase(fromP, toP)
		cp := row
		cp.Path = p.String()
		cp.ParentPath = p.Parent().String()
		cp.Name = p.BaseName()
		cp.ModTime = now
		if !cp.IsDir {
			cp.ContentKey = uuid.NewString()
			pairs = append(pairs, metadata.KeyPair{OldKey: row.ContentKey, NewKey: cp.ContentKey})
		}
		rows[cp.Path] = cp
	}
	return pairs, nil
}

// Delete removes an entry, returning the content keys of removed files.
func (s *Store) Delete(ctx context.Context, project, path string, recursive bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[project]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	row, ok := rows[path]
	if !ok {
		return nil, fmt.Errorf("entry %q: %w", path, metadata.ErrNotFound)
	}
	if row.IsDir && !recursive && hasChildren(rows, path) {
		return nil, fmt.Errorf("directory %q is not empty: %w", path, metadata.ErrConflict)
	}

	removed := collectSubtree(rows, models.Path(path))
	var keys []string
	for _, r := range removed {
		delete(rows, r.Path)
		if !r.IsDir {
			keys = append(keys, r.ContentKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// EntryCount returns the number of entries in a project.
func (s *Store) EntryCount(ctx context.Context, project string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.entries[project]
	if !ok {
		return 0, fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	return int64(len(rows)), nil
}

// CreateUser adds an account.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (metadata.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return metadata.User{}, fmt.Errorf("user %q: %w", username, metadata.ErrConflict)
	}
	u := metadata.User{
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[username] = u
	return u, nil
}

// GetUser returns one account.
func (s *Store) GetUser(ctx context.Context, username string) (metadata.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return metadata.User{}, fmt.Errorf("user %q: %w", username, metadata.ErrNotFound)
	}
	return u, nil
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]metadata.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]metadata.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// DeleteUser removes an account and its sessions.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("user %q: %w", username, metadata.ErrNotFound)
	}
	delete(s.users, username)
	for id, sess := range s.sessions {
		if sess.Username == username {
			delete(s.sessions, id)
			delete(s.tokenIdx, sess.TokenHash)
		}
	}
	return nil
}

// SetPassword replaces an account's password hash.
func (s *Store) SetPassword(ctx context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user %q: %w", username, metadata.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	s.users[username] = u
	return nil
}

// UserCount returns the number of accounts.
func (s *Store) UserCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

// CreateSession records an issued token for an existing user.
func (s *Store) CreateSession(ctx context.Context, username, tokenHash string, expiresAt time.Time) (metadata.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return metadata.Session{}, fmt.Errorf("user %q: %w", username, metadata.ErrNotFound)
	}
	s.nextID++
	sess := metadata.Session{
		ID:        s.nextID,
		Username:  username,
		TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	s.sessions[sess.ID] = sess
	s.tokenIdx[tokenHash] = sess.ID
	return sess, nil
}

// IsSessionRevoked reports whether the token was revoked. Every issued
// token has a session row, so a missing row means the session is gone
// (user deleted) and the token counts as revoked.
func (s *Store) IsSessionRevoked(ctx context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tokenIdx[tokenHash]
	if !ok {
		return true, nil
	}
	return s.sessions[id].Revoked, nil
}

// ListSessions returns all sessions ordered by ID.
func (s *Store) ListSessions(ctx context.Context) ([]metadata.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]metadata.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RevokeSession marks one session revoked.
func (s *Store) RevokeSession(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %d: %w", id, metadata.ErrNotFound)
	}
	sess.Revoked = true
	s.sessions[id] = sess
	return nil
}

// ActiveSessionCount returns the number of non-revoked, non-expired
// sessions.
func (s *Store) ActiveSessionCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var n int64
	for _, sess := range s.sessions {
		if !sess.Revoked && sess.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

// dirExists reports whether dir is the root or an existing directory.
func dirExists(rows map[string]metadata.EntryRow, dir string) bool {
	if dir == "" {
		return true
	}
	row, ok := rows[dir]
	return ok && row.IsDir
}

func hasChildren(rows map[string]metadata.EntryRow, dir string) bool {
	for _, row := range rows {
		if row.ParentPath == dir {
			return true
		}
	}
	return false
}

// collectSubtree returns the entry at root and everything below it,
// ordered by path so parents precede children.
func collectSubtree(rows map[string]metadata.EntryRow, root models.Path) []metadata.EntryRow {
	var out []metadata.EntryRow
	for _, row := range rows {
		p := models.Path(row.Path)
		if p == root || p.IsDescendantOf(root) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// checkDest validates a rename/copy source and destination.
func checkDest(rows map[string]metadata.EntryRow, from, to string) error {
	if _, ok := rows[from]; !ok {
		return fmt.Errorf("entry %q: %w", from, metadata.ErrNotFound)
	}
	toP := models.Path(to)
	if toP.IsRoot() {
		return fmt.Errorf("destination is the root: %w", metadata.ErrConflict)
	}
	if _, ok := rows[to]; ok {
		return fmt.Errorf("entry %q: %w", to, metadata.ErrConflict)
	}
	if !dirExists(rows, toP.Parent().String()) {
		return fmt.Errorf("parent of %q: %w", to, metadata.ErrNotFound)
	}
	if toP == models.Path(from) || toP.IsDescendantOf(models.Path(from)) {
		return fmt.Errorf("destination %q is inside %q: %w", to, from, metadata.ErrConflict)
	}
	return nil
}
