// Package postgres provides the PostgreSQL-backed metadata store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metadata"
	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/pkg/models"
)

// Store is a PostgreSQL metadata store.
type Store struct {
	db *sql.DB
}

// New opens a pooled connection and verifies it.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics refreshes the open-connection gauge.
func (s *Store) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(s.db.Stats().OpenConnections)
}

// Migrate runs the *.up.sql files in migrationsDir in lexical order.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.L().Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// CreateProject adds a project.
func (s *Store) CreateProject(ctx context.Context, id, name string) (metadata.Project, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_project", time.Since(start)) }()

	var p metadata.Project
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO projects (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING id, name, created_at`,
		id, name).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return metadata.Project{}, fmt.Errorf("project %q: %w", id, metadata.ErrConflict)
	}
	if err != nil {
		return metadata.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// GetProject returns one project.
func (s *Store) GetProject(ctx context.Context, id string) (metadata.Project, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_project", time.Since(start)) }()

	var p metadata.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return metadata.Project{}, fmt.Errorf("project %q: %w", id, metadata.ErrNotFound)
	}
	if err != nil {
		return metadata.Project{}, fmt.Errorf("query project: %w", err)
	}
	return p, nil
}

// Projects returns all projects ordered by ID.
func (s *Store) Projects(ctx context.Context) ([]metadata.Project, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_projects", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []metadata.Project
	for rows.Next() {
		var p metadata.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project and its entries, returning the
// content keys of the removed files. Entry rows cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_project", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	keys, err := scanKeys(tx.QueryContext(ctx,
		`SELECT content_key FROM entries
		 WHERE project_id = $1 AND is_dir = FALSE ORDER BY content_key`, id))
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("project %q: %w", id, metadata.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	logging.L().Info("project deleted",
		zap.String("project", id),
		zap.Int("files", len(keys)))
	return keys, nil
}

// Get returns one entry.
func (s *Store) Get(ctx context.Context, project, path string) (metadata.EntryRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_entry", time.Since(start)) }()

	row, err := getEntry(ctx, s.db, project, path)
	if err != nil {
		return metadata.EntryRow{}, err
	}
	return row, nil
}

// ListDir returns the children of dir in name order.
func (s *Store) ListDir(ctx context.Context, project, dir string) ([]metadata.EntryRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_dir", time.Since(start)) }()

	if dir == "" {
		if err := projectExists(ctx, s.db, project); err != nil {
			return nil, err
		}
	} else {
		row, err := getEntry(ctx, s.db, project, dir)
		if err != nil {
			return nil, err
		}
		if !row.IsDir {
			return nil, fmt.Errorf("directory %q: %w", dir, metadata.ErrNotFound)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, path, parent_path, name, is_dir, size, mod_time, content_key
		 FROM entries WHERE project_id = $1 AND parent_path = $2 ORDER BY name`,
		project, dir)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	out := make([]metadata.EntryRow, 0, 16)
	for rows.Next() {
		var r metadata.EntryRow
		if err := rows.Scan(&r.ProjectID, &r.Path, &r.ParentPath, &r.Name,
			&r.IsDir, &r.Size, &r.ModTime, &r.ContentKey); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert adds one entry under an existing parent.
func (s *Store) Insert(ctx context.Context, row metadata.EntryRow) (metadata.EntryRow, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_entry", time.Since(start)) }()

	p := models.Path(row.Path)
	if p.IsRoot() {
		return metadata.EntryRow{}, fmt.Errorf("root: %w", metadata.ErrConflict)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return metadata.EntryRow{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := projectExists(ctx, tx, row.ProjectID); err != nil {
		return metadata.EntryRow{}, err
	}
	if err := dirExists(ctx, tx, row.ProjectID, row.ParentPath); err != nil {
		return metadata.EntryRow{}, fmt.Errorf("parent of %q: %w", row.Path, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (project_id, path, parent_path, name, is_dir, size, mod_time, content_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (project_id, path) DO NOTHING`,
		row.ProjectID, row.Path, row.ParentPath, row.Name, row.IsDir, row.Size, row.ModTime, row.ContentKey)
	if err != nil {
		return metadata.EntryRow{}, fmt.Errorf("insert entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return metadata.EntryRow{}, fmt.Errorf("entry %q: %w", row.Path, metadata.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return metadata.EntryRow{}, fmt.Errorf("commit: %w", err)
	}
	return row, nil
}

// UpdateFile records a content write on an existing file.
func (s *Store) UpdateFile(ctx context.Context, project, path string, size int64, modTime time.Time) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update_file", time.Since(start)) }()

	row, err := getEntry(ctx, s.db, project, path)
	if err != nil {
		return err
	}
	if row.IsDir {
		return fmt.Errorf("entry %q is a directory: %w", path, metadata.ErrConflict)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE entries SET size = $1, mod_time = $2 WHERE project_id = $3 AND path = $4`,
		size, modTime, project, path)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// Rename re-paths an entry and its subtree in one statement. Content
// keys are kept.
func (s *Store) Rename(ctx context.Context, project, from, to string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("rename_entry", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := checkDest(ctx, tx, project, from, to); err != nil {
		return err
	}

	toP := models.Path(to)
	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET
		    path = $1 || substr(path, char_length($2) + 1),
		    parent_path = CASE WHEN path = $2 THEN $3
		                       ELSE $1 || substr(parent_path, char_length($2) + 1) END,
		    name = CASE WHEN path = $2 THEN $4 ELSE name END
		 WHERE project_id = $5 AND (path = $2 OR path LIKE $6)`,
		to, from, toP.Parent().String(), toP.BaseName(), project, from+"/%")
	if err != nil {
		return fmt.Errorf("re-path subtree: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.L().Debug("renamed entry",
		zap.String("project", project),
		zap.String("from", from),
		zap.String("to", to))
	return nil
}

// CopyTree duplicates an entry and its subtree with fresh content keys.
func (s *Store) CopyTree(ctx context.Context, project, from, to string) ([]metadata.KeyPair, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("copy_tree", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := checkDest(ctx, tx, project, from, to); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT path, is_dir, size, content_key FROM entries
		 WHERE project_id = $1 AND (path = $2 OR path LIKE $3) ORDER BY path`,
		project, from, from+"/%")
	if err != nil {
		return nil, fmt.Errorf("query subtree: %w", err)
	}
	type src struct {
		path  string
		isDir bool
		size  int64
		key   string
	}
	var srcs []src
	for rows.Next() {
		var r src
		if err := rows.Scan(&r.path, &r.isDir, &r.size, &r.key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		srcs = append(srcs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	fromP, toP := models.Path(from), models.Path(to)
	now := time.Now().UTC()
	var pairs []metadata.KeyPair
	for _, r := range srcs {
		p := models.Path(r.path).Rebase(fromP, toP)
		key := ""
		if !r.isDir {
			key = uuid.NewString()
			pairs = append(pairs, metadata.KeyPair{OldKey: r.key, NewKey: key})
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entries (project_id, path, parent_path, name, is_dir, size, mod_time, content_key)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			project, p.String(), p.Parent().String(), p.BaseName(), r.isDir, r.size, now, key)
		if err != nil {
			return nil, fmt.Errorf("insert copy %q: %w", p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return pairs, nil
}

// Delete removes an entry, returning the content keys of removed files.
func (s *Store) Delete(ctx context.Context, project, path string, recursive bool) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_entry", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row, err := getEntry(ctx, tx, project, path)
	if err != nil {
		return nil, err
	}
	if row.IsDir && !recursive {
		var hasChildren bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM entries WHERE project_id = $1 AND parent_path = $2)`,
			project, path).Scan(&hasChildren)
		if err != nil {
			return nil, fmt.Errorf("check children: %w", err)
		}
		if hasChildren {
			return nil, fmt.Errorf("directory %q is not empty: %w", path, metadata.ErrConflict)
		}
	}

	keys, err := scanKeys(tx.QueryContext(ctx,
		`DELETE FROM entries WHERE project_id = $1 AND (path = $2 OR path LIKE $3)
		 RETURNING CASE WHEN is_dir THEN NULL ELSE content_key END`,
		project, path, path+"/%"))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return keys, nil
}

// EntryCount returns the number of entries in a project.
func (s *Store) EntryCount(ctx context.Context, project string) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("entry_count", time.Since(start)) }()

	if err := projectExists(ctx, s.db, project); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE project_id = $1`, project).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// CreateUser adds an account.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (metadata.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_user", time.Since(start)) }()

	var u metadata.User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password, is_admin) VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING username, password, is_admin, created_at`,
		username, passwordHash, isAdmin).
		Scan(&u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return metadata.User{}, fmt.Errorf("user %q: %w", username, metadata.ErrConflict)
	}
	if err != nil {
		return metadata.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser returns one account.
func (s *Store) GetUser(ctx context.Context, username string) (metadata.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_user", time.Since(start)) }()

	var u metadata.User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password, is_admin, created_at FROM users WHERE username = $1`,
		username).Scan(&u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return metadata.User{}, fmt.Errorf("user %q: %w", username, metadata.ErrNotFound)
	}
	if err != nil {
		return metadata.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]metadata.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_users", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password, is_admin, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []metadata.User
	for rows.Next() {
		var u metadata.User
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser removes an account; its sessions cascade.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_user", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", username, metadata.ErrNotFound)
	}
	return nil
}

// SetPassword replaces an account's password hash.
func (s *Store) SetPassword(ctx context.Context, username, passwordHash string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_password", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = $1 WHERE username = $2`, passwordHash, username)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", username, metadata.ErrNotFound)
	}
	return nil
}

// UserCount returns the number of accounts.
func (s *Store) UserCount(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("user_count", time.Since(start)) }()

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CreateSession records an issued token.
func (s *Store) CreateSession(ctx context.Context, username, tokenHash string, expiresAt time.Time) (metadata.Session, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_session", time.Since(start)) }()

	var sess metadata.Session
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (username, token_hash, expires_at) VALUES ($1, $2, $3)
		 RETURNING id, username, token_hash, created_at, expires_at, revoked`,
		username, tokenHash, expiresAt).
		Scan(&sess.ID, &sess.Username, &sess.TokenHash, &sess.CreatedAt, &sess.ExpiresAt, &sess.Revoked)
	if err != nil {
		return metadata.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// IsSessionRevoked reports whether the token was revoked. Every issued
// token has a session row, so a missing row means the session is gone
// (user deleted) and the token counts as revoked.
func (s *Store) IsSessionRevoked(ctx context.Context, tokenHash string) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("session_revoked", time.Since(start)) }()

	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT revoked FROM sessions WHERE token_hash = $1`, tokenHash).Scan(&revoked)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query session: %w", err)
	}
	return revoked, nil
}

// ListSessions returns all sessions ordered by ID.
func (s *Store) ListSessions(ctx context.Context) ([]metadata.Session, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_sessions", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, token_hash, created_at, expires_at, revoked
		 FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []metadata.Session
	for rows.Next() {
		var sess metadata.Session
		if err := rows.Scan(&sess.ID, &sess.Username, &sess.TokenHash,
			&sess.CreatedAt, &sess.ExpiresAt, &sess.Revoked); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RevokeSession marks one session revoked.
func (s *Store) RevokeSession(ctx context.Context, id int64) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("revoke_session", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, metadata.ErrNotFound)
	}
	return nil
}

// ActiveSessionCount returns the number of non-revoked, non-expired
// sessions.
func (s *Store) ActiveSessionCount(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("active_sessions", time.Since(start)) }()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE revoked = FALSE AND expires_at > NOW()`).Scan(&n)
	return n, err
}

// querier covers *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func projectExists(ctx context.Context, q querier, project string) error {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, project).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return fmt.Errorf("project %q: %w", project, metadata.ErrNotFound)
	}
	return nil
}

// dirExists requires dir to be the root or an existing directory.
func dirExists(ctx context.Context, q querier, project, dir string) error {
	if dir == "" {
		return nil
	}
	row, err := getEntry(ctx, q, project, dir)
	if err != nil {
		return err
	}
	if !row.IsDir {
		return fmt.Errorf("entry %q is not a directory: %w", dir, metadata.ErrNotFound)
	}
	return nil
}

func getEntry(ctx context.Context, q querier, project, path string) (metadata.EntryRow, error) {
	var r metadata.EntryRow
	err := q.QueryRowContext(ctx,
		`SELECT project_id, path, parent_path, name, is_dir, size, mod_time, content_key
		 FROM entries WHERE project_id = $1 AND path = $2`, project, path).
		Scan(&r.ProjectID, &r.Path, &r.ParentPath, &r.Name, &r.IsDir, &r.Size, &r.ModTime, &r.ContentKey)
	if err == sql.ErrNoRows {
		return metadata.EntryRow{}, fmt.Errorf("entry %q: %w", path, metadata.ErrNotFound)
	}
	if err != nil {
		return metadata.EntryRow{}, fmt.Errorf("query entry: %w", err)
	}
	return r, nil
}

// checkDest validates a rename/copy source and destination inside tx.
func checkDest(ctx context.Context, tx *sql.Tx, project, from, to string) error {
	if _, err := getEntry(ctx, tx, project, from); err != nil {
		return err
	}
	toP := models.Path(to)
	if toP.IsRoot() {
		return fmt.Errorf("destination is the root: %w", metadata.ErrConflict)
	}
	if _, err := getEntry(ctx, tx, project, to); err == nil {
		return fmt.Errorf("entry %q: %w", to, metadata.ErrConflict)
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}
	if err := dirExists(ctx, tx, project, toP.Parent().String()); err != nil {
		return fmt.Errorf("parent of %q: %w", to, err)
	}
	if toP == models.Path(from) || toP.IsDescendantOf(models.Path(from)) {
		return fmt.Errorf("destination %q is inside %q: %w", to, from, metadata.ErrConflict)
	}
	return nil
}

// scanKeys drains a single-column query of nullable content keys.
func scanKeys(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key sql.NullString
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		if key.Valid && key.String != "" {
			keys = append(keys, key.String)
		}
	}
	return keys, rows.Err()
}
