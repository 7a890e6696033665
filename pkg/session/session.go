// Package session persists per-project view state (expanded paths and
// view options) in a local SQLite database, so a reopened project looks
// the way it was left.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/view"
)

// State is the per-project view state worth keeping across restarts.
// The search query is deliberately absent; search is ephemeral.
type State struct {
	Expanded   []models.Path
	ShowHidden bool
	Types      view.TypeFilter
	SortBy     view.SortKey
	Order      view.SortOrder
}

// DefaultState mirrors view.DefaultOptions with nothing expanded.
func DefaultState() State {
	o := view.DefaultOptions()
	return State{
		Expanded:   []models.Path{},
		ShowHidden: o.ShowHidden,
		Types:      o.Types,
		SortBy:     o.SortBy,
		Order:      o.Order,
	}
}

// Store holds one SQLite database with one row per project.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath, applying the schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// WAL lets a Load proceed while a Save is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS project_state (
		project     TEXT PRIMARY KEY,
		expanded    TEXT NOT NULL DEFAULT '[]',
		show_hidden INTEGER NOT NULL DEFAULT 0,
		type_filter TEXT NOT NULL DEFAULT 'all',
		sort_by     TEXT NOT NULL DEFAULT 'name',
		sort_order  TEXT NOT NULL DEFAULT 'asc',
		updated_at  DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the saved state for project. ok is false when no row
// exists or the row cannot be decoded; either way the returned state is
// usable defaults. Corrupt state never fails the caller.
func (s *Store) Load(project string) (State, bool) {
	var (
		expandedJSON string
		showHidden   int
		typeFilter   string
		sortBy       string
		sortOrder    string
	)
	err := s.db.QueryRow(
		`SELECT expanded, show_hidden, type_filter, sort_by, sort_order
		 FROM project_state WHERE project = ?`, project,
	).Scan(&expandedJSON, &showHidden, &typeFilter, &sortBy, &sortOrder)
	if err != nil {
		return DefaultState(), false
	}

	var expanded []models.Path
	if err := json.Unmarshal([]byte(expandedJSON), &expanded); err != nil {
		return DefaultState(), false
	}
	if expanded == nil {
		expanded = []models.Path{}
	}
	st := State{
		Expanded:   expanded,
		ShowHidden: showHidden != 0,
		Types:      view.TypeFilter(typeFilter),
		SortBy:     view.SortKey(sortBy),
		Order:      view.SortOrder(sortOrder),
	}
	if !st.Types.Valid() {
		return DefaultState(), false
	}
	return st, true
}

// Save upserts the state for project.
func (s *Store) Save(project string, st State) error {
	if st.Expanded == nil {
		st.Expanded = []models.Path{}
	}
	expandedJSON, err := json.Marshal(st.Expanded)
	if err != nil {
		return fmt.Errorf("encode expanded set: %w", err)
	}
	showHidden := 0
	if st.ShowHidden {
		showHidden = 1
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO project_state
		 (project, expanded, show_hidden, type_filter, sort_by, sort_order, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project, string(expandedJSON), showHidden,
		string(st.Types), string(st.SortBy), string(st.Order),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save state for %q: %w", project, err)
	}
	return nil
}

// Delete removes the saved state for project. Deleting a project that
// was never saved is not an error.
func (s *Store) Delete(project string) error {
	_, err := s.db.Exec(`DELETE FROM project_state WHERE project = ?`, project)
	if err != nil {
		return fmt.Errorf("delete state for %q: %w", project, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
