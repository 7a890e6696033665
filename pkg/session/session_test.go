package session

import (
	"path/filepath"
	"testing"

	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/view"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	s := openStore(t)

	st, ok := s.Load("thesis")
	if ok {
		t.Error("expected ok=false for a project never saved")
	}
	def := DefaultState()
	if st.ShowHidden != def.ShowHidden || st.Types != def.Types ||
		st.SortBy != def.SortBy || st.Order != def.Order {
		t.Errorf("expected defaults, got %+v", st)
	}
	if st.Expanded == nil || len(st.Expanded) != 0 {
		t.Errorf("expected empty expanded set, got %#v", st.Expanded)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := openStore(t)

	want := State{
		Expanded:   []models.Path{"chapters", "chapters/figures"},
		ShowHidden: true,
		Types:      view.TypeLatex,
		SortBy:     view.SortByDate,
		Order:      view.Descending,
	}
	if err := s.Save("thesis", want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := s.Load("thesis")
	if !ok {
		t.Fatal("expected ok=true after save")
	}
	if got.ShowHidden != want.ShowHidden || got.Types != want.Types ||
		got.SortBy != want.SortBy || got.Order != want.Order {
		t.Errorf("options mismatch: got %+v want %+v", got, want)
	}
	if len(got.Expanded) != 2 || got.Expanded[0] != "chapters" || got.Expanded[1] != "chapters/figures" {
		t.Errorf("expanded mismatch: %#v", got.Expanded)
	}
}

func TestSaveUpserts(t *testing.T) {
	s := openStore(t)

	first := DefaultState()
	first.Expanded = []models.Path{"a"}
	if err := s.Save("thesis", first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := DefaultState()
	second.Expanded = []models.Path{"b", "b/c"}
	second.ShowHidden = true
	if err := s.Save("thesis", second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, ok := s.Load("thesis")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(got.Expanded) != 2 || got.Expanded[0] != "b" {
		t.Errorf("expected second save to win, got %#v", got.Expanded)
	}
	if !got.ShowHidden {
		t.Error("expected show_hidden from second save")
	}
}

func TestProjectsAreIndependent(t *testing.T) {
	s := openStore(t)

	a := DefaultState()
	a.Expanded = []models.Path{"chapters"}
	if err := s.Save("thesis", a); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok := s.Load("slides"); ok {
		t.Error("state for one project must not leak into another")
	}
}

func TestCorruptExpandedColumnFallsBackToDefaults(t *testing.T) {
	s := openStore(t)
	if err := s.Save("thesis", DefaultState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE project_state SET expanded = 'not-json' WHERE project = 'thesis'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	st, ok := s.Load("thesis")
	if ok {
		t.Error("expected ok=false for an undecodable row")
	}
	if len(st.Expanded) != 0 || st.Types != view.TypeAll {
		t.Errorf("expected defaults, got %+v", st)
	}
}

func TestUnknownTypeFilterFallsBackToDefaults(t *testing.T) {
	s := openStore(t)
	if err := s.Save("thesis", DefaultState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE project_state SET type_filter = 'spreadsheets' WHERE project = 'thesis'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, ok := s.Load("thesis"); ok {
		t.Error("expected ok=false for an unknown type filter")
	}
}

func TestDelete(t *testing.T) {
	s := openStore(t)
	if err := s.Save("thesis", DefaultState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete("thesis"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Load("thesis"); ok {
		t.Error("expected ok=false after delete")
	}
	if err := s.Delete("thesis"); err != nil {
		t.Errorf("deleting a missing row should not error: %v", err)
	}
}
