package selection

import (
	"reflect"
	"testing"

	"github.com/galleylabs/galley/pkg/models"
)

var flat = []models.Path{"a", "b", "c", "d", "e"}

func selected(e *Engine) []models.Path {
	return e.Snapshot().Selected
}

func TestClickReplaces(t *testing.T) {
	e := New()
	e.Click("a")
	e.Click("c")
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"c"}) {
		t.Fatalf("selected = %v, want [c]", got)
	}
	if e.Anchor() != "c" || e.Focus() != "c" {
		t.Fatalf("anchor=%q focus=%q, want c/c", e.Anchor(), e.Focus())
	}
}

func TestToggle(t *testing.T) {
	e := New()
	e.Click("a")

	e.Toggle("c")
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"a", "c"}) {
		t.Fatalf("after adding c: %v, want [a c]", got)
	}

	e.Toggle("a")
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"c"}) {
		t.Fatalf("after removing a: %v, want [c]", got)
	}
	// Anchor and focus follow the toggled row even on deselect.
	if e.Anchor() != "a" || e.Focus() != "a" {
		t.Fatalf("anchor=%q focus=%q, want a/a", e.Anchor(), e.Focus())
	}
}

func TestRangeToPivotsAroundAnchor(t *testing.T) {
	e := New()
	e.Click("b")

	e.RangeTo("d", flat)
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"b", "c", "d"}) {
		t.Fatalf("shift d: %v, want [b c d]", got)
	}
	if e.Focus() != "d" {
		t.Fatalf("focus = %q, want d", e.Focus())
	}

	// The anchor did not move, so ranging the other way replaces the
	// old range instead of extending it.
	e.RangeTo("a", flat)
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"a", "b"}) {
		t.Fatalf("shift a: %v, want [a b]", got)
	}
	if e.Anchor() != "b" {
		t.Fatalf("anchor moved to %q, want b", e.Anchor())
	}
}

func TestRangeToWithoutAnchor(t *testing.T) {
	e := New()
	e.RangeTo("c", flat)
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"c"}) {
		t.Fatalf("anchorless range: %v, want [c]", got)
	}
	if e.Anchor() != "c" {
		t.Fatalf("anchor = %q, want c", e.Anchor())
	}
}

func TestSelectAllAndClear(t *testing.T) {
	e := New()
	e.Click("b")
	e.SelectAll(flat)
	if e.Count() != len(flat) {
		t.Fatalf("Count = %d, want %d", e.Count(), len(flat))
	}
	if e.Anchor() != "b" || e.Focus() != "b" {
		t.Fatal("SelectAll moved anchor or focus")
	}

	e.Clear()
	if e.Count() != 0 {
		t.Fatal("Clear left rows selected")
	}
	if e.Anchor() != models.Root {
		t.Fatal("Clear kept the anchor")
	}
	if e.Focus() != "b" {
		t.Fatal("Clear dropped the focus")
	}
}

func TestPrune(t *testing.T) {
	e := New()
	e.Click("a")
	e.Toggle("b")

	valid := map[models.Path]struct{}{"a": {}, "c": {}}
	e.Prune(valid)
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"a"}) {
		t.Fatalf("pruned selection = %v, want [a]", got)
	}
	// Anchor and focus pointed at b, which is gone.
	if e.Anchor() != models.Root || e.Focus() != models.Root {
		t.Fatalf("anchor=%q focus=%q, want cleared", e.Anchor(), e.Focus())
	}
}

func TestRootNeverSelectable(t *testing.T) {
	e := New()
	e.Click(models.Root)
	e.Toggle(models.Root)
	e.RangeTo(models.Root, flat)
	if e.Count() != 0 {
		t.Fatalf("root crept into the selection: %v", selected(e))
	}
	e.SelectAll([]models.Path{models.Root, "a"})
	if got := selected(e); !reflect.DeepEqual(got, []models.Path{"a"}) {
		t.Fatalf("SelectAll kept the root: %v", got)
	}
}
