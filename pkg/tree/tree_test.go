package tree

import (
	"reflect"
	"testing"
	"time"

	"github.com/galleylabs/galley/pkg/cache"
	"github.com/galleylabs/galley/pkg/models"
)

func seedCache(t *testing.T, listings map[models.Path][]models.Entry) *cache.FolderCache {
	t.Helper()
	c := cache.New()
	now := time.Now()
	for dir, entries := range listings {
		c.Set(dir, entries, now)
	}
	return c
}

func file(name string) models.Entry {
	return models.Entry{Name: name, Size: 1}
}

func dir(name string) models.Entry {
	return models.Entry{Name: name, IsDir: true}
}

func TestBuildLazyLevels(t *testing.T) {
	c := seedCache(t, map[models.Path][]models.Entry{
		"":             {file("main.tex"), dir("figures"), dir("chapters")},
		"figures":      {file("plot.png")},
		"chapters":     {dir("appendix")},
		"chapters/sub": {file("never-reached.tex")},
	})
	expanded := NewExpandedSet("figures", "chapters", "chapters/appendix")

	forest := Build(models.Root, 0, c, expanded)
	if len(forest) != 3 {
		t.Fatalf("root level: got %d nodes, want 3", len(forest))
	}

	// Backend order preserved, no sorting here.
	wantOrder := []models.Path{"main.tex", "figures", "chapters"}
	for i, n := range forest {
		if n.Path != wantOrder[i] {
			t.Errorf("order[%d] = %q, want %q", i, n.Path, wantOrder[i])
		}
		if n.Depth != 0 {
			t.Errorf("%q depth = %d, want 0", n.Path, n.Depth)
		}
	}

	figures := forest[1]
	if !figures.Loaded() || len(figures.Children) != 1 {
		t.Fatalf("expanded+cached dir not materialized: %+v", figures)
	}
	if figures.Children[0].Path != "figures/plot.png" || figures.Children[0].Depth != 1 {
		t.Errorf("child node wrong: %+v", figures.Children[0])
	}

	// chapters/appendix is expanded but has no cached listing: its
	// children stay nil, which is the fetch-needed signal.
	appendix := forest[2].Children[0]
	if appendix.Path != "chapters/appendix" {
		t.Fatalf("unexpected child %q", appendix.Path)
	}
	if appendix.Loaded() {
		t.Error("expanded-but-uncached dir must keep nil children")
	}
}

func TestBuildAbsentVersusEmpty(t *testing.T) {
	c := seedCache(t, map[models.Path][]models.Entry{
		"":      {dir("empty"), dir("unloaded")},
		"empty": {},
	})
	forest := Build(models.Root, 0, c, NewExpandedSet("empty", "unloaded"))

	empty, unloaded := forest[0], forest[1]
	if !empty.Loaded() || len(empty.Children) != 0 {
		t.Errorf("cached-empty dir: Children = %#v, want loaded empty", empty.Children)
	}
	if unloaded.Loaded() {
		t.Errorf("uncached dir: Children = %#v, want nil", unloaded.Children)
	}
}

func TestBuildIgnoresCollapsedAndFiles(t *testing.T) {
	c := seedCache(t, map[models.Path][]models.Entry{
		"":         {dir("closed"), file("note.tex")},
		"closed":   {file("hidden.tex")},
		"note.tex": {file("bogus")}, // listing for a file path must never be consulted
	})
	// note.tex in the expanded set is defensively ignored.
	forest := Build(models.Root, 0, c, NewExpandedSet("note.tex"))

	if forest[0].Loaded() {
		t.Error("collapsed dir was materialized")
	}
	if forest[1].Loaded() {
		t.Error("file grew children from a stale expanded entry")
	}
}

func TestBuildUncachedRoot(t *testing.T) {
	forest := Build(models.Root, 0, cache.New(), NewExpandedSet())
	if len(forest) != 0 {
		t.Fatalf("uncached root: got %d nodes, want none", len(forest))
	}
}

func TestBuildIdempotent(t *testing.T) {
	c := seedCache(t, map[models.Path][]models.Entry{
		"":     {dir("a"), file("z.tex")},
		"a":    {dir("b"), file("x.bib")},
		"a/b":  {},
		"skip": {file("unused")},
	})
	expanded := NewExpandedSet("a", "a/b")

	first := Build(models.Root, 0, c, expanded)
	second := Build(models.Root, 0, c, expanded)
	if !reflect.DeepEqual(first, second) {
		t.Error("Build is not idempotent for identical inputs")
	}
}

func TestFlattenPreOrder(t *testing.T) {
	c := seedCache(t, map[models.Path][]models.Entry{
		"":  {dir("a"), file("end.tex")},
		"a": {file("one.tex"), file("two.tex")},
	})
	forest := Build(models.Root, 0, c, NewExpandedSet("a"))
	flat := Flatten(forest)

	want := []models.Path{"a", "a/one.tex", "a/two.tex", "end.tex"}
	if got := Paths(flat); !reflect.DeepEqual(got, want) {
		t.Fatalf("flatten order = %v, want %v", got, want)
	}

	set := PathSet(flat)
	if len(set) != 4 {
		t.Fatalf("PathSet size = %d, want 4", len(set))
	}
	if _, ok := set["a/two.tex"]; !ok {
		t.Error("PathSet missing a/two.tex")
	}

	if n := Find(forest, "a/one.tex"); n == nil || n.Name != "one.tex" {
		t.Errorf("Find returned %+v", n)
	}
	if Find(forest, "missing") != nil {
		t.Error("Find invented a node")
	}
	if got := Count(forest); got != 4 {
		t.Errorf("Count = %d, want 4", got)
	}
}

func TestExpandedSetPaths(t *testing.T) {
	s := NewExpandedSet("b", "a", "a/x")
	s.Add("c")
	s.Remove("b")
	want := []models.Path{"a", "a/x", "c"}
	if got := s.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
}
