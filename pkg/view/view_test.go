package view

import (
	"reflect"
	"testing"
	"time"

	"github.com/galleylabs/galley/pkg/models"
)

func file(name string) *models.TreeNode {
	return &models.TreeNode{Entry: models.Entry{Name: name}, Path: models.Path(name)}
}

func sized(name string, size int64) *models.TreeNode {
	n := file(name)
	n.Size = size
	return n
}

func dated(name string, mod time.Time) *models.TreeNode {
	n := file(name)
	n.ModTime = mod
	return n
}

// folder is loaded; with no children it is loaded-and-empty.
func folder(name string, children ...*models.TreeNode) *models.TreeNode {
	if children == nil {
		children = []*models.TreeNode{}
	}
	return &models.TreeNode{
		Entry:    models.Entry{Name: name, IsDir: true},
		Path:     models.Path(name),
		Children: children,
	}
}

func unloaded(name string) *models.TreeNode {
	return &models.TreeNode{Entry: models.Entry{Name: name, IsDir: true}, Path: models.Path(name)}
}

func names(nodes []*models.TreeNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestHiddenFilter(t *testing.T) {
	forest := []*models.TreeNode{
		file(".gitignore"),
		folder(".cache", file("inner.tex")),
		folder("src", file(".hidden.tex"), file("main.tex")),
	}

	got := Apply(forest, DefaultOptions())
	if !reflect.DeepEqual(names(got), []string{"src"}) {
		t.Fatalf("top level = %v, want [src]", names(got))
	}
	if !reflect.DeepEqual(names(got[0].Children), []string{"main.tex"}) {
		t.Fatalf("src children = %v, want [main.tex]", names(got[0].Children))
	}

	o := DefaultOptions()
	o.ShowHidden = true
	got = Apply(forest, o)
	if len(got) != 3 {
		t.Fatalf("ShowHidden dropped nodes: %v", names(got))
	}
}

func TestTypeFilter(t *testing.T) {
	forest := []*models.TreeNode{
		file("main.tex"),
		file("PLOT.PNG"), // extension match is case-insensitive
		folder("figs", file("a.png"), file("notes.txt")),
		folder("onlytext", file("readme.txt")),
		folder("empty"),
		unloaded("pending"),
	}

	o := DefaultOptions()
	o.Types = TypeImage
	got := Apply(forest, o)

	// Sorted output: dirs first (figs, pending), then files.
	want := []string{"figs", "pending", "PLOT.PNG"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("image filter = %v, want %v", names(got), want)
	}
	if !reflect.DeepEqual(names(got[0].Children), []string{"a.png"}) {
		t.Fatalf("figs children = %v, want [a.png]", names(got[0].Children))
	}
	// A loaded directory with no matching descendant disappears; an
	// unloaded one stays because its contents are unknown.
	for _, n := range got {
		if n.Name == "onlytext" || n.Name == "empty" {
			t.Fatalf("%s survived the image filter", n.Name)
		}
	}
}

// The normative end-to-end example: a project with main.tex at the
// root and an expanded figs directory containing a.png, viewed through
// the image filter.
func TestTypeFilterEndToEnd(t *testing.T) {
	forest := []*models.TreeNode{
		file("main.tex"),
		folder("figs", file("a.png")),
	}
	o := DefaultOptions()
	o.Types = TypeImage
	got := Apply(forest, o)

	if !reflect.DeepEqual(names(got), []string{"figs"}) {
		t.Fatalf("got %v, want figs only", names(got))
	}
	if !reflect.DeepEqual(names(got[0].Children), []string{"a.png"}) {
		t.Fatalf("figs children = %v, want [a.png]", names(got[0].Children))
	}
}

func TestSearchFilter(t *testing.T) {
	forest := []*models.TreeNode{
		folder("chapters",
			file("intro.tex"),
			folder("appendix", file("tables.tex")),
		),
		folder("figures", file("plot.png")),
		file("Intro-notes.md"),
	}

	o := DefaultOptions()
	o.Query = "intro"
	got := Apply(forest, o)

	// chapters survives as the ancestor chain of intro.tex; figures has
	// no match anywhere and disappears; matching is case-insensitive.
	want := []string{"chapters", "Intro-notes.md"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("search = %v, want %v", names(got), want)
	}
	if !reflect.DeepEqual(names(got[0].Children), []string{"intro.tex"}) {
		t.Fatalf("chapters children = %v, want [intro.tex]", names(got[0].Children))
	}
}

func TestSearchKeepsMatchingDirWithoutMatchingChildren(t *testing.T) {
	forest := []*models.TreeNode{
		folder("figures", file("plot.png")),
	}
	o := DefaultOptions()
	o.Query = "figur"
	got := Apply(forest, o)

	if len(got) != 1 || got[0].Name != "figures" {
		t.Fatalf("matching dir dropped: %v", names(got))
	}
	if len(got[0].Children) != 0 {
		t.Fatalf("non-matching children kept: %v", names(got[0].Children))
	}
	if got[0].Children == nil {
		t.Fatal("loaded dir lost its loaded marker")
	}
}

func TestEmptyQueryIsIdentity(t *testing.T) {
	forest := []*models.TreeNode{
		folder("b", file("x.tex")),
		file("a.tex"),
	}
	o := DefaultOptions()
	o.Query = ""
	withQuery := Apply(forest, o)
	without := Apply(forest, DefaultOptions())
	if !reflect.DeepEqual(withQuery, without) {
		t.Fatal("empty query changed the output")
	}
}

func TestPipelineOrderHiddenBeforeSearch(t *testing.T) {
	forest := []*models.TreeNode{
		file(".intro-secret.tex"),
		file("intro.tex"),
	}
	o := DefaultOptions()
	o.Query = "intro"
	got := Apply(forest, o)

	if !reflect.DeepEqual(names(got), []string{"intro.tex"}) {
		t.Fatalf("hidden file leaked through search: %v", names(got))
	}
}

func TestSortByName(t *testing.T) {
	forest := []*models.TreeNode{
		file("zeta.tex"),
		folder("beta"),
		file("Alpha.tex"),
		folder("alpha"),
	}
	got := Apply(forest, DefaultOptions())
	want := []string{"alpha", "beta", "Alpha.tex", "zeta.tex"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("asc = %v, want %v", names(got), want)
	}

	o := DefaultOptions()
	o.Order = Descending
	got = Apply(forest, o)
	want = []string{"beta", "alpha", "zeta.tex", "Alpha.tex"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("desc = %v, want %v", names(got), want)
	}
}

func TestSortBySizeAndDate(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	forest := []*models.TreeNode{
		sized("big.pdf", 300),
		sized("small.tex", 10),
		sized("mid.bib", 50),
	}
	o := DefaultOptions()
	o.SortBy = SortBySize
	got := Apply(forest, o)
	if want := []string{"small.tex", "mid.bib", "big.pdf"}; !reflect.DeepEqual(names(got), want) {
		t.Fatalf("size asc = %v, want %v", names(got), want)
	}

	forest = []*models.TreeNode{
		dated("old.tex", t0),
		dated("new.tex", t0.Add(48*time.Hour)),
		dated("mid.tex", t0.Add(time.Hour)),
	}
	o.SortBy = SortByDate
	o.Order = Descending
	got = Apply(forest, o)
	if want := []string{"new.tex", "mid.tex", "old.tex"}; !reflect.DeepEqual(names(got), want) {
		t.Fatalf("date desc = %v, want %v", names(got), want)
	}
}

func TestSortRecursesAndTiebreaks(t *testing.T) {
	forest := []*models.TreeNode{
		folder("src",
			sized("b.tex", 5),
			sized("a.tex", 5), // size tie broken by name
		),
	}
	o := DefaultOptions()
	o.SortBy = SortBySize
	got := Apply(forest, o)
	if want := []string{"a.tex", "b.tex"}; !reflect.DeepEqual(names(got[0].Children), want) {
		t.Fatalf("children = %v, want %v", names(got[0].Children), want)
	}
}

func TestDirsBeforeFilesForEveryKeyAndOrder(t *testing.T) {
	forest := []*models.TreeNode{
		sized("aaa.tex", 1),
		folder("zzz"),
		sized("bbb.png", 999),
		folder("mmm"),
	}
	for _, key := range []SortKey{SortByName, SortBySize, SortByDate} {
		for _, order := range []SortOrder{Ascending, Descending} {
			o := DefaultOptions()
			o.SortBy = key
			o.Order = order
			got := Apply(forest, o)
			seenFile := false
			for _, n := range got {
				if !n.IsDir {
					seenFile = true
				} else if seenFile {
					t.Fatalf("key=%s order=%s: dir after file: %v", key, order, names(got))
				}
			}
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	inner := []*models.TreeNode{file("z.tex"), file(".dot"), file("a.tex")}
	forest := []*models.TreeNode{folder("d", inner...), file("b.tex")}

	o := DefaultOptions()
	o.Query = "tex"
	_ = Apply(forest, o)

	if forest[0].Name != "d" || forest[1].Name != "b.tex" {
		t.Fatal("top-level order mutated")
	}
	got := names(forest[0].Children)
	if !reflect.DeepEqual(got, []string{"z.tex", ".dot", "a.tex"}) {
		t.Fatalf("input children mutated: %v", got)
	}
}
