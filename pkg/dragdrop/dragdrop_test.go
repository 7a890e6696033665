package dragdrop

import (
	"testing"

	"github.com/galleylabs/galley/pkg/models"
)

func TestIsValidDrop(t *testing.T) {
	cases := []struct {
		name   string
		source models.Path
		target models.Path
		want   bool
	}{
		{"onto itself", "figures", "figures", false},
		{"into own child", "figures", "figures/old", false},
		{"into own grandchild", "a", "a/b/c", false},
		{"into sibling", "figures/plot.png", "chapters", true},
		{"into current parent", "figures/plot.png", "figures", true},
		{"file into root", "figures/plot.png", models.Root, true},
		{"shared name prefix is not ancestry", "fig", "figures", true},
		{"dir into unrelated deep dir", "figures", "chapters/appendix", true},
		{"root anywhere", models.Root, "figures", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsValidDrop(c.source, c.target); got != c.want {
				t.Fatalf("IsValidDrop(%q, %q) = %v, want %v", c.source, c.target, got, c.want)
			}
		})
	}
}

// Validity is anti-reflexive and anti-ancestral for any path.
func TestDropProperties(t *testing.T) {
	paths := []models.Path{"a", "a/b", "a/b/c", "x", "x/y"}
	for _, p := range paths {
		if IsValidDrop(p, p) {
			t.Errorf("IsValidDrop(%q, %q) must be false", p, p)
		}
		for _, q := range paths {
			if q.IsDescendantOf(p) && IsValidDrop(p, q) {
				t.Errorf("IsValidDrop(%q, %q) must be false for a descendant target", p, q)
			}
		}
	}
}

func TestCanDropAll(t *testing.T) {
	sources := []models.Path{"a/one.tex", "a/two.tex"}
	if !CanDropAll(sources, "b") {
		t.Fatal("valid multi-drop rejected")
	}
	if CanDropAll([]models.Path{"a/one.tex", "b"}, "b/inner") {
		t.Fatal("multi-drop with one invalid source accepted")
	}
	if CanDropAll(nil, "b") {
		t.Fatal("empty drag accepted")
	}
}
