package models

import "testing"

func TestClean(t *testing.T) {
	cases := []struct {
		raw  string
		want Path
	}{
		{"", Root},
		{"/", Root},
		{"main.tex", "main.tex"},
		{"/figures/plot.png", "figures/plot.png"},
		{"figures/plot.png/", "figures/plot.png"},
		{"a//b", "a/b"},
		{"./a/./b", "a/b"},
		{"///", Root},
	}
	for _, c := range cases {
		if got := Clean(c.raw); got != c.want {
			t.Errorf("Clean(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestJoinParentBase(t *testing.T) {
	if got := Root.Join("main.tex"); got != "main.tex" {
		t.Errorf("root join: got %q", got)
	}
	if got := Path("chapters").Join("intro.tex"); got != "chapters/intro.tex" {
		t.Errorf("nested join: got %q", got)
	}

	cases := []struct {
		p      Path
		parent Path
		base   string
		depth  int
	}{
		{Root, Root, "", 0},
		{"main.tex", Root, "main.tex", 1},
		{"figures/plot.png", "figures", "plot.png", 2},
		{"a/b/c", "a/b", "c", 3},
	}
	for _, c := range cases {
		if got := c.p.Parent(); got != c.parent {
			t.Errorf("%q.Parent() = %q, want %q", c.p, got, c.parent)
		}
		if got := c.p.BaseName(); got != c.base {
			t.Errorf("%q.BaseName() = %q, want %q", c.p, got, c.base)
		}
		if got := c.p.Depth(); got != c.depth {
			t.Errorf("%q.Depth() = %d, want %d", c.p, got, c.depth)
		}
	}
}

func TestIsDescendantOf(t *testing.T) {
	cases := []struct {
		p, ancestor Path
		want        bool
	}{
		{"a/b", "a", true},
		{"a/b/c", "a", true},
		{"a", "a", false},
		{"ab", "a", false}, // sibling with shared prefix
		{"a", "a/b", false},
		{"a", Root, true},
		{Root, Root, false},
		{Root, "a", false},
	}
	for _, c := range cases {
		if got := c.p.IsDescendantOf(c.ancestor); got != c.want {
			t.Errorf("%q.IsDescendantOf(%q) = %v, want %v", c.p, c.ancestor, got, c.want)
		}
	}
}

func TestRebase(t *testing.T) {
	cases := []struct {
		p, from, to Path
		want        Path
	}{
		{"a/b/c", "a", "x", "x/b/c"},
		{"a", "a", "x", "x"},
		{"a/b", "a/b", "c/d", "c/d"},
		{"other", "a", "x", "other"},
		{"a/b", Root, "p", "p/a/b"},
	}
	for _, c := range cases {
		if got := c.p.Rebase(c.from, c.to); got != c.want {
			t.Errorf("%q.Rebase(%q, %q) = %q, want %q", c.p, c.from, c.to, got, c.want)
		}
	}
}
