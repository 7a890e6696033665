package view

import (
	"sort"
	"strings"

	"github.com/galleylabs/galley/pkg/models"
)

// sortForest sorts every level of the forest into a new forest.
// Directories come before files no matter the key or the order;
// descending negates the comparator, not the dirs-first rule. Equal
// elements keep their incoming order.
func sortForest(nodes []*models.TreeNode, key SortKey, order SortOrder) []*models.TreeNode {
	out := make([]*models.TreeNode, len(nodes))
	for i, n := range nodes {
		if n.Children != nil {
			c := n.Clone()
			c.Children = sortForest(n.Children, key, order)
			out[i] = c
		} else {
			out[i] = n
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return nodeLess(out[i], out[j], key, order)
	})
	return out
}

func nodeLess(a, b *models.TreeNode, key SortKey, order SortOrder) bool {
	if a.IsDir != b.IsDir {
		return a.IsDir
	}
	c := compareNodes(a, b, key)
	if c == 0 {
		return false
	}
	if order == Descending {
		return c > 0
	}
	return c < 0
}

// compareNodes compares by the sort key with a name tiebreak, so that
// equal sizes or timestamps still produce a deterministic order.
func compareNodes(a, b *models.TreeNode, key SortKey) int {
	switch key {
	case SortBySize:
		if a.Size != b.Size {
			if a.Size < b.Size {
				return -1
			}
			return 1
		}
	case SortByDate:
		if !a.ModTime.Equal(b.ModTime) {
			if a.ModTime.Before(b.ModTime) {
				return -1
			}
			return 1
		}
	}
	return compareNames(a.Name, b.Name)
}

// compareNames orders case-insensitively, falling back to the raw
// bytes so "A.tex" and "a.tex" stay distinguishable.
func compareNames(a, b string) int {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return strings.Compare(la, lb)
	}
	return strings.Compare(a, b)
}
