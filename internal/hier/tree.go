package hier

import (
	"sort"

	"lattice/internal/items"
)

// Node is a single category in the derived tree.
type Node struct {
	Name     string           `json:"name"`
	FullPath string           `json:"full_path"`
	Direct   []items.Item     `json:"direct_items,omitempty"`
	Children map[string]*Node `json:"children,omitempty"`
	// Total is len(Direct) plus the Total of every child, recomputed on
	// every rebuild.
	Total int `json:"total"`
}

// Forest maps top-level category names to their nodes.
type Forest map[string]*Node

// UncategorizedName labels the implicit bucket for items with an empty
// category path. It is kept out of the forest proper so it never nests.
const UncategorizedName = "Uncategorized"

// GroupByPath folds the flat item list into a map from exact category path
// to the items assigned to it. Buckets with no items do not appear.
func GroupByPath(list []items.Item) map[string][]items.Item {
	byPath := make(map[string][]items.Item)
	for _, it := range list {
		byPath[it.CategoryPath] = append(byPath[it.CategoryPath], it)
	}
	return byPath
}

// Build folds a path → items mapping into a forest. For each path, nodes
// are created for every prefix not yet present; the path's items attach as
// direct items only on the terminal node. An empty path is an implicit
// uncategorized bucket and becomes a top-level node of its own.
func Build(byPath map[string][]items.Item) Forest {
	forest := make(Forest)
	for path, list := range byPath {
		segs := SplitPath(path)
		if len(segs) == 0 {
			segs = []string{UncategorizedName}
		}

		var node *Node
		children := map[string]*Node(forest)
		full := ""
		for _, seg := range segs {
			full = ChildPath(full, seg)
			child, ok := children[seg]
			if !ok {
				child = &Node{
					Name:     seg,
					FullPath: full,
					Children: make(map[string]*Node),
				}
				children[seg] = child
			}
			node = child
			children = node.Children
		}
		node.Direct = append(node.Direct, list...)
	}
	return forest
}

// ComputeCounts walks the node post-order, setting Total on it and every
// descendant, and returns the node's own total. Iteration order over
// children cannot affect the result: totals are sums.
func ComputeCounts(n *Node) int {
	total := len(n.Direct)
	for _, child := range n.Children {
		total += ComputeCounts(child)
	}
	n.Total = total
	return total
}

// Dedupe removes top-level nodes whose name also appears as a subcategory
// anywhere in the forest, unless the node owns direct items. This resolves
// ambiguous flat category strings ("Foo" vs "Bar > Foo") without losing
// real content.
func (f Forest) Dedupe() Forest {
	nested := make(map[string]struct{})
	var collect func(n *Node)
	collect = func(n *Node) {
		for name, child := range n.Children {
			nested[name] = struct{}{}
			collect(child)
		}
	}
	for _, root := range f {
		collect(root)
	}

	for name, root := range f {
		if _, dup := nested[name]; dup && len(root.Direct) == 0 {
			delete(f, name)
		}
	}
	return f
}

// BuildTree derives the complete display forest from a flat item list:
// group, build, count, then de-duplicate. Counting runs before dedupe;
// the dedupe decision itself depends only on direct items.
func BuildTree(list []items.Item) Forest {
	forest := Build(GroupByPath(list))
	for _, root := range forest {
		ComputeCounts(root)
	}
	return forest.Dedupe()
}

// Lookup finds the node with exactly the given full path, or nil. This is
// deliberately not a prefix match.
func (f Forest) Lookup(path string) *Node {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return f[UncategorizedName]
	}
	children := map[string]*Node(f)
	var node *Node
	for _, seg := range segs {
		child, ok := children[seg]
		if !ok {
			return nil
		}
		node = child
		children = node.Children
	}
	return node
}

// Roots returns the top-level nodes sorted by name, for stable rendering.
func (f Forest) Roots() []*Node {
	roots := make([]*Node, 0, len(f))
	for _, n := range f {
		roots = append(roots, n)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	return roots
}

// SortedChildren returns a node's children sorted by name.
func (n *Node) SortedChildren() []*Node {
	kids := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		kids = append(kids, c)
	}
	sort.Slice(kids, func(i, j int) bool { return kids[i].Name < kids[j].Name })
	return kids
}
