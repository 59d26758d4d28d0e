// Package hier derives a navigable category tree from the flat item list.
// Category paths are delimiter-separated strings ("Backend > Databases");
// the tree is ephemeral and rebuilt on every refresh, never persisted.
package hier

import "strings"

// Delimiter separates segments in a category path. Segments must not
// contain it.
const Delimiter = " > "

// SplitPath splits a category path into its segments, trimming whitespace
// around each. The empty path yields no segments (the uncategorized
// bucket).
func SplitPath(path string) []string {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	parts := strings.Split(path, Delimiter)
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, strings.TrimSpace(p))
	}
	return segs
}

// JoinPath joins segments into a category path. It is the left inverse of
// SplitPath for segments that contain no delimiter substring.
func JoinPath(segs []string) string {
	return strings.Join(segs, Delimiter)
}

// ParentPath returns the path with the last segment removed, or "" for a
// top-level path.
func ParentPath(path string) string {
	segs := SplitPath(path)
	if len(segs) <= 1 {
		return ""
	}
	return JoinPath(segs[:len(segs)-1])
}

// LeafName returns the last segment of a path, or "" for the empty path.
func LeafName(path string) string {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// ChildPath appends a segment to a parent path. An empty parent yields the
// segment itself as a top-level path.
func ChildPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + Delimiter + name
}
