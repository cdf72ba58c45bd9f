// Package docpath implements materialized-path arithmetic for the document
// tree. A document's lineage is encoded as a string of fixed-width segments,
// so ancestry reduces to segment-aligned prefix comparison.
package docpath

import "strings"

// Steplen is the fixed width of one path segment.
const Steplen = 4

// Depth returns the number of segments in path.
func Depth(path string) int {
	return len(path) / Steplen
}

// Ancestors returns every segment-aligned prefix of path, from the root
// segment down to path itself. A document is its own ancestor here: direct
// grants propagate through the same map as inherited ones.
func Ancestors(path string) []string {
	if len(path) < Steplen {
		return nil
	}
	ancestors := make([]string, 0, Depth(path))
	for i := Steplen; i <= len(path); i += Steplen {
		ancestors = append(ancestors, path[:i])
	}
	return ancestors
}

// IsAncestorOrSelf reports whether ancestor is a segment-aligned prefix of
// path. The alignment check keeps a partial segment like "001" from
// matching "00100020".
func IsAncestorOrSelf(ancestor, path string) bool {
	if len(ancestor) == 0 || len(ancestor)%Steplen != 0 {
		return false
	}
	return strings.HasPrefix(path, ancestor)
}

// AncestorToDescendants maps every ancestor path of the given paths to the
// subset of the given paths that descend from it (each path descending from
// itself). The keys are algebraic ancestors; which of them exist as real
// documents is decided later by the grant lookup, which queries by path.
func AncestorToDescendants(paths []string) map[string][]string {
	result := make(map[string][]string)
	for _, path := range paths {
		for _, ancestor := range Ancestors(path) {
			result[ancestor] = append(result[ancestor], path)
		}
	}
	return result
}
