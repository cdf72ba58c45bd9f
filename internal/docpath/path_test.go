package docpath

import (
	"reflect"
	"sort"
	"testing"
)

func TestAncestors(t *testing.T) {
	got := Ancestors("000100020003")
	want := []string{"0001", "00010002", "000100020003"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ancestors = %v, want %v", got, want)
	}
}

func TestAncestorsRoot(t *testing.T) {
	got := Ancestors("0001")
	want := []string{"0001"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ancestors = %v, want %v", got, want)
	}
}

func TestAncestorsEmpty(t *testing.T) {
	if got := Ancestors(""); got != nil {
		t.Errorf("Ancestors(\"\") = %v, want nil", got)
	}
}

func TestDepth(t *testing.T) {
	if d := Depth("00010002"); d != 2 {
		t.Errorf("Depth = %d, want 2", d)
	}
}

func TestIsAncestorOrSelf(t *testing.T) {
	cases := []struct {
		ancestor string
		path     string
		want     bool
	}{
		{"0001", "00010002", true},
		{"0001", "0001", true},
		{"00010002", "0001", false},
		{"0002", "00010002", false},
		// Unaligned prefixes must never match: "001" is a string prefix
		// of "00100020" but not a segment boundary.
		{"001", "00100020", false},
		{"", "0001", false},
	}
	for _, c := range cases {
		if got := IsAncestorOrSelf(c.ancestor, c.path); got != c.want {
			t.Errorf("IsAncestorOrSelf(%q, %q) = %v, want %v", c.ancestor, c.path, got, c.want)
		}
	}
}

func TestAncestorToDescendants(t *testing.T) {
	paths := []string{"0001", "00010002", "000100020003", "0004"}
	m := AncestorToDescendants(paths)

	expect := map[string][]string{
		"0001":         {"0001", "00010002", "000100020003"},
		"00010002":     {"00010002", "000100020003"},
		"000100020003": {"000100020003"},
		"0004":         {"0004"},
	}
	if len(m) != len(expect) {
		t.Fatalf("got %d ancestor entries, want %d", len(m), len(expect))
	}
	for ancestor, want := range expect {
		got := append([]string(nil), m[ancestor]...)
		sort.Strings(got)
		sort.Strings(want)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("descendants of %q = %v, want %v", ancestor, got, want)
		}
	}
}

func TestAncestorToDescendantsSelfMapping(t *testing.T) {
	// Every input path must appear among its own ancestors' descendants,
	// otherwise direct grants would be lost during resolution.
	paths := []string{"00010002", "0003"}
	m := AncestorToDescendants(paths)
	for _, path := range paths {
		found := false
		for _, descendant := range m[path] {
			if descendant == path {
				found = true
			}
		}
		if !found {
			t.Errorf("path %q does not map to itself", path)
		}
	}
}
