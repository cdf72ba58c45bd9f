package store

import (
	"strings"
	"testing"
)

// docSelectColumns parses the output column names of docSelect's select
// list: for each top-level expression, the trailing identifier (alias or
// bare column) is the name the derived table exposes.
func docSelectColumns(t *testing.T) map[string]bool {
	t.Helper()
	start := strings.Index(docSelect, "SELECT")
	end := strings.LastIndex(docSelect, "FROM")
	if start < 0 || end < start {
		t.Fatalf("docSelect has no select list")
	}
	list := docSelect[start+len("SELECT") : end]

	cols := make(map[string]bool)
	depth := 0
	var expr strings.Builder
	flush := func() {
		fields := strings.Fields(expr.String())
		expr.Reset()
		if len(fields) == 0 {
			return
		}
		name := fields[len(fields)-1]
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		cols[strings.ToLower(name)] = true
	}
	for _, r := range list {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				flush()
				continue
			}
		}
		expr.WriteRune(r)
	}
	flush()
	return cols
}

// The fallback search and the authorization filter wrap docSelect in a
// derived table and reference its columns by name, so an unaliased
// expression (whose output name Postgres derives from the function, not
// the argument) breaks those queries at prepare time.
func TestDocSelectNamesEveryReferencedColumn(t *testing.T) {
	cols := docSelectColumns(t)
	referenced := []string{
		"id", "path", "title", "content", "depth", "numchild",
		"created_at", "updated_at", "link_reach",
		"deleted_at", "ancestors_deleted_at",
	}
	for _, name := range referenced {
		if !cols[name] {
			t.Errorf("docSelect does not expose a column named %q", name)
		}
	}
	if len(cols) != len(referenced) {
		t.Errorf("docSelect exposes %d columns, want %d: %v", len(cols), len(referenced), cols)
	}
}
