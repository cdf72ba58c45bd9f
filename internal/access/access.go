// Package access resolves which principals can see which documents,
// aggregating direct grants with grants inherited from ancestor documents.
package access

import (
	"context"
	"fmt"
	"sort"

	"docsync/api/internal/docpath"
	"docsync/api/internal/store"
)

// Resolved holds the principals with access to one document path: the union
// of its own grants and every ancestor grant found in the pass.
type Resolved struct {
	Users map[string]struct{}
	Teams map[string]struct{}
}

func newResolved() Resolved {
	return Resolved{
		Users: make(map[string]struct{}),
		Teams: make(map[string]struct{}),
	}
}

// SortedUsers returns the user subs in stable order.
func (r Resolved) SortedUsers() []string {
	return sortedKeys(r.Users)
}

// SortedTeams returns the team names in stable order.
func (r Resolved) SortedTeams() []string {
	return sortedKeys(r.Teams)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GrantReader fetches access grants for a set of document paths in one
// query. Grants are only returned for paths that exist as real documents.
type GrantReader interface {
	ListAccessGrants(ctx context.Context, paths []string) ([]store.AccessGrant, error)
}

// ResolveBatch computes the resolved access for every path in paths. Grants
// on an ancestor propagate to each input path below it; a path with no
// grants anywhere resolves to empty sets. The lookup queries ancestor paths
// directly in the store, so resolution stays correct even when a batch
// boundary separates a document from its ancestors.
func ResolveBatch(ctx context.Context, grants GrantReader, paths []string) (map[string]Resolved, error) {
	ancestorMap := docpath.AncestorToDescendants(paths)
	ancestorPaths := make([]string, 0, len(ancestorMap))
	for ancestor := range ancestorMap {
		ancestorPaths = append(ancestorPaths, ancestor)
	}
	sort.Strings(ancestorPaths)

	rows, err := grants.ListAccessGrants(ctx, ancestorPaths)
	if err != nil {
		return nil, fmt.Errorf("resolve accesses: %w", err)
	}

	resolved := make(map[string]Resolved, len(paths))
	for _, path := range paths {
		resolved[path] = newResolved()
	}
	for _, grant := range rows {
		for _, descendant := range ancestorMap[grant.Path] {
			entry := resolved[descendant]
			if grant.UserSub != "" {
				entry.Users[grant.UserSub] = struct{}{}
			}
			if grant.Team != "" {
				entry.Teams[grant.Team] = struct{}{}
			}
		}
	}
	return resolved, nil
}
