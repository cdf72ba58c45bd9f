package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"docsync/api/internal/docpath"
)

// MemoryStore is an in-memory implementation of the document store read
// interface. It backs the tests of every package that consumes the store;
// inherited fields are computed on read the same way the Postgres adapter
// derives them.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]Document
	grants []AccessGrant
	traces map[int64][]string // document id -> user subs with a link trace
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		docs:   make(map[int64]Document),
		traces: make(map[int64][]string),
	}
}

// AddDocument inserts a document and returns it with an assigned id.
// LinkReach here is the document's own reach; reads compute the effective
// one.
func (s *MemoryStore) AddDocument(d Document) Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.nextID
	s.nextID++
	if d.LinkReach == "" {
		d.LinkReach = LinkReachRestricted
	}
	if d.Depth == 0 {
		d.Depth = docpath.Depth(d.Path)
	}
	s.docs[d.ID] = d
	return d
}

func (s *MemoryStore) AddGrant(g AccessGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, g)
}

func (s *MemoryStore) AddTrace(documentID int64, userSub string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[documentID] = append(s.traces[documentID], userSub)
}

func (s *MemoryStore) SoftDelete(documentID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[documentID]
	d.DeletedAt = &at
	s.docs[documentID] = d
}

func (s *MemoryStore) Touch(documentID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[documentID]
	d.UpdatedAt = at
	s.docs[documentID] = d
}

// resolved returns the document with inherited fields applied. Caller holds
// the lock.
func (s *MemoryStore) resolved(d Document) Document {
	reach := LinkReachRestricted
	for _, other := range s.docs {
		if !docpath.IsAncestorOrSelf(other.Path, d.Path) {
			continue
		}
		if other.ID != d.ID && other.DeletedAt != nil {
			if d.AncestorsDeletedAt == nil || other.DeletedAt.Before(*d.AncestorsDeletedAt) {
				t := *other.DeletedAt
				d.AncestorsDeletedAt = &t
			}
		}
		switch other.LinkReach {
		case LinkReachPublic:
			reach = LinkReachPublic
		case LinkReachAuthenticated:
			if reach != LinkReachPublic {
				reach = LinkReachAuthenticated
			}
		}
	}
	d.LinkReach = reach
	return d
}

func (s *MemoryStore) ListDocuments(_ context.Context, afterID int64, limit int, scope Scope) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.docs))
	for id := range s.docs {
		if id <= afterID {
			continue
		}
		if scope.UpdatedSince != nil && s.docs[id].UpdatedAt.Before(*scope.UpdatedSince) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	items := make([]Document, 0, len(ids))
	for _, id := range ids {
		items = append(items, s.resolved(s.docs[id]))
	}
	return items, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id int64) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return s.resolved(d), nil
}

func (s *MemoryStore) ListAccessGrants(_ context.Context, paths []string) ([]AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}
	// Only grants on paths that exist as real documents are visible.
	real := make(map[string]bool, len(s.docs))
	for _, d := range s.docs {
		real[d.Path] = true
	}
	grants := make([]AccessGrant, 0)
	for _, g := range s.grants {
		if wanted[g.Path] && real[g.Path] {
			grants = append(grants, g)
		}
	}
	return grants, nil
}

func (s *MemoryStore) hasGrant(req Requester, path string) bool {
	for _, g := range s.grants {
		if !docpath.IsAncestorOrSelf(g.Path, path) {
			continue
		}
		if g.UserSub != "" && g.UserSub == req.Sub {
			return true
		}
		for _, team := range req.Teams {
			if g.Team != "" && g.Team == team {
				return true
			}
		}
	}
	return false
}

func (s *MemoryStore) hasDirectGrant(req Requester, documentID int64) bool {
	path := s.docs[documentID].Path
	for _, g := range s.grants {
		if g.Path != path {
			continue
		}
		if g.UserSub != "" && g.UserSub == req.Sub {
			return true
		}
		for _, team := range req.Teams {
			if g.Team != "" && g.Team == team {
				return true
			}
		}
	}
	return false
}

func (s *MemoryStore) hasTrace(documentID int64, sub string) bool {
	for _, visitor := range s.traces[documentID] {
		if visitor == sub {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListVisitedNotOwned(_ context.Context, req Requester) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Sub == "" {
		return nil, nil
	}
	ids := make([]int64, 0)
	for id, d := range s.docs {
		if !s.hasTrace(id, req.Sub) {
			continue
		}
		if s.resolved(d).Deleted() {
			continue
		}
		if s.hasDirectGrant(req, id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) authorized(req Requester, d Document) bool {
	if s.hasGrant(req, d.Path) {
		return true
	}
	return d.LinkReach != LinkReachRestricted && s.hasTrace(d.ID, req.Sub)
}

func (s *MemoryStore) FilterAuthorized(_ context.Context, req Requester, ids []int64) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ordered := make([]Document, 0, len(ids))
	for _, id := range ids {
		d, ok := s.docs[id]
		if !ok {
			continue
		}
		resolved := s.resolved(d)
		if resolved.Deleted() || !s.authorized(req, resolved) {
			continue
		}
		ordered = append(ordered, resolved)
	}
	return ordered, nil
}

func (s *MemoryStore) SearchAuthorizedByTitle(_ context.Context, req Requester, text string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(text)
	items := make([]Document, 0)
	for _, d := range s.docs {
		resolved := s.resolved(d)
		if resolved.Deleted() || !s.authorized(req, resolved) {
			continue
		}
		if !strings.Contains(strings.ToLower(resolved.Title), needle) {
			continue
		}
		items = append(items, resolved)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}
