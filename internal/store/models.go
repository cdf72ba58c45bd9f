package store

import (
	"strconv"
	"time"
)

// FormatID renders a document id the way external systems see it.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID converts an external document id back to its internal form.
func ParseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// Link reach tiers, from most to least restrictive.
const (
	LinkReachRestricted    = "restricted"
	LinkReachAuthenticated = "authenticated"
	LinkReachPublic        = "public"
)

// Document is a read-only snapshot of a node in the document tree. The tree
// itself (CRUD, soft delete, permissions) is owned by the document store;
// this service only reads.
type Document struct {
	ID        int64
	Path      string
	Title     string
	Content   string // opaque base64 blob, empty when absent
	Depth     int
	NumChild  int
	CreatedAt time.Time
	UpdatedAt time.Time
	// LinkReach is the effective reach after ancestor inheritance, as
	// computed by the store.
	LinkReach          string
	DeletedAt          *time.Time
	AncestorsDeletedAt *time.Time
}

// Deleted reports whether the document or any of its ancestors is
// soft-deleted.
func (d Document) Deleted() bool {
	return d.DeletedAt != nil || d.AncestorsDeletedAt != nil
}

// AccessGrant ties a principal to a document path. Exactly one of UserSub
// and Team is set.
type AccessGrant struct {
	Path    string
	UserSub string
	Team    string
}

// Requester identifies the principal performing a search.
type Requester struct {
	Sub   string
	Teams []string
}

// Scope narrows a corpus listing, e.g. to documents touched since a
// timestamp. The zero value means the whole corpus.
type Scope struct {
	UpdatedSince *time.Time
}
