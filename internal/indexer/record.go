package indexer

import (
	"encoding/base64"
	"time"
	"unicode/utf8"

	"docsync/api/internal/access"
	"docsync/api/internal/store"
)

// Record is the wire representation of one document in the search index.
// Pushes are overwrite-only: the document id is the only identity.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Depth     int       `json:"depth"`
	Path      string    `json:"path"`
	NumChild  int       `json:"numchild"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Users     []string  `json:"users"`
	Groups    []string  `json:"groups"`
	Reach     string    `json:"reach"`
	Size      int       `json:"size"`
	IsActive  bool      `json:"is_active"`
}

// Serialize maps a document and its resolved accesses to a Record. Pure and
// deterministic: principal sets are emitted sorted so re-pushing unchanged
// state produces byte-identical payloads.
func Serialize(doc store.Document, accesses map[string]access.Resolved) Record {
	text := ExtractText(doc.Content)
	resolved := accesses[doc.Path]
	users := resolved.SortedUsers()
	if users == nil {
		users = []string{}
	}
	groups := resolved.SortedTeams()
	if groups == nil {
		groups = []string{}
	}
	return Record{
		ID:        store.FormatID(doc.ID),
		Title:     doc.Title,
		Content:   text,
		Depth:     doc.Depth,
		Path:      doc.Path,
		NumChild:  doc.NumChild,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Users:     users,
		Groups:    groups,
		Reach:     doc.LinkReach,
		Size:      len(text),
		IsActive:  !doc.Deleted(),
	}
}

// ExtractText recovers the searchable plain text from the opaque base64
// content blob. Absent or undecodable content yields an empty string, never
// an error: such documents simply carry no text signal.
func ExtractText(content string) string {
	if content == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return ""
	}
	if !utf8.Valid(decoded) {
		return ""
	}
	return string(decoded)
}
