// Package indexer keeps the external search index synchronized with the
// document store: it serializes documents together with their resolved
// accesses and pushes them to a configured backend, in batches for a full
// reindex or one at a time after a change.
package indexer

import (
	"context"

	"docsync/api/internal/access"
	"docsync/api/internal/store"
)

// QueryParams describes one search query against the index backend.
type QueryParams struct {
	Text       string
	Visited    []string
	PageNumber int
	PageSize   int
}

// Backend is the capability contract of a search index backend: turn a
// document into its index record, push a batch, and query for matching
// document ids in the engine's own relevance order. The Find HTTP service
// and Meilisearch are the concrete implementations; tests supply fakes.
type Backend interface {
	Serialize(doc store.Document, accesses map[string]access.Resolved) Record
	Push(ctx context.Context, records []Record) error
	Query(ctx context.Context, params QueryParams) ([]string, error)
}
