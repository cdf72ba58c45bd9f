package indexer

import (
	"context"
	"fmt"

	"docsync/api/internal/access"
	"docsync/api/internal/store"
)

const defaultBatchSize = 50

// Source is what the batch indexer needs from the document store: the
// cursor-paged corpus listing plus the grant lookup used for access
// resolution.
type Source interface {
	access.GrantReader
	ListDocuments(ctx context.Context, afterID int64, limit int, scope store.Scope) ([]store.Document, error)
}

// BatchIndexer streams the corpus (or a scoped slice of it) into the index
// backend without holding more than one page in memory.
type BatchIndexer struct {
	source    Source
	backend   Backend
	batchSize int
}

func NewBatchIndexer(source Source, backend Backend, batchSize int) *BatchIndexer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BatchIndexer{source: source, backend: backend, batchSize: batchSize}
}

// Run pages through the documents matching scope in ascending id order,
// resolves each page's accesses, serializes and pushes, and returns how
// many records were pushed. The cursor is the last seen id, so concurrent
// inserts never cause a page to be reprocessed. Any push failure aborts the
// whole run; the caller decides whether to redo the reindex.
func (b *BatchIndexer) Run(ctx context.Context, scope store.Scope) (int, error) {
	var lastID int64
	count := 0
	for {
		batch, err := b.source.ListDocuments(ctx, lastID, b.batchSize, scope)
		if err != nil {
			return count, fmt.Errorf("list batch after id %d: %w", lastID, err)
		}
		if len(batch) == 0 {
			return count, nil
		}
		lastID = batch[len(batch)-1].ID

		paths := make([]string, 0, len(batch))
		for _, doc := range batch {
			paths = append(paths, doc.Path)
		}
		accesses, err := access.ResolveBatch(ctx, b.source, paths)
		if err != nil {
			return count, err
		}

		records := make([]Record, 0, len(batch))
		for _, doc := range batch {
			record := b.backend.Serialize(doc, accesses)
			// A document with neither text nor title carries no
			// searchable signal.
			if record.Content == "" && record.Title == "" {
				continue
			}
			records = append(records, record)
		}
		if len(records) == 0 {
			continue
		}
		if err := b.backend.Push(ctx, records); err != nil {
			return count, err
		}
		count += len(records)
	}
}
