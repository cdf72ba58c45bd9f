package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"docsync/api/internal/access"
	"docsync/api/internal/store"
)

const (
	idxDocuments = "docsync_documents"
	meiliTimeout = 10 * time.Second
)

// MeiliBackend is the Meilisearch implementation of the index backend
// contract, for deployments that run their own engine instead of the Find
// service.
type MeiliBackend struct {
	client meili.ServiceManager
}

// NewMeiliBackend fails fast: an unreachable engine or a rejected settings
// update is a construction error, never a silently misconfigured backend.
func NewMeiliBackend(ctx context.Context, url, apiKey string) (*MeiliBackend, error) {
	if url == "" {
		return nil, fmt.Errorf("meili backend: url must be configured")
	}
	client := meili.New(url,
		meili.WithAPIKey(apiKey),
		// A stalled engine must not hang callers; every deferred indexing
		// job runs behind this client.
		meili.WithCustomClient(&http.Client{Timeout: meiliTimeout}),
	)

	m := &MeiliBackend{client: client}
	if _, err := client.HealthWithContext(ctx); err != nil {
		return nil, fmt.Errorf("meili backend: health check: %w", err)
	}
	if err := m.configureIndex(ctx); err != nil {
		return nil, fmt.Errorf("meili backend: %w", err)
	}
	return m, nil
}

// configureIndex creates the index and declares its attributes. These are
// enqueued as engine-side tasks, so a duplicate index fails in the task,
// not here; the errors surfaced here are transport and auth failures.
func (m *MeiliBackend) configureIndex(ctx context.Context) error {
	if _, err := m.client.CreateIndexWithContext(ctx, &meili.IndexConfig{
		Uid:        idxDocuments,
		PrimaryKey: "id",
	}); err != nil {
		return fmt.Errorf("create index %s: %w", idxDocuments, err)
	}

	index := m.client.Index(idxDocuments)
	filterable := []interface{}{"users", "groups", "reach", "is_active"}
	if _, err := index.UpdateFilterableAttributesWithContext(ctx, &filterable); err != nil {
		return fmt.Errorf("update filterable attributes: %w", err)
	}
	searchable := []string{"title", "content"}
	if _, err := index.UpdateSearchableAttributesWithContext(ctx, &searchable); err != nil {
		return fmt.Errorf("update searchable attributes: %w", err)
	}
	sortable := []string{"updated_at"}
	if _, err := index.UpdateSortableAttributesWithContext(ctx, &sortable); err != nil {
		return fmt.Errorf("update sortable attributes: %w", err)
	}
	return nil
}

func (m *MeiliBackend) Serialize(doc store.Document, accesses map[string]access.Resolved) Record {
	return Serialize(doc, accesses)
}

func (m *MeiliBackend) Push(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := m.client.Index(idxDocuments).AddDocumentsWithContext(ctx, records, nil); err != nil {
		return fmt.Errorf("meili push: %w", err)
	}
	return nil
}

// Query returns document ids in Meilisearch's relevance order. Visibility
// is not filtered at the engine; reconciliation against the store drops
// anything the requester may not see.
func (m *MeiliBackend) Query(ctx context.Context, params QueryParams) ([]string, error) {
	resp, err := m.client.MultiSearchWithContext(ctx, &meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID: idxDocuments,
			Query:    params.Text,
			Limit:    int64(params.PageSize),
			Offset:   int64((params.PageNumber - 1) * params.PageSize),
			Filter:   []string{"is_active = true"},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("meili query: %w", err)
	}

	var ids []string
	for _, result := range resp.Results {
		for _, hit := range result.Hits {
			if id := decodeHitID(hit); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func decodeHitID(hit meili.Hit) string {
	raw, ok := hit["id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}
