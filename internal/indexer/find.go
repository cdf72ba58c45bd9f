package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"docsync/api/internal/access"
	"docsync/api/internal/store"
)

const findTimeout = 10 * time.Second

// FindBackend pushes records to and queries the Find search service over
// its JSON-over-HTTP contract.
type FindBackend struct {
	indexURL string
	queryURL string
	secret   string
	client   *http.Client
}

// NewFindBackend fails fast when any part of the configuration is missing:
// a half-configured backend must never be silently degraded into the
// disabled state.
func NewFindBackend(indexURL, queryURL, secret string) (*FindBackend, error) {
	if indexURL == "" {
		return nil, errors.New("find backend: index url must be configured")
	}
	if queryURL == "" {
		return nil, errors.New("find backend: query url must be configured")
	}
	if secret == "" {
		return nil, errors.New("find backend: secret must be configured")
	}
	return &FindBackend{
		indexURL: indexURL,
		queryURL: queryURL,
		secret:   secret,
		// An unbounded call would stall every deferred indexing job
		// behind it.
		client: &http.Client{Timeout: findTimeout},
	}, nil
}

func (f *FindBackend) Serialize(doc store.Document, accesses map[string]access.Resolved) Record {
	return Serialize(doc, accesses)
}

// Push sends a batch of records. Any non-2xx response is logged with its
// body and returned as an error; nothing is retried here.
func (f *FindBackend) Push(ctx context.Context, records []Record) error {
	if _, err := f.post(ctx, f.indexURL, records); err != nil {
		return fmt.Errorf("push %d records: %w", len(records), err)
	}
	return nil
}

type findQuery struct {
	Q              string   `json:"q"`
	Visited        []string `json:"visited"`
	Services       []string `json:"services"`
	PageNumber     int      `json:"page_number"`
	PageSize       int      `json:"page_size"`
	OrderBy        string   `json:"order_by"`
	OrderDirection string   `json:"order_direction"`
}

type findHit struct {
	ID string `json:"_id"`
}

// Query returns matching document ids in the order chosen by the engine.
func (f *FindBackend) Query(ctx context.Context, params QueryParams) ([]string, error) {
	visited := params.Visited
	if visited == nil {
		visited = []string{}
	}
	body, err := f.post(ctx, f.queryURL, findQuery{
		Q:              params.Text,
		Visited:        visited,
		Services:       []string{"docs"},
		PageNumber:     params.PageNumber,
		PageSize:       params.PageSize,
		OrderBy:        "updated_at",
		OrderDirection: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", params.Text, err)
	}

	var hits []findHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (f *FindBackend) post(ctx context.Context, url string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.secret)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("indexer: %s returned %d: %s", url, resp.StatusCode, body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read response: %w", readErr)
	}
	return body, nil
}
