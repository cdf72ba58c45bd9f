package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docsync/api/internal/access"
	"docsync/api/internal/auth"
	"docsync/api/internal/config"
	"docsync/api/internal/indexer"
	"docsync/api/internal/search"
	"docsync/api/internal/store"
)

type stubBackend struct {
	ids    []string
	pushes int
}

func (b *stubBackend) Serialize(doc store.Document, accesses map[string]access.Resolved) indexer.Record {
	return indexer.Serialize(doc, accesses)
}

func (b *stubBackend) Push(_ context.Context, _ []indexer.Record) error {
	b.pushes++
	return nil
}

func (b *stubBackend) Query(_ context.Context, _ indexer.QueryParams) ([]string, error) {
	return b.ids, nil
}

func testConfig() config.Config {
	return config.Config{
		TokenSecret: "test-token-secret",
		SyncToken:   "test-sync-token",
	}
}

func newTestServer(t *testing.T, mem *store.MemoryStore, backend indexer.Backend) *HTTPServer {
	t.Helper()
	cfg := testConfig()
	searchService := search.NewService(mem, backend)
	var reindexer *indexer.BatchIndexer
	if backend != nil {
		reindexer = indexer.NewBatchIndexer(mem, backend, 10)
	}
	return NewHTTPServer(New(cfg, searchService, reindexer, nil))
}

func authHeader(t *testing.T, sub string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-token-secret"), auth.Claims{
		Sub: sub,
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return "Bearer " + token
}

func doRequest(server *HTTPServer, method, target, authorization string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSearchRequiresAuth(t *testing.T) {
	server := newTestServer(t, store.NewMemoryStore(), &stubBackend{})
	rec := doRequest(server, http.MethodGet, "/api/documents/search?q=alpha", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSearchValidation(t *testing.T) {
	server := newTestServer(t, store.NewMemoryStore(), &stubBackend{})
	authz := authHeader(t, "alice")

	cases := []struct {
		name   string
		target string
	}{
		{"missing q", "/api/documents/search"},
		{"blank q", "/api/documents/search?q=%20%20"},
		{"non-integer page", "/api/documents/search?q=alpha&page=NaN"},
		{"zero page", "/api/documents/search?q=alpha&page=0"},
		{"bad page size", "/api/documents/search?q=alpha&page_size=x"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(server, http.MethodGet, c.target, authz, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSearchReturnsAuthorizedResultsInEngineOrder(t *testing.T) {
	mem := store.NewMemoryStore()
	d1 := mem.AddDocument(store.Document{Path: "0001", Title: "one"})
	d2 := mem.AddDocument(store.Document{Path: "0002", Title: "two"})
	d3 := mem.AddDocument(store.Document{Path: "0003", Title: "three"})
	mem.AddGrant(store.AccessGrant{Path: d1.Path, UserSub: "alice"})
	mem.AddGrant(store.AccessGrant{Path: d3.Path, UserSub: "alice"})

	backend := &stubBackend{ids: []string{
		store.FormatID(d3.ID), store.FormatID(d1.ID), store.FormatID(d2.ID),
	}}
	server := newTestServer(t, mem, backend)

	rec := doRequest(server, http.MethodGet, "/api/documents/search?q=alpha", authHeader(t, "alice"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var payload struct {
		Count   int `json:"count"`
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 2 || len(payload.Results) != 2 {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Results[0].ID != store.FormatID(d3.ID) || payload.Results[1].ID != store.FormatID(d1.ID) {
		t.Errorf("result order = %v", payload.Results)
	}
}

func TestSearchPageOutOfRangeIsNotFound(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := mem.AddDocument(store.Document{Path: "0001", Title: "one"})
	mem.AddGrant(store.AccessGrant{Path: doc.Path, UserSub: "alice"})
	backend := &stubBackend{ids: []string{store.FormatID(doc.ID)}}
	server := newTestServer(t, mem, backend)

	rec := doRequest(server, http.MethodGet, "/api/documents/search?q=alpha&page=4", authHeader(t, "alice"), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSearchFallbackWithoutBackend(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := mem.AddDocument(store.Document{Path: "0001", Title: "alpha report", UpdatedAt: time.Now()})
	mem.AddGrant(store.AccessGrant{Path: doc.Path, UserSub: "alice"})
	server := newTestServer(t, mem, nil)

	rec := doRequest(server, http.MethodGet, "/api/documents/search?q=alpha", authHeader(t, "alice"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 1 {
		t.Errorf("count = %d, want 1", payload.Count)
	}
}

func TestReindexRequiresSyncToken(t *testing.T) {
	server := newTestServer(t, store.NewMemoryStore(), &stubBackend{})

	rec := doRequest(server, http.MethodPost, "/api/search/reindex", "Bearer wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestReindexPushesCorpus(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.AddDocument(store.Document{Path: "0001", Title: "one"})
	mem.AddDocument(store.Document{Path: "0002", Title: "two"})
	backend := &stubBackend{}
	server := newTestServer(t, mem, backend)

	rec := doRequest(server, http.MethodPost, "/api/search/reindex", "Bearer test-sync-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 2 {
		t.Errorf("count = %d, want 2", payload.Count)
	}
	if backend.pushes == 0 {
		t.Error("no pushes performed")
	}
}

func TestReindexDisabled(t *testing.T) {
	server := newTestServer(t, store.NewMemoryStore(), nil)

	rec := doRequest(server, http.MethodPost, "/api/search/reindex", "Bearer test-sync-token", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestDocumentChangedValidation(t *testing.T) {
	server := newTestServer(t, store.NewMemoryStore(), &stubBackend{})

	rec := doRequest(server, http.MethodPost, "/api/documents/changed", "Bearer test-sync-token", `{"id": "abc"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = doRequest(server, http.MethodPost, "/api/documents/changed", "Bearer test-sync-token", `{"id": "7"}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}
