package app

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docsync/api/internal/auth"
	"docsync/api/internal/search"
	"docsync/api/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type HTTPServer struct {
	service *Service
}

func NewHTTPServer(service *Service) *HTTPServer {
	return &HTTPServer{service: service}
}

func (s *HTTPServer) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/documents/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents/changed" {
		s.handleDocumentChanged(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/search/reindex" {
		s.handleReindex(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	requester, ok := s.requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	text := r.URL.Query().Get("q")
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "q is required", map[string]any{"q": "required"})
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "page must be a positive integer", map[string]any{"page": "invalid"})
			return
		}
		page = parsed
	}

	pageSize := defaultPageSize
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "page_size must be a positive integer", map[string]any{"page_size": "invalid"})
			return
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		pageSize = parsed
	}

	resp, err := s.service.Search(r.Context(), requester, text, page, pageSize)
	if errors.Is(err, search.ErrPageOutOfRange) {
		writeError(w, http.StatusNotFound, "PAGE_OUT_OF_RANGE", "No such page", nil)
		return
	}
	if err != nil {
		log.Printf("http: search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Search failed", nil)
		return
	}

	results := make([]map[string]any, 0, len(resp.Results))
	for _, doc := range resp.Results {
		results = append(results, documentView(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": resp.Count, "results": results})
}

func (s *HTTPServer) handleDocumentChanged(w http.ResponseWriter, r *http.Request) {
	if !s.syncAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := store.ParseID(body.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a document id", map[string]any{"id": "invalid"})
		return
	}

	if err := s.service.DocumentChanged(r.Context(), id); err != nil {
		log.Printf("http: document changed trigger failed: %v", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Trigger failed", nil)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReindex(w http.ResponseWriter, r *http.Request) {
	if !s.syncAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var updatedSince *time.Time
	if raw := r.URL.Query().Get("updated_since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "updated_since must be RFC3339", map[string]any{"updated_since": "invalid"})
			return
		}
		updatedSince = &parsed
	}

	count, err := s.service.Reindex(r.Context(), updatedSince)
	if errors.Is(err, ErrIndexingDisabled) {
		writeError(w, http.StatusServiceUnavailable, "INDEXING_DISABLED", "No index backend configured", nil)
		return
	}
	if err != nil {
		log.Printf("http: reindex failed: %v", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Reindex failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *HTTPServer) requester(r *http.Request) (store.Requester, bool) {
	token := bearerToken(r)
	if token == "" {
		return store.Requester{}, false
	}
	claims, err := auth.ParseToken([]byte(s.service.cfg.TokenSecret), token)
	if err != nil {
		return store.Requester{}, false
	}
	return store.Requester{Sub: claims.Sub, Teams: claims.Teams}, true
}

func (s *HTTPServer) syncAuthorized(r *http.Request) bool {
	return bearerToken(r) == s.service.cfg.SyncToken
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func documentView(doc store.Document) map[string]any {
	return map[string]any{
		"id":         store.FormatID(doc.ID),
		"title":      doc.Title,
		"path":       doc.Path,
		"depth":      doc.Depth,
		"numchild":   doc.NumChild,
		"reach":      doc.LinkReach,
		"created_at": doc.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("http: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
