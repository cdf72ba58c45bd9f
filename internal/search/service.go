// Package search answers user-facing document searches against the
// external index, reconciling the engine's results with local authorization
// state.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"

	"docsync/api/internal/indexer"
	"docsync/api/internal/store"
)

// ErrPageOutOfRange marks a page request beyond the filtered result count.
// Distinct from parameter validation failures: the request was well-formed,
// the page just does not exist.
var ErrPageOutOfRange = errors.New("page out of range")

// Store is the authorization side of a search: which documents the
// requester has visited without owning, and which of a given id list they
// may actually see.
type Store interface {
	ListVisitedNotOwned(ctx context.Context, req store.Requester) ([]int64, error)
	FilterAuthorized(ctx context.Context, req store.Requester, ids []int64) ([]store.Document, error)
	SearchAuthorizedByTitle(ctx context.Context, req store.Requester, text string) ([]store.Document, error)
}

// Service executes searches. With no backend configured it degrades to a
// local title filter that still enforces authorization.
type Service struct {
	store   Store
	backend indexer.Backend // nil when no external index is configured
}

func NewService(st Store, backend indexer.Backend) *Service {
	return &Service{store: st, backend: backend}
}

// Response is one page of search results.
type Response struct {
	Count   int
	Results []store.Document
}

// Search returns the page-th page (1-based) of documents matching text that
// the requester is allowed to see. External relevance ordering is
// preserved through reconciliation; pagination applies to the filtered
// list, since the engine may return ids the requester cannot see.
func (s *Service) Search(ctx context.Context, req store.Requester, text string, page, pageSize int) (Response, error) {
	if s.backend == nil {
		docs, err := s.store.SearchAuthorizedByTitle(ctx, req, text)
		if err != nil {
			return Response{}, err
		}
		return paginate(docs, page, pageSize)
	}

	visitedIDs, err := s.store.ListVisitedNotOwned(ctx, req)
	if err != nil {
		return Response{}, err
	}
	visited := make([]string, 0, len(visitedIDs))
	for _, id := range visitedIDs {
		visited = append(visited, store.FormatID(id))
	}

	externalIDs, err := s.backend.Query(ctx, indexer.QueryParams{
		Text:       text,
		Visited:    visited,
		PageNumber: page,
		PageSize:   pageSize,
	})
	if err != nil {
		return Response{}, fmt.Errorf("query index: %w", err)
	}

	ids := make([]int64, 0, len(externalIDs))
	for _, external := range externalIDs {
		id, err := store.ParseID(external)
		if err != nil {
			log.Printf("search: index returned malformed id %q", external)
			continue
		}
		ids = append(ids, id)
	}

	// FilterAuthorized keeps the engine's ordering and silently drops ids
	// the requester cannot see.
	docs, err := s.store.FilterAuthorized(ctx, req, ids)
	if err != nil {
		return Response{}, err
	}
	return paginate(docs, page, pageSize)
}

func paginate(docs []store.Document, page, pageSize int) (Response, error) {
	count := len(docs)
	start := (page - 1) * pageSize
	if start > 0 && start >= count {
		return Response{}, ErrPageOutOfRange
	}
	end := start + pageSize
	if end > count {
		end = count
	}
	return Response{Count: count, Results: docs[start:end]}, nil
}
