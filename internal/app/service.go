package app

import (
	"context"
	"errors"
	"log"
	"time"

	"docsync/api/internal/config"
	"docsync/api/internal/indexer"
	"docsync/api/internal/search"
	"docsync/api/internal/store"
	"docsync/api/internal/tasks"
)

// ErrIndexingDisabled is returned by operations that need a configured
// index backend while the service runs without one.
var ErrIndexingDisabled = errors.New("indexing is disabled")

// Service ties the search, reindex and change-trigger paths together for
// the HTTP layer.
type Service struct {
	cfg       config.Config
	search    *search.Service
	reindexer *indexer.BatchIndexer // nil when indexing is disabled
	trigger   *tasks.Trigger        // nil when indexing is disabled
}

func New(cfg config.Config, searchService *search.Service, reindexer *indexer.BatchIndexer, trigger *tasks.Trigger) *Service {
	return &Service{cfg: cfg, search: searchService, reindexer: reindexer, trigger: trigger}
}

func (s *Service) Search(ctx context.Context, req store.Requester, text string, page, pageSize int) (search.Response, error) {
	return s.search.Search(ctx, req, text, page, pageSize)
}

// Reindex streams the whole corpus (or the slice updated since
// updatedSince) into the index and returns the pushed count.
func (s *Service) Reindex(ctx context.Context, updatedSince *time.Time) (int, error) {
	if s.reindexer == nil {
		return 0, ErrIndexingDisabled
	}
	log.Printf("app: starting index regeneration")
	start := time.Now()
	count, err := s.reindexer.Run(ctx, store.Scope{UpdatedSince: updatedSince})
	if err != nil {
		return count, err
	}
	log.Printf("app: index regenerated, %d documents in %.2f seconds", count, time.Since(start).Seconds())
	return count, nil
}

// DocumentChanged is the post-commit change notification. With indexing
// disabled it is a no-op.
func (s *Service) DocumentChanged(ctx context.Context, id int64) error {
	if s.trigger == nil {
		return nil
	}
	return s.trigger.DocumentChanged(ctx, id)
}
