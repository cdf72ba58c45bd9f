// Package tasks coordinates deferred indexing work: it turns post-commit
// document change notifications into at most one index push per document
// per cooldown window.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docsync/api/internal/access"
	"docsync/api/internal/indexer"
	"docsync/api/internal/store"
)

// Limiter is the throttle primitive: Acquire succeeds for exactly one
// caller per key per cooldown window, atomically under concurrent callers.
type Limiter interface {
	Acquire(ctx context.Context, key string, cooldown time.Duration) (bool, error)
}

// Store is what the deferred job needs: a fresh read of the document and
// the grant lookup for access resolution.
type Store interface {
	access.GrantReader
	GetDocument(ctx context.Context, id int64) (store.Document, error)
}

// Trigger is the entry point the document store calls after every durably
// committed mutation. It must never be called mid-transaction: the job
// serializes whatever it re-fetches, and uncommitted fields would be stale
// or invisible.
type Trigger struct {
	store     Store
	backend   indexer.Backend // nil when indexing is disabled
	limiter   Limiter
	scheduler Scheduler
	cooldown  time.Duration
}

func NewTrigger(st Store, backend indexer.Backend, limiter Limiter, scheduler Scheduler, cooldown time.Duration) *Trigger {
	return &Trigger{
		store:     st,
		backend:   backend,
		limiter:   limiter,
		scheduler: scheduler,
		cooldown:  cooldown,
	}
}

// Enabled reports whether change events lead to indexing work at all.
func (t *Trigger) Enabled() bool {
	return t.backend != nil
}

// DocumentChanged schedules one deferred indexing job for the document
// unless one is already pending within the cooldown window. The job
// re-fetches the document at execution time, so a burst of N changes
// yields one push reflecting the state as of the last change.
func (t *Trigger) DocumentChanged(ctx context.Context, id int64) error {
	if !t.Enabled() {
		return nil
	}

	key := store.FormatID(id)
	acquired, err := t.limiter.Acquire(ctx, key, t.cooldown)
	if err != nil {
		return fmt.Errorf("throttle document %s: %w", key, err)
	}
	if !acquired {
		log.Printf("tasks: skip indexation of document %s, already scheduled", key)
		return nil
	}

	log.Printf("tasks: schedule indexation of document %s in %s", key, t.cooldown)
	t.scheduler.Schedule(t.cooldown, func(jobCtx context.Context) {
		if err := t.runJob(jobCtx, id); err != nil {
			log.Printf("tasks: index document %s: %v", key, err)
		}
	})
	return nil
}

// runJob is the deferred job body. A document deleted between trigger and
// execution is a no-op, not an error.
func (t *Trigger) runJob(ctx context.Context, id int64) error {
	doc, err := t.store.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	accesses, err := access.ResolveBatch(ctx, t.store, []string{doc.Path})
	if err != nil {
		return err
	}

	record := t.backend.Serialize(doc, accesses)
	if record.Content == "" && record.Title == "" {
		return nil
	}
	return t.backend.Push(ctx, []indexer.Record{record})
}
