package tasks

import (
	"context"
	"sync"
	"time"
)

// Scheduler defers a job. Each scheduled job is an independent unit of
// work; the external task-queue runtime is out of scope, so the production
// implementation runs jobs in-process.
type Scheduler interface {
	Schedule(delay time.Duration, job func(ctx context.Context))
}

// AsyncScheduler runs each job on its own goroutine after the delay, with a
// bounded per-job context.
type AsyncScheduler struct {
	jobTimeout time.Duration
	wg         sync.WaitGroup
}

func NewAsyncScheduler(jobTimeout time.Duration) *AsyncScheduler {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}
	return &AsyncScheduler{jobTimeout: jobTimeout}
}

func (s *AsyncScheduler) Schedule(delay time.Duration, job func(ctx context.Context)) {
	s.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		job(ctx)
	})
}

// Wait blocks until every scheduled job has finished. Used on shutdown so
// in-flight index pushes are not cut off mid-request.
func (s *AsyncScheduler) Wait() {
	s.wg.Wait()
}
