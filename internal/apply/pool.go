package apply

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"jobpilot/internal/domain"
	"jobpilot/internal/profile"
)

// Pool runs distinct applications concurrently up to a bounded size. Each
// application still gets its own exclusive browser session.
type Pool struct {
	executor *Executor
	sem      *semaphore.Weighted
}

func NewPool(executor *Executor, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		executor: executor,
		sem:      semaphore.NewWeighted(int64(size)),
	}
}

// Run applies to every posting, returning records in input order.
func (p *Pool) Run(ctx context.Context, postings []domain.JobPosting, prof profile.Profile) []domain.ApplicationRecord {
	records := make([]domain.ApplicationRecord, len(postings))

	var wg sync.WaitGroup
	for i, posting := range postings {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			break // context gone; remaining postings stay unprocessed
		}
		wg.Add(1)
		go func(i int, posting domain.JobPosting) {
			defer wg.Done()
			defer p.sem.Release(1)

			rec, _ := p.executor.Apply(ctx, posting, prof)
			records[i] = rec
		}(i, posting)
	}
	wg.Wait()
	return records
}
