package discover

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobpilot/internal/domain"
	"jobpilot/internal/source"
)

// SeenCache is the slice of persistence the aggregator consults. SUBMITTED
// entries drop a posting permanently; expired entries re-admit it.
type SeenCache interface {
	GetSeen(ctx context.Context, fingerprint string) (domain.SeenEntry, bool, error)
}

// Aggregator fans out to all enabled sources, normalizes and dedups.
type Aggregator struct {
	fetchers      []source.Fetcher
	seen          SeenCache
	sourceTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewAggregator(fetchers []source.Fetcher, seen SeenCache, sourceTimeout time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		fetchers:      fetchers,
		seen:          seen,
		sourceTimeout: sourceTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// Discover runs every fetcher concurrently under its own timeout and
// returns only postings that are new or stale enough to re-score. A slow or
// failing source contributes nothing and never stalls the cycle.
func (a *Aggregator) Discover(ctx context.Context) ([]domain.JobPosting, error) {
	results := make(chan []domain.RawPosting, len(a.fetchers))

	var g errgroup.Group
	for _, f := range a.fetchers {
		f := f
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
			defer cancel()

			start := time.Now()
			raw, err := f.Fetch(fctx)
			if err != nil {
				// best-effort: don't cancel siblings
				a.logger.Warn("source failed",
					zap.String("source", f.Name()), zap.Error(err))
				return nil
			}
			a.logger.Info("source fetched",
				zap.String("source", f.Name()),
				zap.Int("postings", len(raw)),
				zap.Duration("took", time.Since(start)),
			)
			results <- raw
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	now := a.now()
	batch := map[string]domain.JobPosting{}
	var order []string

	for raw := range results {
		for _, r := range raw {
			p := normalize(r, now)

			if prev, ok := batch[p.Fingerprint]; ok {
				// two sources reported the same job this cycle; keep the
				// richer record
				if len(p.Description) > len(prev.Description) {
					batch[p.Fingerprint] = p
				}
				continue
			}

			entry, found, err := a.seen.GetSeen(ctx, p.Fingerprint)
			if err != nil {
				return nil, err
			}
			if found && !entry.Reevaluable(now) {
				continue
			}

			batch[p.Fingerprint] = p
			order = append(order, p.Fingerprint)
		}
	}

	out := make([]domain.JobPosting, 0, len(order))
	for _, fp := range order {
		out = append(out, batch[fp])
	}

	a.logger.Info("discovery complete",
		zap.Int("sources", len(a.fetchers)),
		zap.Int("admitted", len(out)),
	)
	return out, nil
}

func normalize(r domain.RawPosting, now time.Time) domain.JobPosting {
	discovered := now
	if r.PostedAt != nil && !r.PostedAt.IsZero() {
		discovered = r.PostedAt.UTC()
	}

	min, max := source.ParseSalary(r.SalaryRaw)

	return domain.JobPosting{
		Fingerprint:  domain.Fingerprint(r.Company, r.Title),
		Source:       r.Source,
		ExternalID:   r.ExternalID,
		Company:      source.CleanText(r.Company),
		Title:        source.CleanText(r.Title),
		Location:     source.NormalizeLocation(r.LocationRaw),
		WorkMode:     source.InferWorkMode(r.LocationRaw, r.Title, r.Description),
		Description:  r.Description,
		SalaryMin:    min,
		SalaryMax:    max,
		URL:          r.URL,
		DiscoveredAt: discovered,
	}
}
