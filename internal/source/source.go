package source

import (
	"context"

	"jobpilot/internal/domain"
)

// Fetcher is one job source. Implementations degrade to an empty slice on
// partial failure and never panic into the cycle.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawPosting, error)
}
