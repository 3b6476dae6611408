package smartrecruiters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/source"
)

type Company struct {
	Slug string // jobs.smartrecruiters.com/<slug>
	Name string
}

type Config struct {
	Companies []Company
}

// Scraper pulls postings from the public SmartRecruiters company API.
type Scraper struct {
	cfg     Config
	hc      *http.Client
	limiter *source.HostLimiter
	logger  *zap.Logger

	apiBase string
}

func New(cfg Config, limiter *source.HostLimiter, logger *zap.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 25 * time.Second},
		limiter: limiter,
		logger:  logger,
		apiBase: "https://api.smartrecruiters.com",
	}
}

func (s *Scraper) Name() string { return "smartrecruiters" }

type postingsPage struct {
	Content    []posting `json:"content"`
	TotalFound int       `json:"totalFound"`
}

type posting struct {
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Ref          string    `json:"ref"`
	ReleasedDate time.Time `json:"releasedDate"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
}

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	const workers = 8

	workCh := make(chan Company)
	batchCh := make(chan []domain.RawPosting, len(s.cfg.Companies))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for co := range workCh {
				cctx, cancel := context.WithTimeout(ctx, 20*time.Second)
				postings, err := s.fetchCompany(cctx, co)
				cancel()

				if err != nil {
					s.logger.Warn("smartrecruiters company failed",
						zap.String("company", co.Name), zap.Error(err))
					continue
				}
				if len(postings) > 0 {
					batchCh <- postings
				}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for _, co := range s.cfg.Companies {
			select {
			case <-ctx.Done():
				return
			case workCh <- co:
			}
		}
	}()

	wg.Wait()
	close(batchCh)

	var out []domain.RawPosting
	for batch := range batchCh {
		out = append(out, batch...)
	}
	return out, nil
}

func (s *Scraper) fetchCompany(ctx context.Context, co Company) ([]domain.RawPosting, error) {
	slug := strings.TrimSpace(co.Slug)
	if slug == "" {
		return nil, fmt.Errorf("empty slug")
	}

	base := fmt.Sprintf("%s/v1/companies/%s/postings", s.apiBase, url.PathEscape(slug))
	const pageSize = 100
	var out []domain.RawPosting

	for offset := 0; offset <= 5000; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pageURL := fmt.Sprintf("%s?limit=%d&offset=%d", base, pageSize, offset)
		if s.limiter != nil {
			if err := s.limiter.WaitURL(ctx, pageURL); err != nil {
				return out, err
			}
		}

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		req.Header.Set("User-Agent", "jobpilot/1.0 (+local)")
		req.Header.Set("Accept", "application/json")

		res, err := s.hc.Do(req)
		if err != nil {
			return out, fmt.Errorf("smartrecruiters get: %w", err)
		}

		var page postingsPage
		err = json.NewDecoder(res.Body).Decode(&page)
		res.Body.Close()
		if res.StatusCode >= 400 {
			return out, fmt.Errorf("smartrecruiters status %d", res.StatusCode)
		}
		if err != nil {
			return out, fmt.Errorf("smartrecruiters decode: %w", err)
		}

		if len(page.Content) == 0 {
			break
		}
		for _, p := range page.Content {
			if rp, ok := mapPosting(slug, co.Name, p); ok {
				out = append(out, rp)
			}
		}
		if page.TotalFound > 0 && offset+pageSize >= page.TotalFound {
			break
		}
	}

	return out, nil
}

func mapPosting(slug, company string, p posting) (domain.RawPosting, bool) {
	title := source.CleanText(p.Name)
	id := firstNonEmpty(p.ID, p.UUID, p.Ref)
	if title == "" || id == "" {
		return domain.RawPosting{}, false
	}

	loc := source.NormalizeLocation(joinNonEmpty(", ",
		p.Location.City, p.Location.Region, p.Location.Country))

	var postedAt *time.Time
	if !p.ReleasedDate.IsZero() {
		t := p.ReleasedDate
		postedAt = &t
	}

	return domain.RawPosting{
		Source:      "smartrecruiters",
		ExternalID:  fmt.Sprintf("smartrecruiters:%s:%s", slug, id),
		Company:     company,
		Title:       title,
		LocationRaw: loc,
		URL:         fmt.Sprintf("https://jobs.smartrecruiters.com/%s/%s", slug, id),
		PostedAt:    postedAt,
	}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, vals ...string) string {
	kept := vals[:0]
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}
