package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/source"
)

type Company struct {
	Slug string // api.lever.co/v0/postings/<slug>
	Name string
}

type Config struct {
	Companies []Company
}

// Scraper pulls postings from the public Lever JSON API.
type Scraper struct {
	cfg     Config
	hc      *http.Client
	limiter *source.HostLimiter
	logger  *zap.Logger
}

func New(cfg Config, limiter *source.HostLimiter, logger *zap.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
		logger:  logger,
	}
}

func (s *Scraper) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location string `json:"location"`
		Team     string `json:"team"`
	} `json:"categories"`
	Description string `json:"description"` // html
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
				cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				postings, err := s.fetchCompany(cctx, co)
				cancel()

				if err != nil {
					s.logger.Warn("lever company failed",
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
	apiURL := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", co.Slug)

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, apiURL); err != nil {
			return nil, err
		}
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	req.Header.Set("User-Agent", "jobpilot/1.0 (+local)")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("lever status %d", res.StatusCode)
	}

	var postings []leverPosting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		return nil, fmt.Errorf("lever decode: %w", err)
	}

	out := make([]domain.RawPosting, 0, len(postings))
	for _, p := range postings {
		if p.ID == "" || p.HostedURL == "" || strings.TrimSpace(p.Text) == "" {
			continue
		}

		var postedAt *time.Time
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt)
			postedAt = &t
		}

		desc := source.HTMLToText(p.Description)
		out = append(out, domain.RawPosting{
			Source:      "lever",
			ExternalID:  "lever:" + co.Slug + ":" + p.ID,
			Company:     co.Name,
			Title:       source.CleanText(p.Text),
			LocationRaw: source.NormalizeLocation(p.Categories.Location),
			Description: desc,
			SalaryRaw:   desc,
			URL:         p.HostedURL,
			PostedAt:    postedAt,
		})
	}
	return out, nil
}
