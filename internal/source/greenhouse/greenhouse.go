package greenhouse

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/source"
)

type Company struct {
	Slug string // boards.greenhouse.io/<slug>
	Name string
}

type Config struct {
	Companies []Company
}

// Scraper pulls postings from public Greenhouse boards.
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

func (s *Scraper) Name() string { return "greenhouse" }

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	var out []domain.RawPosting
	for _, co := range s.cfg.Companies {
		postings, err := s.fetchBoard(ctx, co)
		if err != nil {
			// one dead board never fails the run
			s.logger.Warn("greenhouse board failed",
				zap.String("company", co.Name), zap.Error(err))
			continue
		}
		out = append(out, postings...)
	}
	return out, nil
}

var reJobID = regexp.MustCompile(`/jobs/(\d+)`)

func (s *Scraper) fetchBoard(ctx context.Context, co Company) ([]domain.RawPosting, error) {
	boardURL := fmt.Sprintf("https://boards.greenhouse.io/%s", co.Slug)

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, boardURL); err != nil {
			return nil, err
		}
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, boardURL, nil)
	req.Header.Set("User-Agent", "jobpilot/1.0 (+local)")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("greenhouse get board: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("greenhouse board status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("greenhouse parse board html: %w", err)
	}

	seen := map[string]bool{}
	var postings []domain.RawPosting

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		abs := href
		if strings.HasPrefix(href, "/") {
			abs = "https://boards.greenhouse.io" + href
		}
		low := strings.ToLower(abs)
		if !strings.Contains(low, "boards.greenhouse.io") || !strings.Contains(low, "/jobs/") {
			return
		}

		m := reJobID.FindStringSubmatch(abs)
		if m == nil {
			return
		}
		externalID := fmt.Sprintf("greenhouse:%s:%s", co.Slug, m[1])
		if seen[externalID] {
			return
		}
		seen[externalID] = true

		title := source.CleanText(a.Text())
		if title == "" {
			return
		}

		loc := source.NormalizeLocation(a.Parent().Find(".location").Text())

		postings = append(postings, domain.RawPosting{
			Source:      "greenhouse",
			ExternalID:  externalID,
			Company:     co.Name,
			Title:       title,
			LocationRaw: loc,
			URL:         abs,
		})
	})

	return postings, nil
}
