package workday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/source"
)

type Company struct {
	Slug string // full board URL, e.g. https://acme.wd1.myworkdayjobs.com/en-US/careers
	Name string
}

type Config struct {
	Companies []Company
}

// Scraper pages through the Workday CXS jobs endpoint. Many tenants sit
// behind Cloudflare and require a CSRF cookie from the board page first,
// so each company gets its own cookie-jar client.
type Scraper struct {
	cfg     Config
	limiter *source.HostLimiter
	logger  *zap.Logger

	mu      sync.Mutex
	blocked map[string]bool
}

func New(cfg Config, limiter *source.HostLimiter, logger *zap.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		blocked: map[string]bool{},
	}
}

func (s *Scraper) Name() string { return "workday" }

// ErrBlocked marks a host Cloudflare refused; remaining companies on that
// host are skipped for the rest of the cycle.
var ErrBlocked = errors.New("workday host blocked")

type jobsRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type jobsResponse struct {
	Total       int          `json:"total"`
	JobPostings []jobPosting `json:"jobPostings"`
}

type jobPosting struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ExternalPath string `json:"externalPath"`
	ExternalURL  string `json:"externalUrl"`
	Locations    string `json:"locationsText"`
	Location     string `json:"location"`
	PostedOn     string `json:"postedOnDate"`
	RequisitionA string `json:"jobRequisitionId"`
	RequisitionB string `json:"jobRequisitionID"`
}

func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	const workers = 4

	workCh := make(chan Company)
	batchCh := make(chan []domain.RawPosting, len(s.cfg.Companies))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for co := range workCh {
				cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
				postings, err := s.fetchCompany(cctx, co)
				cancel()

				if err != nil {
					if errors.Is(err, ErrBlocked) {
						s.logger.Warn("workday host blocked, skipping its companies",
							zap.String("company", co.Name))
						continue
					}
					s.logger.Warn("workday company failed",
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

type board struct {
	Scheme string
	Host   string
	Tenant string
	Site   string
	Locale string
}

// parseBoard derives the CXS endpoint pieces from a board URL like
// https://<tenant>.wd1.myworkdayjobs.com/en-US/<site>.
func parseBoard(raw string) (board, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return board{}, errors.New("empty board url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return board{}, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return board{}, fmt.Errorf("missing host in %q", raw)
	}

	hostParts := strings.Split(u.Host, ".")
	if len(hostParts) < 3 {
		return board{}, fmt.Errorf("unexpected host %q", u.Host)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return board{}, fmt.Errorf("unexpected path %q", u.Path)
	}

	locale := ""
	if len(segs) >= 2 && looksLikeLocale(segs[0]) {
		locale = canonicalLocale(segs[0])
		segs = segs[1:]
	}

	return board{
		Scheme: u.Scheme,
		Host:   u.Host,
		Tenant: hostParts[0],
		Site:   segs[len(segs)-1],
		Locale: locale,
	}, nil
}

// looksLikeLocale accepts en-US, en-us and friends.
func looksLikeLocale(s string) bool {
	if len(s) != 5 || s[2] != '-' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		c := s[i]
		if !(('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')) {
			return false
		}
	}
	return true
}

func canonicalLocale(s string) string {
	return strings.ToLower(s[0:2]) + "-" + strings.ToUpper(s[3:5])
}

func (b board) jobsEndpoint() string {
	ep := fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", b.Scheme, b.Host, b.Tenant, b.Site)
	if b.Locale != "" {
		ep += "?locale=" + url.QueryEscape(b.Locale)
	}
	return ep
}

func (b board) jobURL(p jobPosting) string {
	if u := strings.TrimSpace(p.ExternalURL); u != "" {
		return u
	}
	path := strings.TrimSpace(p.ExternalPath)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", b.Scheme, b.Host, path)
}

func (s *Scraper) hostBlocked(host string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[host]
}

func (s *Scraper) markBlocked(host string) {
	s.mu.Lock()
	s.blocked[host] = true
	s.mu.Unlock()
}

func (s *Scraper) fetchCompany(ctx context.Context, co Company) ([]domain.RawPosting, error) {
	b, err := parseBoard(co.Slug)
	if err != nil {
		return nil, err
	}
	if s.hostBlocked(b.Host) {
		return nil, ErrBlocked
	}

	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Jar: jar, Timeout: 25 * time.Second}

	// Grab the CSRF cookie up front; tenants that don't need it just
	// won't set it and the first POST decides.
	csrf, bootErr := bootstrap(ctx, hc, co.Slug)
	if errors.Is(bootErr, ErrBlocked) {
		s.markBlocked(b.Host)
		return nil, ErrBlocked
	}

	endpoint := b.jobsEndpoint()
	const pageSize = 50
	var out []domain.RawPosting

	for offset := 0; offset <= 5000; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		page, err := s.postJobs(ctx, hc, b, endpoint, co.Slug, csrf, pageSize, offset)
		if err != nil && bootErr != nil {
			// first POST failed without a session; bootstrap once and retry
			csrf, bootErr = bootstrap(ctx, hc, co.Slug)
			if errors.Is(bootErr, ErrBlocked) {
				s.markBlocked(b.Host)
				return out, ErrBlocked
			}
			page, err = s.postJobs(ctx, hc, b, endpoint, co.Slug, csrf, pageSize, offset)
		}
		if err != nil {
			return out, err
		}

		if len(page.JobPostings) == 0 {
			break
		}
		for _, p := range page.JobPostings {
			if rp, ok := mapPosting(b, co, p); ok {
				out = append(out, rp)
			}
		}
		if page.Total > 0 && offset+pageSize >= page.Total {
			break
		}
	}

	return out, nil
}

func (s *Scraper) postJobs(ctx context.Context, hc *http.Client, b board, endpoint, referer, csrf string, limit, offset int) (*jobsResponse, error) {
	payload, _ := json.Marshal(jobsRequest{
		AppliedFacets: map[string]any{},
		Limit:         limit,
		Offset:        offset,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", b.Scheme+"://"+b.Host)
	req.Header.Set("Referer", strings.TrimRight(referer, "/"))
	if b.Locale != "" {
		req.Header.Set("Accept-Language", b.Locale)
	} else {
		req.Header.Set("Accept-Language", "en-US")
	}
	if csrf != "" {
		req.Header.Set("x-calypso-csrf-token", csrf)
	}

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, endpoint); err != nil {
			return nil, err
		}
	}

	res, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workday post jobs: %w", err)
	}
	defer res.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("workday status %d", res.StatusCode)
	}

	var jr jobsResponse
	if err := json.Unmarshal(data, &jr); err != nil {
		return nil, fmt.Errorf("workday decode: %w", err)
	}
	return &jr, nil
}

func mapPosting(b board, co Company, p jobPosting) (domain.RawPosting, bool) {
	title := source.CleanText(p.Title)
	jobURL := b.jobURL(p)
	if title == "" || jobURL == "" {
		return domain.RawPosting{}, false
	}

	loc := p.Locations
	if loc == "" {
		loc = p.Location
	}
	loc = source.NormalizeLocation(loc)

	id := firstNonEmpty(p.RequisitionA, p.RequisitionB, p.ID, jobURL)

	return domain.RawPosting{
		Source:      "workday",
		ExternalID:  fmt.Sprintf("workday:%s:%s:%s", b.Tenant, b.Site, id),
		Company:     co.Name,
		Title:       title,
		LocationRaw: loc,
		URL:         jobURL,
		PostedAt:    parsePostedAt(p.PostedOn),
	}, true
}

func parsePostedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// bootstrap loads the board page so the jar picks up session cookies and
// returns the CALYPSO_CSRF_TOKEN value when the tenant sets one.
func bootstrap(ctx context.Context, hc *http.Client, boardURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, boardURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US")

	res, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	io.Copy(io.Discard, res.Body)

	if cloudflareBlock(res, string(preview)) {
		return "", ErrBlocked
	}

	u, _ := url.Parse(boardURL)
	for _, c := range hc.Jar.Cookies(u) {
		if c.Name == "CALYPSO_CSRF_TOKEN" && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("workday bootstrap: no csrf cookie (status=%d)", res.StatusCode)
}

func cloudflareBlock(res *http.Response, preview string) bool {
	if res.StatusCode == 403 || res.StatusCode == 429 {
		return true
	}
	server := strings.ToLower(res.Header.Get("Server"))
	if strings.Contains(server, "cloudflare") && res.Header.Get("CF-RAY") != "" {
		return true
	}
	low := strings.ToLower(preview)
	if strings.Contains(low, "/cdn-cgi/") {
		return true
	}
	return strings.Contains(low, "cloudflare") &&
		(strings.Contains(low, "checking your browser") || strings.Contains(low, "attention required"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
