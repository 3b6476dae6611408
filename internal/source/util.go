package source

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/time/rate"
)

// HostLimiter spreads requests across hostnames so one busy board never
// starves the polite pacing of another. Limiters are created lazily, one
// token bucket per host.
type HostLimiter struct {
	perSec float64
	burst  int

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	return &HostLimiter{
		perSec: reqPerSec,
		burst:  burst,
		hosts:  make(map[string]*rate.Limiter),
	}
}

// WaitURL blocks until the host of raw may be hit again. Unparseable URLs
// share one catch-all bucket.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	host := "_"
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
	}

	hl.mu.Lock()
	lim := hl.hosts[host]
	if lim == nil {
		lim = rate.NewLimiter(rate.Limit(hl.perSec), hl.burst)
		hl.hosts[host] = lim
	}
	hl.mu.Unlock()

	return lim.Wait(ctx)
}

// CleanText collapses runs of whitespace, nbsp included, into single spaces.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pending := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

var locationPrefixes = []string{"Location:", "LOCATIONS:"}

// NormalizeLocation strips boilerplate prefixes and collapses duplicate
// comma-separated parts ("Remote, Remote, UK" -> "Remote, UK").
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	for _, p := range locationPrefixes {
		loc = strings.TrimSpace(strings.TrimPrefix(loc, p))
	}
	if loc == "" {
		return ""
	}

	seen := map[string]bool{}
	var parts []string
	for _, p := range strings.Split(loc, ",") {
		p = CleanText(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

var workModeHints = []struct {
	mode    string
	needles []string
}{
	{"Remote", []string{"remote"}},
	{"Hybrid", []string{"hybrid"}},
	{"Onsite", []string{"on-site", "onsite", "on site"}},
}

// InferWorkMode classifies the posting's work arrangement from free text.
// Remote wins over hybrid wins over onsite when several hints appear.
func InferWorkMode(location, title, desc string) string {
	blob := strings.ToLower(location + " " + title + " " + desc)
	for _, h := range workModeHints {
		for _, n := range h.needles {
			if strings.Contains(blob, n) {
				return h.mode
			}
		}
	}
	return "Unknown"
}

var reSalaryRange = regexp.MustCompile(`(?i)[$€£]\s?(\d[\d,.]*)(k)?\s*(?:-|–|to)\s*[$€£]?\s?(\d[\d,.]*)(k)?`)

// ParseSalary extracts an annual min/max from free text, 0/0 when absent.
func ParseSalary(text string) (min, max int) {
	m := reSalaryRange.FindStringSubmatch(text)
	if m == nil {
		return 0, 0
	}
	min = parseAmount(m[1], m[2] != "")
	max = parseAmount(m[3], m[4] != "")
	if max < min {
		min, max = max, min
	}
	return min, max
}

func parseAmount(s string, thousands bool) int {
	s = strings.ReplaceAll(s, ",", "")
	// "120.5" with a k suffix means 120500; bare "120.5" is noise
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if thousands {
		f *= 1000
	}
	return int(f)
}

// HTMLToText strips tags for description normalization.
var reTag = regexp.MustCompile(`(?is)<[^>]+>`)

func HTMLToText(s string) string {
	return CleanText(reTag.ReplaceAllString(s, " "))
}
