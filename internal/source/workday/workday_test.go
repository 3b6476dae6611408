package workday

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestParseBoard(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		tenant  string
		site    string
		locale  string
		wantErr bool
	}{
		{"with locale", "https://acme.wd1.myworkdayjobs.com/en-US/careers", "acme", "careers", "en-US", false},
		{"lowercase locale canonicalized", "https://acme.wd1.myworkdayjobs.com/en-us/careers", "acme", "careers", "en-US", false},
		{"no locale", "https://acme.wd5.myworkdayjobs.com/External", "acme", "External", "", false},
		{"schemeless parses as path", "acme.wd1.myworkdayjobs.com/jobs", "", "", "", true},
		{"empty", "", "", "", "", true},
		{"bare host", "https://example.com/jobs", "", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := parseBoard(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseBoard(%q): expected error", tc.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBoard(%q): %v", tc.url, err)
			}
			if b.Tenant != tc.tenant || b.Site != tc.site || b.Locale != tc.locale {
				t.Fatalf("got tenant=%q site=%q locale=%q", b.Tenant, b.Site, b.Locale)
			}
		})
	}
}

func TestJobURLPrefersExternalURL(t *testing.T) {
	b := board{Scheme: "https", Host: "acme.wd1.myworkdayjobs.com"}

	if got := b.jobURL(jobPosting{ExternalURL: "https://other/x"}); got != "https://other/x" {
		t.Fatalf("got %q", got)
	}
	if got := b.jobURL(jobPosting{ExternalPath: "job/123"}); got != "https://acme.wd1.myworkdayjobs.com/job/123" {
		t.Fatalf("got %q", got)
	}
	if got := b.jobURL(jobPosting{}); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestParsePostedAt(t *testing.T) {
	if parsePostedAt("") != nil {
		t.Fatal("empty string must yield nil")
	}
	if parsePostedAt("not a date") != nil {
		t.Fatal("garbage must yield nil")
	}
	got := parsePostedAt("2026-08-01")
	if got == nil || got.Year() != 2026 || got.Month() != 8 {
		t.Fatalf("got %v", got)
	}
}

// board host needs three dot-separated parts, which a loopback address
// happens to satisfy, so the test server can stand in for a tenant.
func TestFetchPagesThroughTenant(t *testing.T) {
	var pages []jobsResponse
	mux := http.NewServeMux()
	mux.HandleFunc("/careers", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "CALYPSO_CSRF_TOKEN", Value: "tok"})
		w.Write([]byte("<html></html>"))
	})
	var gotCSRF string
	mux.HandleFunc("/wday/cxs/127/careers/jobs", func(w http.ResponseWriter, r *http.Request) {
		gotCSRF = r.Header.Get("x-calypso-csrf-token")
		var req jobsRequest
		json.NewDecoder(r.Body).Decode(&req)
		page := pages[req.Offset/50]
		json.NewEncoder(w).Encode(page)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pages = []jobsResponse{
		{Total: 51, JobPostings: []jobPosting{
			{ID: "1", Title: "Staff Engineer", ExternalPath: "/job/1", Locations: "Remote"},
			{Title: "No URL"},
		}},
		{Total: 51, JobPostings: []jobPosting{
			{ID: "2", Title: "Platform Engineer", ExternalPath: "/job/2", Location: "London, UK"},
		}},
	}

	s := New(Config{Companies: []Company{
		{Slug: srv.URL + "/careers", Name: "Acme Corp"},
	}}, nil, zap.NewNop())

	out, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d postings, want 2 (url-less posting dropped)", len(out))
	}
	if gotCSRF != "tok" {
		t.Fatalf("csrf header = %q, want bootstrap cookie value", gotCSRF)
	}
	if out[0].Company != "Acme Corp" || out[0].Source != "workday" {
		t.Fatalf("posting = %+v", out[0])
	}
	if out[0].ExternalID != "workday:127:careers:1" {
		t.Fatalf("external id = %q", out[0].ExternalID)
	}
}

func TestFetchSkipsBlockedHost(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(Config{Companies: []Company{
		{Slug: srv.URL + "/careers", Name: "Blocked Co"},
	}}, nil, zap.NewNop())

	out, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d postings from a blocked host", len(out))
	}
	if !s.hostBlocked(srv.Listener.Addr().String()) {
		t.Fatal("host must be memoized as blocked for the rest of the cycle")
	}
}
