package outreach

import (
	"context"
	"strings"
)

// StaticResearcher resolves contacts from a configured company -> contact
// map. Entries are treated as verified; anything absent queues for manual
// research.
type StaticResearcher struct {
	contacts map[string]Contact
}

func NewStaticResearcher(entries map[string]Contact) *StaticResearcher {
	m := make(map[string]Contact, len(entries))
	for company, c := range entries {
		m[normCompany(company)] = c
	}
	return &StaticResearcher{contacts: m}
}

func (r *StaticResearcher) ResolveContact(_ context.Context, company string) (Contact, bool, error) {
	c, ok := r.contacts[normCompany(company)]
	return c, ok, nil
}

func normCompany(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
