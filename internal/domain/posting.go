package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Outcome is the routing tier assigned to a scored posting.
type Outcome string

const (
	OutcomeAutoApply Outcome = "AUTO_APPLY"
	OutcomeOutreach  Outcome = "OUTREACH"
	OutcomeReview    Outcome = "REVIEW"
	OutcomeDiscard   Outcome = "DISCARD"
	OutcomeSubmitted Outcome = "SUBMITTED"
	OutcomeFailed    Outcome = "FAILED"
)

// RawPosting is what a source adapter hands back before normalization.
type RawPosting struct {
	Source      string
	ExternalID  string
	Company     string
	Title       string
	LocationRaw string
	Description string
	SalaryRaw   string
	URL         string
	PostedAt    *time.Time
}

// JobPosting is a normalized, fingerprinted posting.
type JobPosting struct {
	Fingerprint  string
	Source       string
	ExternalID   string
	Company      string
	Title        string
	Location     string
	WorkMode     string // Remote/Hybrid/Onsite/Unknown
	Description  string
	SalaryMin    int
	SalaryMax    int
	URL          string
	DiscoveredAt time.Time
	Score        int
	Outcome      Outcome
}

// SeenEntry tracks a fingerprint across cycles.
type SeenEntry struct {
	Fingerprint string
	FirstSeen   time.Time
	TTLExpiry   time.Time
	LastOutcome Outcome
}

// Fingerprint derives the stable dedup identity of a posting. The hash
// covers normalized company+title only: source-scoped external IDs differ
// for the same job on two boards and would defeat cross-source collapse.
func Fingerprint(company, title string) string {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.Join(strings.Fields(s), " ")
	}
	key := norm(company) + "|" + norm(title)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// Reevaluable reports whether the entry may be scored again at t.
// SUBMITTED is terminal regardless of TTL.
func (e SeenEntry) Reevaluable(t time.Time) bool {
	if e.LastOutcome == OutcomeSubmitted {
		return false
	}
	return !t.Before(e.TTLExpiry)
}
