package domain

import (
	"testing"
	"time"
)

func TestFingerprintNormalization(t *testing.T) {
	base := Fingerprint("Acme Corp", "Senior Go Engineer")

	same := []struct{ company, title string }{
		{"acme corp", "senior go engineer"},
		{"  Acme   Corp ", "Senior  Go Engineer"},
		{"ACME CORP", "SENIOR GO ENGINEER"},
	}
	for _, tc := range same {
		if got := Fingerprint(tc.company, tc.title); got != base {
			t.Fatalf("Fingerprint(%q, %q) = %s, want %s", tc.company, tc.title, got, base)
		}
	}

	if Fingerprint("Acme Corp", "Staff Go Engineer") == base {
		t.Fatal("different titles must not collide")
	}
	if Fingerprint("Other Corp", "Senior Go Engineer") == base {
		t.Fatal("different companies must not collide")
	}
}

func TestFingerprintCollapsesAcrossSources(t *testing.T) {
	// the same job on two boards carries different external ids; the
	// fingerprint must ignore them
	a := Fingerprint("Acme Corp", "Platform Engineer")
	b := Fingerprint("Acme Corp", "Platform Engineer")
	if a != b {
		t.Fatalf("identical company+title produced %s and %s", a, b)
	}
}

func TestSeenEntryReevaluable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		entry SeenEntry
		want  bool
	}{
		{"within ttl", SeenEntry{TTLExpiry: now.Add(time.Hour), LastOutcome: OutcomeDiscard}, false},
		{"expired ttl", SeenEntry{TTLExpiry: now.Add(-time.Hour), LastOutcome: OutcomeDiscard}, true},
		{"exactly at expiry", SeenEntry{TTLExpiry: now, LastOutcome: OutcomeReview}, true},
		{"submitted never reevaluable", SeenEntry{TTLExpiry: now.Add(-time.Hour), LastOutcome: OutcomeSubmitted}, false},
	}
	for _, tc := range cases {
		if got := tc.entry.Reevaluable(now); got != tc.want {
			t.Fatalf("%s: Reevaluable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
