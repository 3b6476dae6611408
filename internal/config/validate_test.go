package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	var cfg Config
	cfg.Routing.ApplyThreshold = 75
	cfg.Routing.OutreachThreshold = 60
	cfg.Routing.ReviewThreshold = 45
	cfg.Routing.MaxDailyApplications = 10
	cfg.Routing.MaxDailyOutreach = 15
	cfg.Dedup.TTLDays = 14
	cfg.FollowUp.FirstAfterDays = 3
	cfg.FollowUp.FinalAfterDays = 8
	return cfg
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold order", func(c *Config) { c.Routing.OutreachThreshold = 80 }, "thresholds"},
		{"negative cap", func(c *Config) { c.Routing.MaxDailyApplications = -1 }, "caps"},
		{"zero ttl", func(c *Config) { c.Dedup.TTLDays = 0 }, "ttl_days"},
		{"follow-up order", func(c *Config) { c.FollowUp.FirstAfterDays = 9 }, "first_after_days"},
		{"imap missing host", func(c *Config) { c.IMAP.Enabled = true }, "imap"},
		{"apply without imap", func(c *Config) { c.Apply.Enabled = true }, "verification codes"},
		{"smtp missing host", func(c *Config) { c.SMTP.Enabled = true }, "smtp"},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Dedup.TTLDays = 0
	cfg.Routing.MaxDailyOutreach = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "ttl_days") || !strings.Contains(msg, "caps") {
		t.Fatalf("joined error missing a problem: %q", msg)
	}
}
