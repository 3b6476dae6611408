package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the full engine configuration, loaded from YAML via viper.
type Config struct {
	App struct {
		DataDir    string `mapstructure:"data_dir"`
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"app"`

	Cycle struct {
		IntervalMinutes int `mapstructure:"interval_minutes"`
		BudgetMinutes   int `mapstructure:"budget_minutes"`
	} `mapstructure:"cycle"`

	Routing struct {
		ApplyThreshold       int `mapstructure:"apply_threshold"`
		OutreachThreshold    int `mapstructure:"outreach_threshold"`
		ReviewThreshold      int `mapstructure:"review_threshold"`
		MaxDailyApplications int `mapstructure:"max_daily_applications"`
		MaxDailyOutreach     int `mapstructure:"max_daily_outreach"`
	} `mapstructure:"routing"`

	Dedup struct {
		TTLDays int `mapstructure:"ttl_days"`
	} `mapstructure:"dedup"`

	Sources struct {
		Greenhouse      SourceConfig `mapstructure:"greenhouse"`
		Lever           SourceConfig `mapstructure:"lever"`
		Workday         SourceConfig `mapstructure:"workday"`
		SmartRecruiters SourceConfig `mapstructure:"smartrecruiters"`
		TimeoutSec      int          `mapstructure:"timeout_seconds"`
	} `mapstructure:"sources"`

	Gate struct {
		AllowTitle      []string       `mapstructure:"allow_title"`
		DenyTitle       []string       `mapstructure:"deny_title"`
		DenyCompany     []string       `mapstructure:"deny_company"`
		DenyStage       []string       `mapstructure:"deny_stage"`
		OnsiteBlock     []string       `mapstructure:"onsite_block"`
		SalaryFloors    map[string]int `mapstructure:"salary_floors"`
		SoftMismatch    []string       `mapstructure:"soft_mismatch"`
		MismatchPenalty int            `mapstructure:"mismatch_penalty"`
	} `mapstructure:"gate"`

	Scoring struct {
		TitleBonuses   []Bonus  `mapstructure:"title_bonuses"`
		KeywordBonuses []Bonus  `mapstructure:"keyword_bonuses"`
		OrgTags        []string `mapstructure:"org_tags"`
		OrgTagBonus    int      `mapstructure:"org_tag_bonus"`
		RatePerMinute  int      `mapstructure:"rate_per_minute"`
		Concurrency    int      `mapstructure:"concurrency"`
	} `mapstructure:"scoring"`

	Apply struct {
		Enabled         bool `mapstructure:"enabled"`
		PoolSize        int  `mapstructure:"pool_size"`
		VerifyWindowSec int  `mapstructure:"verify_window_seconds"`
		StepRetries     int  `mapstructure:"step_retries"`
		Headless        bool `mapstructure:"headless"`
	} `mapstructure:"apply"`

	FollowUp struct {
		FirstAfterDays int `mapstructure:"first_after_days"`
		FinalAfterDays int `mapstructure:"final_after_days"`
		IntervalHours  int `mapstructure:"interval_hours"`
	} `mapstructure:"follow_up"`

	IMAP struct {
		Enabled             bool     `mapstructure:"enabled"`
		Host                string   `mapstructure:"host"`
		Username            string   `mapstructure:"username"`
		Folders             []string `mapstructure:"folders"`
		ScanIntervalMinutes int      `mapstructure:"scan_interval_minutes"`
	} `mapstructure:"imap"`

	SMTP struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		From    string `mapstructure:"from"`
	} `mapstructure:"smtp"`

	Gemini struct {
		Enabled bool   `mapstructure:"enabled"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"gemini"`

	Outreach struct {
		Contacts []OutreachContact `mapstructure:"contacts"`
	} `mapstructure:"outreach"`

	Notify struct {
		WebhookURL string `mapstructure:"webhook_url"`
	} `mapstructure:"notify"`

	ProfilePath string `mapstructure:"profile_path"`
}

// SourceConfig enables one adapter and lists its boards.
type SourceConfig struct {
	Enabled   bool      `mapstructure:"enabled"`
	Companies []Company `mapstructure:"companies"`
}

type Company struct {
	Slug string `mapstructure:"slug"`
	Name string `mapstructure:"name"`
}

// OutreachContact is a pre-researched recruiting contact for a company.
type OutreachContact struct {
	Company  string `mapstructure:"company"`
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Verified bool   `mapstructure:"verified"`
}

// Bonus is one deterministic scoring rule: any needle hit adds Weight.
type Bonus struct {
	Tag    string   `mapstructure:"tag"`
	Weight int      `mapstructure:"weight"`
	Any    []string `mapstructure:"any"`
}

// Load reads the config file at path and unmarshals it.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".")
	v.SetDefault("app.listen_addr", "127.0.0.1:38491")
	v.SetDefault("cycle.interval_minutes", 60)
	v.SetDefault("cycle.budget_minutes", 45)
	v.SetDefault("routing.apply_threshold", 75)
	v.SetDefault("routing.outreach_threshold", 60)
	v.SetDefault("routing.review_threshold", 45)
	v.SetDefault("routing.max_daily_applications", 10)
	v.SetDefault("routing.max_daily_outreach", 15)
	v.SetDefault("dedup.ttl_days", 14)
	v.SetDefault("sources.timeout_seconds", 120)
	v.SetDefault("gate.mismatch_penalty", 20)
	v.SetDefault("scoring.rate_per_minute", 30)
	v.SetDefault("scoring.concurrency", 4)
	v.SetDefault("apply.pool_size", 2)
	v.SetDefault("apply.verify_window_seconds", 180)
	v.SetDefault("apply.step_retries", 2)
	v.SetDefault("apply.headless", true)
	v.SetDefault("follow_up.first_after_days", 3)
	v.SetDefault("follow_up.final_after_days", 8)
	v.SetDefault("follow_up.interval_hours", 12)
	v.SetDefault("imap.folders", []string{"INBOX"})
	v.SetDefault("imap.scan_interval_minutes", 15)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("profile_path", "profile.yml")
}

// CycleInterval returns the orchestrator tick period.
func (c Config) CycleInterval() time.Duration {
	return time.Duration(c.Cycle.IntervalMinutes) * time.Minute
}

// CycleBudget returns the hard wall-clock limit for one cycle.
func (c Config) CycleBudget() time.Duration {
	return time.Duration(c.Cycle.BudgetMinutes) * time.Minute
}

// SourceTimeout is the per-adapter fetch deadline.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSec) * time.Second
}

// VerifyWindow is how long the executor polls the mailbox for a code.
func (c Config) VerifyWindow() time.Duration {
	return time.Duration(c.Apply.VerifyWindowSec) * time.Second
}
