package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobpilot/internal/ai"
	"jobpilot/internal/ai/gemini"
	"jobpilot/internal/apply"
	"jobpilot/internal/classify"
	"jobpilot/internal/config"
	"jobpilot/internal/discover"
	"jobpilot/internal/events"
	"jobpilot/internal/followup"
	"jobpilot/internal/gate"
	"jobpilot/internal/httpapi"
	"jobpilot/internal/logger"
	"jobpilot/internal/mailbox"
	"jobpilot/internal/mailer"
	"jobpilot/internal/notify"
	"jobpilot/internal/orchestrator"
	"jobpilot/internal/outreach"
	"jobpilot/internal/profile"
	"jobpilot/internal/scheduler"
	"jobpilot/internal/score"
	"jobpilot/internal/secrets"
	"jobpilot/internal/source"
	"jobpilot/internal/source/greenhouse"
	"jobpilot/internal/source/lever"
	"jobpilot/internal/source/smartrecruiters"
	"jobpilot/internal/source/workday"
	"jobpilot/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine: periodic discovery cycles, follow-ups, inbox classification, and the local status API",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// engine bundles everything a running instance owns.
type engine struct {
	cfg        config.Config
	db         *store.DB
	hub        *events.Hub
	orch       *orchestrator.Orchestrator
	followUp   *followup.Engine
	classifier *classify.Scanner // nil when IMAP or AI is off
	lock       *flock.Flock
	logger     *zap.Logger
}

func (e *engine) close() {
	_ = e.db.Close()
	_ = e.lock.Unlock()
	_ = e.logger.Sync()
}

func run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := buildEngine(ctx)
	defer eng.close()

	srv := httpapi.New(eng.db, eng.hub, eng.orch, eng.logger)
	go func() {
		if err := srv.Serve(ctx, eng.cfg.App.ListenAddr); err != nil {
			eng.logger.Error("http api stopped", zap.Error(err))
		}
	}()

	go scheduler.Every(ctx, eng.cfg.CycleInterval(), "cycle", eng.logger, func(ctx context.Context) error {
		_, err := eng.orch.RunCycle(ctx)
		return err
	})

	go scheduler.Every(ctx, time.Duration(eng.cfg.FollowUp.IntervalHours)*time.Hour, "follow_up", eng.logger, func(ctx context.Context) error {
		_, err := eng.followUp.Scan(ctx)
		return err
	})

	if eng.classifier != nil {
		go scheduler.Every(ctx, time.Duration(eng.cfg.IMAP.ScanIntervalMinutes)*time.Minute, "classify", eng.logger, func(ctx context.Context) error {
			_, err := eng.classifier.Scan(ctx)
			return err
		})
	}

	go scheduler.Every(ctx, 24*time.Hour, "prune_seen", eng.logger, func(ctx context.Context) error {
		n, err := eng.db.PruneSeen(ctx, time.Now())
		if n > 0 {
			eng.logger.Info("pruned seen cache", zap.Int64("removed", n))
		}
		return err
	})

	<-ctx.Done()
	eng.logger.Info("shutting down")
}

// buildEngine wires every component from config, profile, and keychain
// secrets. Configuration problems are fatal here, before any network work.
func buildEngine(ctx context.Context) *engine {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		zl.Fatal("creating data dir", zap.Error(err))
	}

	lock := flock.New(filepath.Join(dataDir, app+".lock"))
	held, err := lock.TryLock()
	if err != nil {
		zl.Fatal("acquiring instance lock", zap.Error(err))
	}
	if !held {
		zl.Fatal("another instance already holds the data dir",
			zap.String("lock", lock.Path()))
	}

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath, err = config.EnsureUserConfig(dataDir, "config.yml")
		if err != nil {
			zl.Fatal("locating config",
				zap.Error(err),
				zap.String("hint", "pass --config or put config.yml in the working directory"),
			)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		zl.Fatal("loading config", zap.String("path", cfgPath), zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid config", zap.Error(err))
	}

	prof, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		zl.Fatal("loading profile", zap.String("path", cfg.ProfilePath), zap.Error(err))
	}

	zl.Info("starting "+app, zap.String("version", version), zap.String("config", cfgPath))

	db, err := store.Open(filepath.Join(dataDir, app+".db"))
	if err != nil {
		zl.Fatal("opening database", zap.Error(err))
	}

	hub := events.NewHub()

	var notifier interface {
		Notify(ctx context.Context, subject, body string) error
	}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookSink(cfg.Notify.WebhookURL)
	} else {
		notifier = &notify.LogSink{Logger: zl}
	}

	// AI capability. Everything downstream degrades gracefully when off.
	var (
		generator  ai.Generator
		aiScorer   ai.Scorer
		classifier ai.Classifier
	)
	if cfg.Gemini.Enabled {
		key, err := secrets.Get(secrets.AccountGemini)
		if err != nil {
			zl.Fatal("gemini is enabled but its api key is missing",
				zap.Error(err),
				zap.String("hint", "run: "+app+" secrets set-gemini"),
			)
		}
		gen, err := gemini.NewGenerator(ctx, key, cfg.Gemini.Model)
		if err != nil {
			zl.Fatal("creating gemini client", zap.Error(err))
		}
		assessor := gemini.NewAssessor(gen, zl)
		generator = gen
		aiScorer = assessor
		classifier = assessor
	}

	// Mailbox capability.
	var newMailbox func(ctx context.Context) (mailbox.Mailbox, error)
	if cfg.IMAP.Enabled {
		pass, err := secrets.Get(secrets.IMAPAccount(cfg.IMAP.Username, cfg.IMAP.Host))
		if err != nil {
			zl.Fatal("imap is enabled but its password is missing",
				zap.Error(err),
				zap.String("hint", "run: "+app+" secrets set-imap"),
			)
		}
		host, user := cfg.IMAP.Host, cfg.IMAP.Username
		newMailbox = func(ctx context.Context) (mailbox.Mailbox, error) {
			return mailbox.Connect(ctx, host, user, pass)
		}
	}

	// Send capability.
	var sender mailer.Sender
	if cfg.SMTP.Enabled {
		pass, err := secrets.Get(secrets.SMTPAccount(cfg.SMTP.From, cfg.SMTP.Host))
		if err != nil {
			zl.Fatal("smtp is enabled but its password is missing",
				zap.Error(err),
				zap.String("hint", "run: "+app+" secrets set-smtp"),
			)
		}
		sender = mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.From, cfg.SMTP.From, pass)
	}

	fetchers := buildFetchers(cfg, zl)
	aggregator := discover.NewAggregator(fetchers, db, cfg.SourceTimeout(), zl)
	scorer := score.New(cfg, aiScorer, zl)

	var pool *apply.Pool
	if cfg.Apply.Enabled {
		executor := apply.NewExecutor(cfg, db, apply.NewChromeFactory(cfg.Apply.Headless),
			generator, apply.MailboxFactory(newMailbox), notifier, zl)
		pool = apply.NewPool(executor, cfg.Apply.PoolSize)
	}

	contacts := make(map[string]outreach.Contact, len(cfg.Outreach.Contacts))
	for _, c := range cfg.Outreach.Contacts {
		contacts[c.Company] = outreach.Contact{Name: c.Name, Email: c.Email, Verified: c.Verified}
	}
	dispatcher := outreach.NewDispatcher(outreach.NewStaticResearcher(contacts), generator, sender, db, zl)

	orch := orchestrator.New(cfg, db, aggregator, gate.New(cfg), scorer, pool,
		dispatcher, prof, hub, zl)

	followEngine := followup.New(db, sender, cfg.FollowUp.FirstAfterDays, cfg.FollowUp.FinalAfterDays, zl)

	var scanner *classify.Scanner
	if cfg.IMAP.Enabled && classifier != nil {
		scanner = classify.NewScanner(classify.MailboxFactory(newMailbox), classifier, db,
			notifier, cfg.IMAP.Folders, zl)
	}

	return &engine{
		cfg:        cfg,
		db:         db,
		hub:        hub,
		orch:       orch,
		followUp:   followEngine,
		classifier: scanner,
		lock:       lock,
		logger:     zl,
	}
}

func buildFetchers(cfg config.Config, zl *zap.Logger) []source.Fetcher {
	var fetchers []source.Fetcher
	limiter := source.NewHostLimiter(1, 2)

	if cfg.Sources.Greenhouse.Enabled {
		fetchers = append(fetchers, greenhouse.New(greenhouse.Config{
			Companies: mapGreenhouse(cfg.Sources.Greenhouse.Companies),
		}, limiter, zl))
	}
	if cfg.Sources.Lever.Enabled {
		fetchers = append(fetchers, lever.New(lever.Config{
			Companies: mapLever(cfg.Sources.Lever.Companies),
		}, limiter, zl))
	}
	if cfg.Sources.Workday.Enabled {
		fetchers = append(fetchers, workday.New(workday.Config{
			Companies: mapWorkday(cfg.Sources.Workday.Companies),
		}, limiter, zl))
	}
	if cfg.Sources.SmartRecruiters.Enabled {
		fetchers = append(fetchers, smartrecruiters.New(smartrecruiters.Config{
			Companies: mapSmartRecruiters(cfg.Sources.SmartRecruiters.Companies),
		}, limiter, zl))
	}
	return fetchers
}

func mapGreenhouse(in []config.Company) []greenhouse.Company {
	out := make([]greenhouse.Company, 0, len(in))
	for _, c := range in {
		out = append(out, greenhouse.Company{Slug: c.Slug, Name: c.Name})
	}
	return out
}

func mapLever(in []config.Company) []lever.Company {
	out := make([]lever.Company, 0, len(in))
	for _, c := range in {
		out = append(out, lever.Company{Slug: c.Slug, Name: c.Name})
	}
	return out
}

func mapWorkday(in []config.Company) []workday.Company {
	out := make([]workday.Company, 0, len(in))
	for _, c := range in {
		out = append(out, workday.Company{Slug: c.Slug, Name: c.Name})
	}
	return out
}

func mapSmartRecruiters(in []config.Company) []smartrecruiters.Company {
	out := make([]smartrecruiters.Company, 0, len(in))
	for _, c := range in {
		out = append(out, smartrecruiters.Company{Slug: c.Slug, Name: c.Name})
	}
	return out
}
