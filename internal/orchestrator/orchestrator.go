package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobpilot/internal/apply"
	"jobpilot/internal/config"
	"jobpilot/internal/discover"
	"jobpilot/internal/domain"
	"jobpilot/internal/events"
	"jobpilot/internal/gate"
	"jobpilot/internal/outreach"
	"jobpilot/internal/profile"
	"jobpilot/internal/route"
	"jobpilot/internal/score"
	"jobpilot/internal/store"
)

// CycleReport summarizes one discovery cycle for the status API.
type CycleReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Discovered int       `json:"discovered"`
	Rejected   int       `json:"rejected"`
	AutoApply  int       `json:"auto_apply"`
	Outreach   int       `json:"outreach"`
	Review     int       `json:"review"`
	Discarded  int       `json:"discarded"`
	Submitted  int       `json:"submitted"`
	Failed     int       `json:"failed"`
	Err        string    `json:"error,omitempty"`
}

// Orchestrator owns the periodic discovery cycle. It is the single reader
// of the seen cache and daily counters per cycle; every other component
// receives state as arguments.
type Orchestrator struct {
	cfg        config.Config
	db         *store.DB
	aggregator *discover.Aggregator
	gate       *gate.Gate
	scorer     *score.Scorer
	pool       *apply.Pool // nil when auto-apply is disabled
	dispatcher *outreach.Dispatcher
	prof       profile.Profile
	hub        *events.Hub
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.Mutex
	last *CycleReport
}

// LastReport returns the most recent cycle report, if any cycle has run.
func (o *Orchestrator) LastReport() (CycleReport, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return CycleReport{}, false
	}
	return *o.last, true
}

func New(cfg config.Config, db *store.DB, aggregator *discover.Aggregator,
	g *gate.Gate, scorer *score.Scorer, pool *apply.Pool,
	dispatcher *outreach.Dispatcher, prof profile.Profile,
	hub *events.Hub, logger *zap.Logger) *Orchestrator {

	return &Orchestrator{
		cfg:        cfg,
		db:         db,
		aggregator: aggregator,
		gate:       g,
		scorer:     scorer,
		pool:       pool,
		dispatcher: dispatcher,
		prof:       prof,
		hub:        hub,
		logger:     logger,
		now:        time.Now,
	}
}

type scored struct {
	posting   domain.JobPosting
	breakdown score.Breakdown
}

// RunCycle executes one bounded-duration cycle: discover, gate, score,
// route in descending score order, execute.
func (o *Orchestrator) RunCycle(parent context.Context) (CycleReport, error) {
	ctx, cancel := context.WithTimeout(parent, o.cfg.CycleBudget())
	defer cancel()

	report := CycleReport{StartedAt: o.now()}
	defer func() {
		report.FinishedAt = o.now()
		o.mu.Lock()
		snap := report
		o.last = &snap
		o.mu.Unlock()
		o.hub.Publish(events.Event{Type: "cycle_finished", Data: report})
	}()

	ttl := time.Duration(o.cfg.Dedup.TTLDays) * 24 * time.Hour

	postings, err := o.aggregator.Discover(ctx)
	if err != nil {
		report.Err = err.Error()
		return report, err
	}
	report.Discovered = len(postings)

	// gate before scoring: hard rejects never cost an AI call
	var admitted []domain.JobPosting
	penalties := map[string]int{}
	for _, p := range postings {
		res := o.gate.Check(p)
		if !res.Pass {
			report.Rejected++
			o.logger.Debug("gate rejected",
				zap.String("title", p.Title),
				zap.String("company", p.Company),
				zap.String("reason", res.Reason),
			)
			if err := o.db.MarkSeen(ctx, p.Fingerprint, domain.OutcomeDiscard, ttl, o.now()); err != nil {
				report.Err = err.Error()
				return report, err
			}
			continue
		}
		penalties[p.Fingerprint] = res.Penalty
		admitted = append(admitted, p)
	}

	batch, err := o.scoreAll(ctx, admitted, penalties)
	if err != nil {
		report.Err = err.Error()
		return report, err
	}

	// highest score claims cap slots first
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].posting.Score > batch[j].posting.Score
	})

	day := domain.DayKey(o.now())
	counters, err := o.db.GetCounters(ctx, day)
	if err != nil {
		report.Err = err.Error()
		return report, err
	}
	caps := counters.Remaining(o.cfg.Routing.MaxDailyApplications, o.cfg.Routing.MaxDailyOutreach)

	thresholds := route.Thresholds{
		Apply:    o.cfg.Routing.ApplyThreshold,
		Outreach: o.cfg.Routing.OutreachThreshold,
		Review:   o.cfg.Routing.ReviewThreshold,
	}

	var toApply, toOutreach []domain.JobPosting
	for i := range batch {
		p := &batch[i].posting

		outcome, err := o.routeWithClaims(ctx, p.Score, &caps, day, thresholds)
		if err != nil {
			report.Err = err.Error()
			return report, err
		}
		p.Outcome = outcome

		switch outcome {
		case domain.OutcomeAutoApply:
			report.AutoApply++
			toApply = append(toApply, *p)
		case domain.OutcomeOutreach:
			report.Outreach++
			toOutreach = append(toOutreach, *p)
		case domain.OutcomeReview:
			report.Review++
		default:
			report.Discarded++
		}

		if err := o.db.UpsertPosting(ctx, *p); err != nil {
			report.Err = err.Error()
			return report, err
		}
		if err := o.db.MarkSeen(ctx, p.Fingerprint, outcome, ttl, o.now()); err != nil {
			report.Err = err.Error()
			return report, err
		}

		o.hub.Publish(events.Event{Type: "posting_routed", Data: map[string]any{
			"fingerprint": p.Fingerprint,
			"company":     p.Company,
			"title":       p.Title,
			"score":       p.Score,
			"outcome":     outcome,
		}})
	}

	o.executeApplications(ctx, toApply, day, ttl, &report)
	o.executeOutreach(ctx, toOutreach, &report)

	o.logger.Info("cycle complete",
		zap.Int("discovered", report.Discovered),
		zap.Int("rejected", report.Rejected),
		zap.Int("auto_apply", report.AutoApply),
		zap.Int("outreach", report.Outreach),
		zap.Int("review", report.Review),
		zap.Int("submitted", report.Submitted),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// scoreAll rates postings with bounded concurrency; the scorer itself
// rate-limits the AI capability.
func (o *Orchestrator) scoreAll(ctx context.Context, postings []domain.JobPosting, penalties map[string]int) ([]scored, error) {
	out := make([]scored, len(postings))

	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.Scoring.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, p := range postings {
		i, p := i, p
		g.Go(func() error {
			b := o.scorer.Score(gctx, p, o.prof, penalties[p.Fingerprint])
			p.Score = b.Final
			out[i] = scored{posting: p, breakdown: b}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// routeWithClaims routes one posting and claims its cap slot in the same
// step. A lost claim re-routes against the now-empty cap, so a posting
// degrades (apply -> outreach -> review) instead of double-spending.
func (o *Orchestrator) routeWithClaims(ctx context.Context, s int, caps *domain.Caps, day string, t route.Thresholds) (domain.Outcome, error) {
	for {
		outcome := route.Route(s, *caps, t)
		switch outcome {
		case domain.OutcomeAutoApply:
			ok, err := o.db.ClaimApplicationSlot(ctx, day, o.cfg.Routing.MaxDailyApplications)
			if err != nil {
				return outcome, err
			}
			if !ok {
				caps.Applications = 0
				continue
			}
			caps.Applications--
			return outcome, nil
		case domain.OutcomeOutreach:
			ok, err := o.db.ClaimOutreachSlot(ctx, day, o.cfg.Routing.MaxDailyOutreach)
			if err != nil {
				return outcome, err
			}
			if !ok {
				caps.Outreach = 0
				continue
			}
			caps.Outreach--
			return outcome, nil
		default:
			return outcome, nil
		}
	}
}

func (o *Orchestrator) executeApplications(ctx context.Context, postings []domain.JobPosting, day string, ttl time.Duration, report *CycleReport) {
	if len(postings) == 0 || o.pool == nil {
		return
	}

	records := o.pool.Run(ctx, postings, o.prof)
	for i, rec := range records {
		p := postings[i]
		switch rec.State {
		case domain.StateSubmitted:
			report.Submitted++
			_ = o.db.MarkSeen(ctx, p.Fingerprint, domain.OutcomeSubmitted, ttl, o.now())
		default:
			report.Failed++
			// a failed attempt gives its slot back and waits out the TTL
			_ = o.db.ReleaseApplicationSlot(ctx, day)
			_ = o.db.MarkSeen(ctx, p.Fingerprint, domain.OutcomeFailed, ttl, o.now())
		}
		o.hub.Publish(events.Event{Type: "application_finished", Data: map[string]any{
			"fingerprint": p.Fingerprint,
			"state":       rec.State,
			"reason":      rec.FailureReason,
		}})
	}
}

func (o *Orchestrator) executeOutreach(ctx context.Context, postings []domain.JobPosting, report *CycleReport) {
	if o.dispatcher == nil {
		return
	}
	for _, p := range postings {
		if _, err := o.dispatcher.Dispatch(ctx, p, o.prof); err != nil {
			o.logger.Warn("outreach dispatch failed",
				zap.String("company", p.Company), zap.Error(err))
		}
	}
}
