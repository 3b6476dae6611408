package score

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"jobpilot/internal/ai"
	"jobpilot/internal/config"
	"jobpilot/internal/domain"
	"jobpilot/internal/profile"
	"jobpilot/internal/retry"
)

// Breakdown shows how one posting's score was assembled.
type Breakdown struct {
	AIScore   int
	AIFell    bool // true when the heuristic fallback was used
	Bonus     int
	Tags      []string
	Penalty   int
	Final     int
	Rationale string
}

// Scorer merges the AI assessment with deterministic bonuses and the gate
// penalty. All stages feed one aggregation so the combination stays
// testable in a single place.
type Scorer struct {
	cfg     config.Config
	ai      ai.Scorer // nil when the capability is disabled
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg config.Config, aiScorer ai.Scorer, logger *zap.Logger) *Scorer {
	perMin := cfg.Scoring.RatePerMinute
	if perMin <= 0 {
		perMin = 30
	}
	return &Scorer{
		cfg:     cfg,
		ai:      aiScorer,
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 5),
		logger:  logger,
	}
}

// Score rates p in [0,100]. A scoring-capability failure degrades to the
// keyword heuristic; a posting is never dropped for a scoring error.
func (s *Scorer) Score(ctx context.Context, p domain.JobPosting, prof profile.Profile, penalty int) Breakdown {
	b := Breakdown{Penalty: penalty}

	b.AIScore, b.Rationale, b.AIFell = s.aiStage(ctx, p, prof)
	b.Bonus, b.Tags = s.bonusStage(p)
	b.Final = clamp(b.AIScore + b.Bonus - b.Penalty)
	return b
}

func (s *Scorer) aiStage(ctx context.Context, p domain.JobPosting, prof profile.Profile) (value int, rationale string, fell bool) {
	if s.ai == nil {
		return s.heuristic(p), "keyword heuristic (ai disabled)", true
	}

	var assessment *ai.Assessment
	err := retry.Do(ctx, 3, 2*time.Second, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		actx, cancel := context.WithTimeout(ctx, 45*time.Second)
		defer cancel()

		a, err := s.ai.ScorePosting(actx, p, prof)
		if err != nil {
			return err
		}
		assessment = a
		return nil
	})
	if err != nil {
		s.logger.Warn("scoring capability failed, using heuristic",
			zap.String("fingerprint", p.Fingerprint), zap.Error(err))
		return s.heuristic(p), "keyword heuristic (ai failure)", true
	}

	return clamp(assessment.Score), assessment.Rationale, false
}

// heuristic is the keyword-only fallback: bonus rules scaled onto the
// 0..100 range so a degraded posting still routes sensibly.
func (s *Scorer) heuristic(p domain.JobPosting) int {
	bonus, _ := s.bonusStage(p)
	return clamp(40 + bonus)
}

func (s *Scorer) bonusStage(p domain.JobPosting) (int, []string) {
	title := strings.ToLower(p.Title)
	text := strings.ToLower(p.Title + " " + p.Description)

	total := 0
	var tags []string

	apply := func(rules []config.Bonus, haystack string) {
		for _, r := range rules {
			for _, needle := range r.Any {
				n := strings.ToLower(strings.TrimSpace(needle))
				if n == "" {
					continue
				}
				if strings.Contains(haystack, n) {
					total += r.Weight
					tags = append(tags, r.Tag)
					break
				}
			}
		}
	}

	apply(s.cfg.Scoring.TitleBonuses, title)
	apply(s.cfg.Scoring.KeywordBonuses, text)

	company := strings.ToLower(p.Company)
	for _, tag := range s.cfg.Scoring.OrgTags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t != "" && (strings.Contains(company, t) || strings.Contains(text, t)) {
			total += s.cfg.Scoring.OrgTagBonus
			tags = append(tags, "org:"+t)
			break
		}
	}

	return total, uniq(tags)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func uniq(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
