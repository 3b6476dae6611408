package score

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"jobpilot/internal/ai"
	"jobpilot/internal/config"
	"jobpilot/internal/domain"
	"jobpilot/internal/profile"
)

type stubScorer struct {
	score int
	err   error
	calls int
}

func (s *stubScorer) ScorePosting(_ context.Context, _ domain.JobPosting, _ profile.Profile) (*ai.Assessment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ai.Assessment{Score: s.score, Rationale: "stub"}, nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Scoring.RatePerMinute = 600
	cfg.Scoring.TitleBonuses = []config.Bonus{
		{Tag: "senior", Weight: 5, Any: []string{"senior", "staff"}},
	}
	cfg.Scoring.KeywordBonuses = []config.Bonus{
		{Tag: "go", Weight: 10, Any: []string{"golang"}},
	}
	cfg.Scoring.OrgTags = []string{"acme"}
	cfg.Scoring.OrgTagBonus = 5
	return cfg
}

func posting() domain.JobPosting {
	return domain.JobPosting{
		Fingerprint: "fp",
		Company:     "Acme Corp",
		Title:       "Senior Golang Engineer",
		Description: "Distributed systems in Golang.",
	}
}

func TestScoreCombinesStages(t *testing.T) {
	stub := &stubScorer{score: 70}
	s := New(testConfig(), stub, zap.NewNop())

	b := s.Score(context.Background(), posting(), profile.Profile{}, 10)
	// bonuses: senior(5) + go(10) + org:acme(5) = 20
	if b.Bonus != 20 {
		t.Fatalf("bonus = %d, want 20", b.Bonus)
	}
	if b.AIScore != 70 || b.AIFell {
		t.Fatalf("ai stage = %d (fell=%v), want 70 from stub", b.AIScore, b.AIFell)
	}
	if b.Final != 80 {
		t.Fatalf("final = %d, want 70+20-10=80", b.Final)
	}
}

func TestScoreClamps(t *testing.T) {
	s := New(testConfig(), &stubScorer{score: 95}, zap.NewNop())

	b := s.Score(context.Background(), posting(), profile.Profile{}, 0)
	if b.Final != 100 {
		t.Fatalf("final = %d, want clamp at 100", b.Final)
	}

	s2 := New(testConfig(), &stubScorer{score: 5}, zap.NewNop())
	b = s2.Score(context.Background(), domain.JobPosting{Title: "Clerk"}, profile.Profile{}, 30)
	if b.Final != 0 {
		t.Fatalf("final = %d, want clamp at 0", b.Final)
	}
}

func TestScoreFallsBackOnFailure(t *testing.T) {
	stub := &stubScorer{err: errors.New("quota exceeded")}
	s := New(testConfig(), stub, zap.NewNop())

	b := s.Score(context.Background(), posting(), profile.Profile{}, 0)
	if !b.AIFell {
		t.Fatal("expected heuristic fallback")
	}
	// heuristic is 40 + bonus(20), then the bonus is added again by the
	// aggregation: 60 + 20 = 80
	if b.Final != 80 {
		t.Fatalf("final = %d, want 80", b.Final)
	}
	if stub.calls != 3 {
		t.Fatalf("expected 3 attempts before fallback, got %d", stub.calls)
	}
}

func TestScoreWithoutCapability(t *testing.T) {
	s := New(testConfig(), nil, zap.NewNop())

	b := s.Score(context.Background(), posting(), profile.Profile{}, 0)
	if !b.AIFell {
		t.Fatal("nil scorer must report fallback")
	}
	if b.AIScore != 60 {
		t.Fatalf("heuristic = %d, want 40+20", b.AIScore)
	}
}
