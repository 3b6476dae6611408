package ai

import (
	"context"

	"jobpilot/internal/domain"
	"jobpilot/internal/profile"
)

// Assessment is the scoring capability's verdict on one posting.
type Assessment struct {
	Score     int
	Rationale string
	Raw       string
}

// Verdict is the classification capability's result for one inbox message.
type Verdict struct {
	Class      domain.ReplyClass
	Confidence float64
	Raw        string
}

// Scorer rates a posting against the candidate profile.
type Scorer interface {
	ScorePosting(ctx context.Context, p domain.JobPosting, prof profile.Profile) (*Assessment, error)
}

// Generator produces free text from a prompt (cover letters, outreach).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier sorts an inbox message into a reply class.
type Classifier interface {
	ClassifyReply(ctx context.Context, from, subject, body string) (*Verdict, error)
}
