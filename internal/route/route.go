package route

import (
	"jobpilot/internal/domain"
)

// Thresholds are the tier cutoffs, ordered apply >= outreach >= review.
type Thresholds struct {
	Apply    int
	Outreach int
	Review   int
}

// Route is a pure function from score and remaining caps to a tier.
// A posting that clears the apply threshold with no apply slots left falls
// through to OUTREACH when that cap allows it: score-tier demotion beats
// discarding a strong match outright.
func Route(score int, caps domain.Caps, t Thresholds) domain.Outcome {
	switch {
	case score >= t.Apply && caps.Applications > 0:
		return domain.OutcomeAutoApply
	case score >= t.Outreach && caps.Outreach > 0:
		return domain.OutcomeOutreach
	case score >= t.Review:
		return domain.OutcomeReview
	default:
		return domain.OutcomeDiscard
	}
}
