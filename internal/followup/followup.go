package followup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/mailer"
	"jobpilot/internal/retry"
)

// Store is the persistence slice the engine scans and advances.
type Store interface {
	OpenOutreach(ctx context.Context) ([]domain.OutreachMessage, error)
	AdvanceFollowUp(ctx context.Context, id string, stage int, at time.Time) (bool, error)
	ReleaseFollowUp(ctx context.Context, id string, claimedStage, priorStage int, priorAt *time.Time) (bool, error)
}

// Engine escalates unanswered outreach: one follow-up after FirstAfterDays,
// one final follow-up after FinalAfterDays, never more.
type Engine struct {
	store          Store
	sender         mailer.Sender
	firstAfterDays int
	finalAfterDays int
	logger         *zap.Logger
	now            func() time.Time
}

func New(store Store, sender mailer.Sender, firstAfterDays, finalAfterDays int, logger *zap.Logger) *Engine {
	return &Engine{
		store:          store,
		sender:         sender,
		firstAfterDays: firstAfterDays,
		finalAfterDays: finalAfterDays,
		logger:         logger,
		now:            time.Now,
	}
}

// Scan walks open outreach and sends whatever escalation is due today.
// Returns the messages that were followed up.
func (e *Engine) Scan(ctx context.Context) ([]domain.OutreachMessage, error) {
	open, err := e.store.OpenOutreach(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var followed []domain.OutreachMessage

	for _, m := range open {
		stage, due := e.dueStage(m, now)
		if !due {
			continue
		}

		// claim the stage first; the WHERE guard in the store makes an
		// overlapping scan lose the race instead of double-sending
		claimed, err := e.store.AdvanceFollowUp(ctx, m.ID, stage, now)
		if err != nil {
			return followed, err
		}
		if !claimed {
			continue
		}

		if err := e.send(ctx, m, stage); err != nil {
			// give the stage back so the next scan retries it
			if _, rerr := e.store.ReleaseFollowUp(ctx, m.ID, stage, m.FollowUpStage, m.LastFollowUpAt); rerr != nil {
				e.logger.Error("follow-up claim release failed",
					zap.String("outreach_id", m.ID), zap.Error(rerr))
			}
			e.logger.Warn("follow-up send failed",
				zap.String("outreach_id", m.ID), zap.Int("stage", stage), zap.Error(err))
			continue
		}

		m.FollowUpStage = stage
		m.LastFollowUpAt = &now
		followed = append(followed, m)

		e.logger.Info("follow-up sent",
			zap.String("company", m.Company),
			zap.String("to", m.ContactEmail),
			zap.Int("stage", stage),
		)
	}
	return followed, nil
}

// dueStage maps elapsed time since the original send onto the next stage.
func (e *Engine) dueStage(m domain.OutreachMessage, now time.Time) (int, bool) {
	if m.SentAt == nil || m.ResponseDetected || m.DoNotFollowUp || m.ContactEmail == "" {
		return 0, false
	}

	days := int(now.Sub(*m.SentAt).Hours() / 24)
	switch {
	case m.FollowUpStage == 0 && days >= e.firstAfterDays && days < e.finalAfterDays:
		return 1, true
	case m.FollowUpStage <= 1 && days >= e.finalAfterDays:
		return 2, true
	default:
		return 0, false
	}
}

func (e *Engine) send(ctx context.Context, m domain.OutreachMessage, stage int) error {
	if e.sender == nil {
		return fmt.Errorf("no sender configured")
	}

	subject := "Re: " + m.Subject
	body := fmt.Sprintf(
		"Hi%s,\n\nJust following up on my note about the %s role — I remain very interested and happy to share anything that would help.\n\nBest regards",
		nameSuffix(m.Contact), m.Company)
	if stage == 2 {
		body = fmt.Sprintf(
			"Hi%s,\n\nOne last note on the %s role — if the timing isn't right I completely understand, and I'd welcome staying in touch for future openings.\n\nBest regards",
			nameSuffix(m.Contact), m.Company)
	}

	return retry.Do(ctx, 3, 2*time.Second, func() error {
		return e.sender.Send(ctx, m.ContactEmail, subject, body)
	})
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " " + name
}
