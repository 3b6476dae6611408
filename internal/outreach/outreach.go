package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobpilot/internal/ai"
	"jobpilot/internal/domain"
	"jobpilot/internal/mailer"
	"jobpilot/internal/profile"
	"jobpilot/internal/retry"
)

// Contact is a researched company contact. Verified means the address was
// confirmed deliverable, not merely guessed.
type Contact struct {
	Name     string
	Email    string
	Verified bool
}

// Researcher resolves a contact for a company. Implementations degrade to
// (Contact{}, false, nil) when nothing reliable is found.
type Researcher interface {
	ResolveContact(ctx context.Context, company string) (Contact, bool, error)
}

// Log is the append-only persistence slice the dispatcher writes to.
type Log interface {
	AppendOutreach(ctx context.Context, m domain.OutreachMessage) error
}

// Dispatcher generates personalized outreach and either sends it directly
// or places it on the manual-send queue.
type Dispatcher struct {
	researcher Researcher
	generator  ai.Generator  // nil: template message
	sender     mailer.Sender // nil: everything queues
	log        Log
	logger     *zap.Logger
	now        func() time.Time
}

func NewDispatcher(researcher Researcher, generator ai.Generator, sender mailer.Sender, log Log, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		researcher: researcher,
		generator:  generator,
		sender:     sender,
		log:        log,
		logger:     logger,
		now:        time.Now,
	}
}

// Dispatch produces and routes one outreach message for p. Messages without
// a verified address, or without a programmatic send path, land on the
// manual queue instead of being dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, p domain.JobPosting, prof profile.Profile) (domain.OutreachMessage, error) {
	contact, found, err := d.researcher.ResolveContact(ctx, p.Company)
	if err != nil {
		d.logger.Warn("contact research failed",
			zap.String("company", p.Company), zap.Error(err))
		found = false
	}

	subject := fmt.Sprintf("%s — %s", p.Title, prof.FullName)
	content := d.compose(ctx, p, prof, contact)

	msg := domain.OutreachMessage{
		ID:             uuid.NewString(),
		JobFingerprint: p.Fingerprint,
		Company:        p.Company,
		Contact:        contact.Name,
		ContactEmail:   contact.Email,
		Subject:        subject,
		Content:        content,
	}

	now := d.now()
	if found && contact.Verified && contact.Email != "" && d.sender != nil {
		err := retry.Do(ctx, 3, 2*time.Second, func() error {
			return d.sender.Send(ctx, contact.Email, subject, content)
		})
		if err == nil {
			msg.Channel = domain.ChannelEmail
			msg.SentAt = &now
			d.logger.Info("outreach sent",
				zap.String("company", p.Company), zap.String("to", contact.Email))
		} else {
			// failed sends degrade to the queue, same as no-send-path channels
			d.logger.Warn("outreach send failed, queueing",
				zap.String("company", p.Company), zap.Error(err))
			msg.Channel = domain.ChannelManualQueue
			msg.QueuedAt = &now
		}
	} else {
		msg.Channel = domain.ChannelManualQueue
		msg.QueuedAt = &now
		d.logger.Info("outreach queued for manual send",
			zap.String("company", p.Company))
	}

	if err := d.log.AppendOutreach(ctx, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func (d *Dispatcher) compose(ctx context.Context, p domain.JobPosting, prof profile.Profile, contact Contact) string {
	greeting := "Hello"
	if contact.Name != "" {
		greeting = "Hi " + contact.Name
	}
	fallback := fmt.Sprintf(
		"%s,\n\nI came across the %s opening at %s and it lines up closely with my background: %s\n\nI'd love to talk if the role is still open.\n\n%s",
		greeting, p.Title, p.Company, prof.Summary, prof.FullName)

	if d.generator == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`Write a short, warm, specific outreach email (under 150 words)
from a candidate to a company contact about an open role. Plain text only.

Candidate: %s
Candidate summary: %s
Contact name: %s
Company: %s
Role: %s
Posting excerpt: %s`,
		prof.FullName, prof.Summary, contact.Name, p.Company, p.Title, clip(p.Description, 2000))

	var out string
	err := retry.Do(ctx, 2, 2*time.Second, func() error {
		gctx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		text, err := d.generator.Generate(gctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		d.logger.Warn("outreach generation failed, using template",
			zap.String("company", p.Company), zap.Error(err))
		return fallback
	}
	return out
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
