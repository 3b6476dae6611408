package apply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobpilot/internal/ai"
	"jobpilot/internal/config"
	"jobpilot/internal/domain"
	"jobpilot/internal/mailbox"
	"jobpilot/internal/profile"
	"jobpilot/internal/retry"
)

// RecordStore is the slice of persistence the executor needs.
type RecordStore interface {
	LatestApplicationFor(ctx context.Context, fingerprint string) (domain.ApplicationRecord, bool, error)
	SaveApplication(ctx context.Context, r domain.ApplicationRecord) error
}

// MailboxFactory opens a mailbox connection for verification polling.
type MailboxFactory func(ctx context.Context) (mailbox.Mailbox, error)

// Notifier receives operator alerts when automation needs a human.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Executor drives a browser session through a third-party application form,
// including out-of-band email verification.
type Executor struct {
	cfg        config.Config
	store      RecordStore
	newDriver  DriverFactory
	generator  ai.Generator // nil: deterministic fallback letter
	newMailbox MailboxFactory
	folders    []string
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewExecutor(cfg config.Config, store RecordStore, newDriver DriverFactory,
	generator ai.Generator, newMailbox MailboxFactory, notifier Notifier,
	logger *zap.Logger) *Executor {

	folders := cfg.IMAP.Folders
	if len(folders) == 0 {
		folders = []string{"INBOX"}
	}
	return &Executor{
		cfg:        cfg,
		store:      store,
		newDriver:  newDriver,
		generator:  generator,
		newMailbox: newMailbox,
		folders:    folders,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Apply submits one application. If the fingerprint already has a SUBMITTED
// record, no network action happens and that record is returned as-is.
func (e *Executor) Apply(ctx context.Context, p domain.JobPosting, prof profile.Profile) (domain.ApplicationRecord, error) {
	if prev, ok, err := e.store.LatestApplicationFor(ctx, p.Fingerprint); err != nil {
		return domain.ApplicationRecord{}, err
	} else if ok && prev.State == domain.StateSubmitted {
		e.logger.Info("application already submitted, skipping",
			zap.String("fingerprint", p.Fingerprint))
		return prev, nil
	}

	now := e.now()
	rec := domain.ApplicationRecord{
		ID:             uuid.NewString(),
		JobFingerprint: p.Fingerprint,
		Company:        p.Company,
		Title:          p.Title,
		URL:            p.URL,
		State:          domain.StateDiscovered,
		ContactEmail:   prof.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	variant := prof.SelectResume(p.Title, p.Description)
	rec.ResumeVariant = variant.Name

	_ = rec.Transition(domain.StateScored, e.now())
	_ = rec.Transition(domain.StateRouted, e.now())
	if err := e.store.SaveApplication(ctx, rec); err != nil {
		return rec, err
	}

	letter := e.coverLetter(ctx, p, prof)
	rec.CoverLetterRef = letterRef(rec.ID)

	err := e.submit(ctx, &rec, p, prof, variant, letter)
	if saveErr := e.store.SaveApplication(ctx, rec); saveErr != nil && err == nil {
		err = saveErr
	}
	return rec, err
}

func (e *Executor) submit(ctx context.Context, rec *domain.ApplicationRecord,
	p domain.JobPosting, prof profile.Profile, variant profile.ResumeVariant, letter string) error {

	_ = rec.Transition(domain.StateSubmitting, e.now())

	driver, err := e.newDriver(ctx)
	if err != nil {
		return e.fail(rec, domain.FailSession, err)
	}
	defer driver.Close()

	attempts := e.cfg.Apply.StepRetries + 1

	if err := retry.Do(ctx, attempts, time.Second, func() error {
		return driver.Open(ctx, p.URL)
	}); err != nil {
		return e.fail(rec, domain.FailSession, err)
	}

	form, err := e.resolve(ctx, driver)
	if err != nil {
		return e.fail(rec, domain.FailFieldNotFound, err)
	}

	if err := e.fillForm(ctx, driver, form, prof, variant, letter); err != nil {
		return e.fail(rec, domain.FailFieldNotFound, err)
	}

	if err := retry.Do(ctx, attempts, time.Second, func() error {
		return driver.Click(ctx, form.SubmitSelector)
	}); err != nil {
		return e.fail(rec, domain.FailSubmitRejected, err)
	}

	after, err := e.resolve(ctx, driver)
	if err == nil {
		if codeField, needed := after.Find(FieldVerifyCode); needed {
			_ = rec.Transition(domain.StateVerifying, e.now())
			if err := e.verify(ctx, driver, codeField, after.SubmitSelector, rec.CreatedAt); err != nil {
				reason := domain.FailVerificationTimeout
				if errors.Is(err, errMailboxDown) {
					reason = domain.FailMailbox
				}
				return e.fail(rec, reason, err)
			}
		}
	}

	ok, err := e.confirm(ctx, driver)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("no submission confirmation on page")
		}
		return e.fail(rec, domain.FailSubmitRejected, err)
	}

	_ = rec.Transition(domain.StateSubmitted, e.now())
	e.logger.Info("application submitted",
		zap.String("fingerprint", p.Fingerprint),
		zap.String("company", p.Company),
		zap.String("resume_variant", variant.Name),
	)
	return nil
}

func (e *Executor) resolve(ctx context.Context, driver FormDriver) (Form, error) {
	var form Form
	err := retry.Do(ctx, e.cfg.Apply.StepRetries+1, time.Second, func() error {
		html, err := driver.PageHTML(ctx)
		if err != nil {
			return err
		}
		f, err := ResolveForm(html)
		if err != nil {
			return err
		}
		if len(f.Fields) == 0 {
			return errors.New("no form fields on page")
		}
		form = f
		return nil
	})
	return form, err
}

func (e *Executor) fillForm(ctx context.Context, driver FormDriver, form Form,
	prof profile.Profile, variant profile.ResumeVariant, letter string) error {

	first, last := splitName(prof.FullName)
	values := map[FieldKind]string{
		FieldFullName:  prof.FullName,
		FieldFirstName: first,
		FieldLastName:  last,
		FieldEmail:     prof.Email,
		FieldPhone:     prof.Phone,
		FieldLocation:  prof.Location,
		FieldLinkedIn:  prof.LinkedIn,
		FieldWebsite:   prof.Website,
	}

	attempts := e.cfg.Apply.StepRetries + 1
	filledEmail := false

	for _, f := range form.Fields {
		f := f
		switch f.Kind {
		case FieldResume:
			if err := retry.Do(ctx, attempts, time.Second, func() error {
				return driver.SetFile(ctx, f.Selector, variant.Path)
			}); err != nil {
				return fmt.Errorf("upload resume: %w", err)
			}
		case FieldCoverLetter:
			if f.Input == "textarea" {
				if err := e.fill(ctx, driver, f.Selector, letter); err != nil {
					return err
				}
			}
		case FieldQuestion:
			ans, ok := prof.Answer(f.Label)
			if !ok && f.Required {
				return fmt.Errorf("no answer for required question %q", f.Label)
			}
			if ok {
				if err := e.fill(ctx, driver, f.Selector, ans); err != nil {
					return err
				}
			}
		case FieldVerifyCode:
			// handled after submit
		default:
			v := values[f.Kind]
			if v == "" {
				if f.Required {
					return fmt.Errorf("no profile value for required field %q", f.Label)
				}
				continue
			}
			if err := e.fill(ctx, driver, f.Selector, v); err != nil {
				return err
			}
			if f.Kind == FieldEmail {
				filledEmail = true
			}
		}
	}

	if !filledEmail {
		return errors.New("email field not found on form")
	}
	return nil
}

func (e *Executor) fill(ctx context.Context, driver FormDriver, selector, value string) error {
	return retry.Do(ctx, e.cfg.Apply.StepRetries+1, time.Second, func() error {
		return driver.Fill(ctx, selector, value)
	})
}

var confirmWords = []string{
	"thank you", "application received", "application submitted",
	"successfully submitted", "we have received", "application complete",
}

func (e *Executor) confirm(ctx context.Context, driver FormDriver) (bool, error) {
	html, err := driver.PageHTML(ctx)
	if err != nil {
		return false, err
	}
	low := strings.ToLower(html)
	for _, w := range confirmWords {
		if strings.Contains(low, w) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Executor) coverLetter(ctx context.Context, p domain.JobPosting, prof profile.Profile) string {
	fallback := fmt.Sprintf(
		"Dear %s hiring team,\n\nI am excited to apply for the %s role. %s\n\nBest regards,\n%s",
		p.Company, p.Title, prof.Summary, prof.FullName)

	if e.generator == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`Write a short, specific cover letter (under 200 words)
for the posting below. No placeholders, no markdown.

Candidate: %s
Summary: %s

Company: %s
Role: %s
Description: %s`,
		prof.FullName, prof.Summary, p.Company, p.Title, truncate(p.Description, 3000))

	var letter string
	err := retry.Do(ctx, 2, 2*time.Second, func() error {
		gctx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		out, err := e.generator.Generate(gctx, prompt)
		if err != nil {
			return err
		}
		letter = out
		return nil
	})
	if err != nil {
		e.logger.Warn("cover letter generation failed, using fallback",
			zap.String("fingerprint", p.Fingerprint), zap.Error(err))
		return fallback
	}
	return letter
}

func (e *Executor) fail(rec *domain.ApplicationRecord, reason string, err error) error {
	rec.FailureReason = reason
	_ = rec.Transition(domain.StateFailed, e.now())
	e.logger.Warn("application failed",
		zap.String("fingerprint", rec.JobFingerprint),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", reason, err)
}

func letterRef(recordID string) string {
	return "cover-letter:" + recordID
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
