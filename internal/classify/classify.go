package classify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobpilot/internal/ai"
	"jobpilot/internal/domain"
	"jobpilot/internal/mailbox"
)

// Store is the persistence slice the classifier reads and writes.
type Store interface {
	SeenMessage(ctx context.Context, folder string, uid uint32) (bool, error)
	SaveClassification(ctx context.Context, m domain.ClassifiedMessage) (bool, error)
	MarkResponseDetected(ctx context.Context, fingerprint, company string) error
	RecentApplications(ctx context.Context, limit int) ([]domain.ApplicationRecord, error)
	OpenOutreach(ctx context.Context) ([]domain.OutreachMessage, error)
}

// Notifier raises the high-priority alert for POSITIVE replies.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// MailboxFactory opens a mailbox connection per scan.
type MailboxFactory func(ctx context.Context) (mailbox.Mailbox, error)

// Scanner periodically classifies unseen inbox messages.
type Scanner struct {
	newMailbox MailboxFactory
	classifier ai.Classifier
	store      Store
	notifier   Notifier
	folders    []string
	lookback   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewScanner(newMailbox MailboxFactory, classifier ai.Classifier, store Store,
	notifier Notifier, folders []string, logger *zap.Logger) *Scanner {

	if len(folders) == 0 {
		folders = []string{"INBOX"}
	}
	return &Scanner{
		newMailbox: newMailbox,
		classifier: classifier,
		store:      store,
		notifier:   notifier,
		folders:    folders,
		lookback:   7 * 24 * time.Hour,
		logger:     logger,
		now:        time.Now,
	}
}

// Scan classifies every not-yet-classified message across all folders and
// returns the new classifications. POSITIVE replies raise an immediate
// notification; these need the fastest human reaction.
func (s *Scanner) Scan(ctx context.Context) ([]domain.ClassifiedMessage, error) {
	mb, err := s.newMailbox(ctx)
	if err != nil {
		return nil, err
	}
	defer mb.Close()

	apps, err := s.store.RecentApplications(ctx, 200)
	if err != nil {
		return nil, err
	}
	open, err := s.store.OpenOutreach(ctx)
	if err != nil {
		return nil, err
	}

	since := s.now().Add(-s.lookback)
	var out []domain.ClassifiedMessage

	for _, folder := range s.folders {
		msgs, err := mb.Search(ctx, folder, since, false)
		if err != nil {
			s.logger.Warn("folder scan failed",
				zap.String("folder", folder), zap.Error(err))
			continue
		}

		for _, m := range msgs {
			seen, err := s.store.SeenMessage(ctx, folder, m.UID)
			if err != nil {
				return out, err
			}
			if seen {
				continue
			}

			cm, err := s.classifyOne(ctx, m, apps, open)
			if err != nil {
				s.logger.Warn("classification failed",
					zap.String("folder", folder),
					zap.Uint32("uid", m.UID),
					zap.Error(err))
				continue
			}

			inserted, err := s.store.SaveClassification(ctx, cm)
			if err != nil {
				return out, err
			}
			if !inserted {
				continue
			}
			out = append(out, cm)

			if cm.Class != domain.ReplySpam {
				fp, company := s.attribution(m, apps, open)
				if fp != "" || company != "" {
					_ = s.store.MarkResponseDetected(ctx, fp, company)
				}
			}

			if cm.Class == domain.ReplyPositive && s.notifier != nil {
				_ = s.notifier.Notify(ctx,
					"positive reply: "+m.Subject,
					"From: "+m.From+"\n\n"+clip(m.Body, 1000))
			}
		}
	}
	return out, nil
}

func (s *Scanner) classifyOne(ctx context.Context, m mailbox.Message,
	apps []domain.ApplicationRecord, open []domain.OutreachMessage) (domain.ClassifiedMessage, error) {

	verdict, err := s.classifier.ClassifyReply(ctx, m.From, m.Subject, m.Body)
	if err != nil {
		return domain.ClassifiedMessage{}, err
	}

	fp, _ := s.attribution(m, apps, open)

	return domain.ClassifiedMessage{
		ID:           uuid.NewString(),
		MessageUID:   m.UID,
		Folder:       m.Folder,
		From:         m.From,
		Subject:      m.Subject,
		Class:        verdict.Class,
		Confidence:   verdict.Confidence,
		MatchedAppID: fp,
		ClassifiedAt: s.now(),
	}, nil
}

// attribution links a reply back to an application or outreach thread by
// sender address or company-name mention.
func (s *Scanner) attribution(m mailbox.Message,
	apps []domain.ApplicationRecord, open []domain.OutreachMessage) (fingerprint, company string) {

	from := strings.ToLower(m.From)
	blob := strings.ToLower(m.Subject + " " + m.Body)

	for _, o := range open {
		if o.ContactEmail != "" && strings.Contains(from, strings.ToLower(o.ContactEmail)) {
			return o.JobFingerprint, o.Company
		}
	}
	for _, a := range apps {
		if a.Company != "" && strings.Contains(blob, strings.ToLower(a.Company)) {
			return a.JobFingerprint, a.Company
		}
	}
	for _, o := range open {
		if o.Company != "" && strings.Contains(blob, strings.ToLower(o.Company)) {
			return o.JobFingerprint, o.Company
		}
	}
	return "", ""
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
