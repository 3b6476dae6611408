package outreach

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/profile"
)

type recordingSender struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (r *recordingSender) Send(_ context.Context, to, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, to)
	return nil
}

type memLog struct {
	mu   sync.Mutex
	msgs []domain.OutreachMessage
}

func (m *memLog) AppendOutreach(_ context.Context, msg domain.OutreachMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func dispatchProfile() profile.Profile {
	return profile.Profile{
		FullName: "Ada Example",
		Email:    "ada@example.com",
		Summary:  "Backend engineer.",
	}
}

func dispatchPosting() domain.JobPosting {
	return domain.JobPosting{
		Fingerprint: "fp-acme",
		Company:     "Acme Corp",
		Title:       "Go Engineer",
		Description: "Backend role.",
	}
}

func TestDispatchSendsToVerifiedContact(t *testing.T) {
	researcher := NewStaticResearcher(map[string]Contact{
		"Acme Corp": {Name: "Sam", Email: "sam@acme.example", Verified: true},
	})
	sender := &recordingSender{}
	log := &memLog{}
	d := NewDispatcher(researcher, nil, sender, log, zap.NewNop())

	msg, err := d.Dispatch(context.Background(), dispatchPosting(), dispatchProfile())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if msg.Channel != domain.ChannelEmail || msg.SentAt == nil {
		t.Fatalf("msg = %+v, want sent over email", msg)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "sam@acme.example" {
		t.Fatalf("sent = %v", sender.sent)
	}
	if len(log.msgs) != 1 {
		t.Fatal("message not logged")
	}
	if msg.Content == "" || msg.Subject == "" {
		t.Fatal("empty compose output")
	}
}

func TestDispatchQueuesUnknownCompany(t *testing.T) {
	d := NewDispatcher(NewStaticResearcher(nil), nil, &recordingSender{}, &memLog{}, zap.NewNop())

	msg, err := d.Dispatch(context.Background(), dispatchPosting(), dispatchProfile())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if msg.Channel != domain.ChannelManualQueue || msg.QueuedAt == nil {
		t.Fatalf("msg = %+v, want manual queue", msg)
	}
}

func TestDispatchQueuesUnverifiedContact(t *testing.T) {
	researcher := NewStaticResearcher(map[string]Contact{
		"Acme Corp": {Name: "Sam", Email: "sam@acme.example", Verified: false},
	})
	sender := &recordingSender{}
	d := NewDispatcher(researcher, nil, sender, &memLog{}, zap.NewNop())

	msg, err := d.Dispatch(context.Background(), dispatchPosting(), dispatchProfile())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if msg.Channel != domain.ChannelManualQueue {
		t.Fatal("unverified addresses must never be emailed")
	}
	if len(sender.sent) != 0 {
		t.Fatal("send happened despite unverified contact")
	}
}

func TestDispatchQueuesWithoutSender(t *testing.T) {
	researcher := NewStaticResearcher(map[string]Contact{
		"Acme Corp": {Name: "Sam", Email: "sam@acme.example", Verified: true},
	})
	d := NewDispatcher(researcher, nil, nil, &memLog{}, zap.NewNop())

	msg, err := d.Dispatch(context.Background(), dispatchPosting(), dispatchProfile())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if msg.Channel != domain.ChannelManualQueue {
		t.Fatal("no send path must degrade to the queue")
	}
}

func TestDispatchFailedSendDegradesToQueue(t *testing.T) {
	researcher := NewStaticResearcher(map[string]Contact{
		"Acme Corp": {Name: "Sam", Email: "sam@acme.example", Verified: true},
	})
	sender := &recordingSender{err: errors.New("relay refused")}
	log := &memLog{}
	d := NewDispatcher(researcher, nil, sender, log, zap.NewNop())

	msg, err := d.Dispatch(context.Background(), dispatchPosting(), dispatchProfile())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if msg.Channel != domain.ChannelManualQueue || msg.QueuedAt == nil {
		t.Fatalf("msg = %+v, want queue after failed send", msg)
	}
	if len(log.msgs) != 1 {
		t.Fatal("failed send must still be logged")
	}
}

func TestStaticResearcherNormalizesCompany(t *testing.T) {
	r := NewStaticResearcher(map[string]Contact{
		"  Acme Corp ": {Name: "Sam", Email: "sam@acme.example", Verified: true},
	})
	c, ok, err := r.ResolveContact(context.Background(), "acme corp")
	if err != nil || !ok {
		t.Fatalf("lookup failed: ok=%v err=%v", ok, err)
	}
	if c.Email != "sam@acme.example" {
		t.Fatalf("contact = %+v", c)
	}
}
