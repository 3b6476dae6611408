package followup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/retry"
)

type fakeStore struct {
	mu       sync.Mutex
	open     []domain.OutreachMessage
	advanced map[string]int // id -> claimed stage
	denyAll  bool
}

func (f *fakeStore) OpenOutreach(_ context.Context) ([]domain.OutreachMessage, error) {
	return f.open, nil
}

func (f *fakeStore) AdvanceFollowUp(_ context.Context, id string, stage int, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyAll {
		return false, nil
	}
	if f.advanced == nil {
		f.advanced = map[string]int{}
	}
	if prev, ok := f.advanced[id]; ok && prev >= stage {
		return false, nil
	}
	f.advanced[id] = stage
	return true, nil
}

func (f *fakeStore) ReleaseFollowUp(_ context.Context, id string, claimedStage, priorStage int, _ *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advanced[id] != claimedStage {
		return false, nil
	}
	if priorStage == 0 {
		delete(f.advanced, id)
	} else {
		f.advanced[id] = priorStage
	}
	return true, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string // "to|subject"
}

func (f *fakeSender) Send(_ context.Context, to, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func sentAt(daysAgo int, now time.Time) *time.Time {
	t := now.Add(-time.Duration(daysAgo) * 24 * time.Hour)
	return &t
}

func msg(id string, stage int, daysAgo int, now time.Time) domain.OutreachMessage {
	return domain.OutreachMessage{
		ID:            id,
		Company:       "Acme Corp",
		Contact:       "Sam",
		ContactEmail:  "sam@acme.example",
		Subject:       "Go Engineer",
		Channel:       domain.ChannelEmail,
		SentAt:        sentAt(daysAgo, now),
		FollowUpStage: stage,
	}
}

func newTestEngine(store Store, sender *fakeSender) *Engine {
	return New(store, sender, 3, 8, zap.NewNop())
}

func TestScanSendsFirstFollowUp(t *testing.T) {
	now := time.Now()
	store := &fakeStore{open: []domain.OutreachMessage{msg("o1", 0, 4, now)}}
	sender := &fakeSender{}
	e := newTestEngine(store, sender)

	followed, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(followed) != 1 || followed[0].FollowUpStage != 1 {
		t.Fatalf("followed = %+v, want stage 1 for o1", followed)
	}
	if store.advanced["o1"] != 1 {
		t.Fatal("stage not claimed in store")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
}

func TestScanStageSchedule(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name      string
		m         domain.OutreachMessage
		wantStage int
		wantSend  bool
	}{
		{"too early", msg("a", 0, 2, now), 0, false},
		{"first window opens", msg("b", 0, 3, now), 1, true},
		{"still in first window", msg("c", 0, 7, now), 1, true},
		{"final window", msg("d", 1, 9, now), 2, true},
		{"final skips missed first", msg("e", 0, 10, now), 2, true},
		{"already final", msg("f", 2, 20, now), 0, false},
	}
	for _, tc := range cases {
		store := &fakeStore{open: []domain.OutreachMessage{tc.m}}
		sender := &fakeSender{}
		e := newTestEngine(store, sender)

		followed, err := e.Scan(context.Background())
		if err != nil {
			t.Fatalf("%s: Scan: %v", tc.name, err)
		}
		if tc.wantSend {
			if len(followed) != 1 || followed[0].FollowUpStage != tc.wantStage {
				t.Fatalf("%s: followed = %+v, want stage %d", tc.name, followed, tc.wantStage)
			}
		} else if len(followed) != 0 {
			t.Fatalf("%s: unexpected follow-up %+v", tc.name, followed)
		}
	}
}

func TestScanStopsOnResponse(t *testing.T) {
	now := time.Now()
	m := msg("o1", 0, 5, now)
	m.ResponseDetected = true

	store := &fakeStore{open: []domain.OutreachMessage{m}}
	sender := &fakeSender{}
	e := newTestEngine(store, sender)

	followed, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(followed) != 0 || len(sender.sent) != 0 {
		t.Fatal("answered outreach must never be followed up")
	}
}

func TestScanHonorsDoNotFollowUp(t *testing.T) {
	now := time.Now()
	m := msg("o1", 0, 5, now)
	m.DoNotFollowUp = true

	store := &fakeStore{open: []domain.OutreachMessage{m}}
	sender := &fakeSender{}
	e := newTestEngine(store, sender)

	followed, _ := e.Scan(context.Background())
	if len(followed) != 0 {
		t.Fatal("do-not-follow-up must suppress escalation")
	}
}

func TestScanLosingClaimDoesNotSend(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		open:    []domain.OutreachMessage{msg("o1", 0, 4, now)},
		denyAll: true, // another scan already claimed the stage
	}
	sender := &fakeSender{}
	e := newTestEngine(store, sender)

	followed, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(followed) != 0 || len(sender.sent) != 0 {
		t.Fatal("a lost claim must not produce a send")
	}
}

type flakySender struct {
	fakeSender
	failFirst bool
}

func (f *flakySender) Send(ctx context.Context, to, subject, body string) error {
	if f.failFirst {
		f.failFirst = false
		return retry.Permanent(errors.New("smtp unavailable"))
	}
	return f.fakeSender.Send(ctx, to, subject, body)
}

func TestScanFailedSendReleasesClaim(t *testing.T) {
	now := time.Now()
	store := &fakeStore{open: []domain.OutreachMessage{msg("o1", 0, 4, now)}}
	sender := &flakySender{failFirst: true}
	e := New(store, sender, 3, 8, zap.NewNop())

	followed, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(followed) != 0 {
		t.Fatalf("failed send reported as followed: %+v", followed)
	}
	if _, claimed := store.advanced["o1"]; claimed {
		t.Fatal("claim must be released when the send fails")
	}

	// the stage is still owed, so the next scan picks it up again
	followed, err = e.Scan(context.Background())
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if len(followed) != 1 || followed[0].FollowUpStage != 1 {
		t.Fatalf("followed = %+v, want retried stage 1", followed)
	}
	if store.advanced["o1"] != 1 {
		t.Fatal("retried stage not claimed")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want exactly 1", len(sender.sent))
	}
}

func TestScanSkipsUnsentQueueEntries(t *testing.T) {
	m := domain.OutreachMessage{
		ID:           "queued",
		Company:      "Acme Corp",
		ContactEmail: "sam@acme.example",
		Channel:      domain.ChannelManualQueue,
	}
	store := &fakeStore{open: []domain.OutreachMessage{m}}
	sender := &fakeSender{}
	e := newTestEngine(store, sender)

	followed, _ := e.Scan(context.Background())
	if len(followed) != 0 {
		t.Fatal("never-sent messages have no follow-up clock")
	}
}
