package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jobpilot/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSeenCacheRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if _, ok, err := db.GetSeen(ctx, "fp1"); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	if err := db.MarkSeen(ctx, "fp1", domain.OutcomeReview, 14*24*time.Hour, now); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	e, ok, err := db.GetSeen(ctx, "fp1")
	if err != nil || !ok {
		t.Fatalf("GetSeen: ok=%v err=%v", ok, err)
	}
	if e.LastOutcome != domain.OutcomeReview {
		t.Fatalf("outcome = %s", e.LastOutcome)
	}
	if e.Reevaluable(now) {
		t.Fatal("fresh entry must not be reevaluable")
	}
	if !e.Reevaluable(now.Add(15 * 24 * time.Hour)) {
		t.Fatal("expired entry must be reevaluable")
	}
}

func TestSeenCacheSubmittedIsSticky(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.MarkSeen(ctx, "fp1", domain.OutcomeSubmitted, time.Hour, now); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	// a later cycle must not downgrade the terminal outcome
	if err := db.MarkSeen(ctx, "fp1", domain.OutcomeDiscard, time.Hour, now.Add(time.Minute)); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	e, _, err := db.GetSeen(ctx, "fp1")
	if err != nil {
		t.Fatalf("GetSeen: %v", err)
	}
	if e.LastOutcome != domain.OutcomeSubmitted {
		t.Fatalf("outcome = %s, want sticky SUBMITTED", e.LastOutcome)
	}
	if e.Reevaluable(now.Add(100 * 24 * time.Hour)) {
		t.Fatal("submitted entry must never be reevaluable")
	}
}

func TestPruneSeenKeepsSubmitted(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	past := time.Now().Add(-30 * 24 * time.Hour)

	_ = db.MarkSeen(ctx, "old-discard", domain.OutcomeDiscard, time.Hour, past)
	_ = db.MarkSeen(ctx, "old-submit", domain.OutcomeSubmitted, time.Hour, past)

	n, err := db.PruneSeen(ctx, time.Now())
	if err != nil {
		t.Fatalf("PruneSeen: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d rows, want 1", n)
	}
	if _, ok, _ := db.GetSeen(ctx, "old-submit"); !ok {
		t.Fatal("submitted entry must survive pruning")
	}
	if _, ok, _ := db.GetSeen(ctx, "old-discard"); ok {
		t.Fatal("expired discard entry must be pruned")
	}
}

func TestClaimSlotsEnforceCap(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	day := domain.DayKey(time.Now())

	for i := 0; i < 3; i++ {
		ok, err := db.ClaimApplicationSlot(ctx, day, 3)
		if err != nil || !ok {
			t.Fatalf("claim %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := db.ClaimApplicationSlot(ctx, day, 3); ok {
		t.Fatal("claim beyond the cap must fail")
	}

	c, err := db.GetCounters(ctx, day)
	if err != nil {
		t.Fatalf("GetCounters: %v", err)
	}
	if c.ApplicationsSent != 3 {
		t.Fatalf("applications_sent = %d", c.ApplicationsSent)
	}

	// outreach counter is independent
	if ok, err := db.ClaimOutreachSlot(ctx, day, 1); err != nil || !ok {
		t.Fatalf("outreach claim: ok=%v err=%v", ok, err)
	}
}

func TestReleaseApplicationSlot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	day := domain.DayKey(time.Now())

	_, _ = db.ClaimApplicationSlot(ctx, day, 1)
	if ok, _ := db.ClaimApplicationSlot(ctx, day, 1); ok {
		t.Fatal("cap should be spent")
	}

	if err := db.ReleaseApplicationSlot(ctx, day); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := db.ClaimApplicationSlot(ctx, day, 1); !ok {
		t.Fatal("released slot must be claimable again")
	}
}

func TestClaimSlotZeroCap(t *testing.T) {
	db := openTestDB(t)
	day := domain.DayKey(time.Now())
	if ok, err := db.ClaimApplicationSlot(context.Background(), day, 0); err != nil || ok {
		t.Fatalf("zero cap claim: ok=%v err=%v", ok, err)
	}
}

func TestCountersDayIsolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, _ = db.ClaimApplicationSlot(ctx, "2026-03-01", 1)
	if ok, _ := db.ClaimApplicationSlot(ctx, "2026-03-02", 1); !ok {
		t.Fatal("a new day must start with a fresh budget")
	}
}

func TestOutreachFollowUpGuards(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	m := domain.OutreachMessage{
		ID:             "o1",
		JobFingerprint: "fp1",
		Company:        "Acme Corp",
		Contact:        "Sam",
		ContactEmail:   "sam@acme.example",
		Channel:        domain.ChannelEmail,
		Subject:        "Go Engineer",
		Content:        "hello",
		SentAt:         &now,
	}
	if err := db.AppendOutreach(ctx, m); err != nil {
		t.Fatalf("AppendOutreach: %v", err)
	}

	open, err := db.OpenOutreach(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("OpenOutreach: %d err=%v", len(open), err)
	}

	ok, err := db.AdvanceFollowUp(ctx, "o1", 1, now)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	// a concurrent scan claiming the same stage loses
	ok, err = db.AdvanceFollowUp(ctx, "o1", 1, now)
	if err != nil || ok {
		t.Fatalf("duplicate claim: ok=%v err=%v", ok, err)
	}

	ok, err = db.AdvanceFollowUp(ctx, "o1", 2, now)
	if err != nil || !ok {
		t.Fatalf("final claim: ok=%v err=%v", ok, err)
	}

	// stage 2 rows leave the open set
	open, err = db.OpenOutreach(ctx)
	if err != nil || len(open) != 0 {
		t.Fatalf("open after final: %d err=%v", len(open), err)
	}
}

func TestReleaseFollowUpReopensStage(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	m := domain.OutreachMessage{
		ID:           "o1",
		Company:      "Acme Corp",
		ContactEmail: "sam@acme.example",
		Channel:      domain.ChannelEmail,
		SentAt:       &now,
	}
	if err := db.AppendOutreach(ctx, m); err != nil {
		t.Fatalf("AppendOutreach: %v", err)
	}

	if ok, err := db.AdvanceFollowUp(ctx, "o1", 1, now); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	// the send failed, so the claim goes back
	ok, err := db.ReleaseFollowUp(ctx, "o1", 1, 0, nil)
	if err != nil || !ok {
		t.Fatalf("release: ok=%v err=%v", ok, err)
	}

	// releasing a stage the row no longer holds is a no-op
	if ok, _ := db.ReleaseFollowUp(ctx, "o1", 1, 0, nil); ok {
		t.Fatal("stale release must not match")
	}

	open, err := db.OpenOutreach(ctx)
	if err != nil || len(open) != 1 || open[0].FollowUpStage != 0 {
		t.Fatalf("open after release: %+v err=%v", open, err)
	}
	if open[0].LastFollowUpAt != nil {
		t.Fatal("released row must drop its follow-up timestamp")
	}

	// and the stage can be claimed again
	if ok, err := db.AdvanceFollowUp(ctx, "o1", 1, now); err != nil || !ok {
		t.Fatalf("reclaim: ok=%v err=%v", ok, err)
	}
}

func TestMarkResponseDetectedStopsFollowUps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	m := domain.OutreachMessage{
		ID:             "o1",
		JobFingerprint: "fp1",
		Company:        "Acme Corp",
		ContactEmail:   "sam@acme.example",
		Channel:        domain.ChannelEmail,
		SentAt:         &now,
	}
	_ = db.AppendOutreach(ctx, m)

	if err := db.MarkResponseDetected(ctx, "fp1", ""); err != nil {
		t.Fatalf("MarkResponseDetected: %v", err)
	}

	if ok, _ := db.AdvanceFollowUp(ctx, "o1", 1, now); ok {
		t.Fatal("answered outreach must reject follow-up claims")
	}
	open, _ := db.OpenOutreach(ctx)
	if len(open) != 0 {
		t.Fatal("answered outreach must leave the open set")
	}
}

func TestQueuedOutreach(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	queued := domain.OutreachMessage{
		ID:       "q1",
		Company:  "Beta Inc",
		Channel:  domain.ChannelManualQueue,
		QueuedAt: &now,
	}
	sent := domain.OutreachMessage{
		ID:           "s1",
		Company:      "Acme Corp",
		ContactEmail: "sam@acme.example",
		Channel:      domain.ChannelEmail,
		SentAt:       &now,
	}
	_ = db.AppendOutreach(ctx, queued)
	_ = db.AppendOutreach(ctx, sent)

	got, err := db.QueuedOutreach(ctx)
	if err != nil {
		t.Fatalf("QueuedOutreach: %v", err)
	}
	if len(got) != 1 || got[0].ID != "q1" {
		t.Fatalf("queued = %+v", got)
	}
}

func TestClassificationIdempotency(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := domain.ClassifiedMessage{
		ID:           "c1",
		MessageUID:   42,
		Folder:       "INBOX",
		From:         "sam@acme.example",
		Subject:      "Re: Go Engineer",
		Class:        domain.ReplyPositive,
		Confidence:   0.92,
		ClassifiedAt: time.Now(),
	}

	inserted, err := db.SaveClassification(ctx, m)
	if err != nil || !inserted {
		t.Fatalf("first save: inserted=%v err=%v", inserted, err)
	}

	dup := m
	dup.ID = "c2" // same folder+uid, different row id
	inserted, err = db.SaveClassification(ctx, dup)
	if err != nil || inserted {
		t.Fatalf("duplicate save: inserted=%v err=%v", inserted, err)
	}

	seen, err := db.SeenMessage(ctx, "INBOX", 42)
	if err != nil || !seen {
		t.Fatalf("SeenMessage: seen=%v err=%v", seen, err)
	}
	if seen, _ := db.SeenMessage(ctx, "Archive", 42); seen {
		t.Fatal("uid in another folder must not count as seen")
	}
}

func TestApplicationHistoryAppendOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	first := domain.ApplicationRecord{
		ID:             "a1",
		JobFingerprint: "fp1",
		Company:        "Acme Corp",
		Title:          "Go Engineer",
		State:          domain.StateFailed,
		FailureReason:  domain.FailSubmitRejected,
		CreatedAt:      now.Add(-time.Hour),
		UpdatedAt:      now.Add(-time.Hour),
	}
	second := domain.ApplicationRecord{
		ID:             "a2",
		JobFingerprint: "fp1",
		Company:        "Acme Corp",
		Title:          "Go Engineer",
		State:          domain.StateSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.SaveApplication(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := db.SaveApplication(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	latest, ok, err := db.LatestApplicationFor(ctx, "fp1")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != "a2" || latest.State != domain.StateSubmitted {
		t.Fatalf("latest = %+v, want the newest record", latest)
	}

	failed, err := db.ApplicationsInState(ctx, domain.StateFailed)
	if err != nil || len(failed) != 1 || failed[0].ID != "a1" {
		t.Fatalf("failed history lost: %+v err=%v", failed, err)
	}
}

func TestPostingUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := domain.JobPosting{
		Fingerprint:  "fp1",
		Source:       "greenhouse",
		Company:      "Acme Corp",
		Title:        "Go Engineer",
		Location:     "Remote",
		WorkMode:     "Remote",
		URL:          "https://example.com/1",
		DiscoveredAt: time.Now(),
		Score:        70,
		Outcome:      domain.OutcomeReview,
	}
	if err := db.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	p.Score = 82
	p.Outcome = domain.OutcomeAutoApply
	if err := db.UpsertPosting(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.RecentPostings(ctx, 10)
	if err != nil {
		t.Fatalf("RecentPostings: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1 after upsert", len(got))
	}
	if got[0].Score != 82 || got[0].Outcome != domain.OutcomeAutoApply {
		t.Fatalf("row = %+v, want refreshed score and outcome", got[0])
	}
}
