package store

import (
	"context"
	"database/sql"
	"time"

	"jobpilot/internal/domain"
)

// AppendOutreach writes one message to the append-only outreach log.
func (d *DB) AppendOutreach(ctx context.Context, m domain.OutreachMessage) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO outreach(id, job_fingerprint, company, contact, contact_email,
  channel, subject, content, sent_at, queued_at, follow_up_stage,
  last_follow_up_at, response_detected, do_not_follow_up)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		m.ID, m.JobFingerprint, m.Company, m.Contact, m.ContactEmail,
		string(m.Channel), m.Subject, m.Content,
		nullTime(m.SentAt), nullTime(m.QueuedAt),
		m.FollowUpStage, nullTime(m.LastFollowUpAt),
		boolInt(m.ResponseDetected), boolInt(m.DoNotFollowUp),
	)
	return err
}

// AdvanceFollowUp bumps the stage for id only if the stored stage is still
// below stage; the guard keeps overlapping scans from double-sending.
func (d *DB) AdvanceFollowUp(ctx context.Context, id string, stage int, at time.Time) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE outreach SET follow_up_stage = ?, last_follow_up_at = ?
WHERE id = ? AND follow_up_stage < ? AND response_detected = 0 AND do_not_follow_up = 0;`,
		stage, at.UTC().Format(time.RFC3339), id, stage)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReleaseFollowUp reverts a claimed stage after a failed send so the next
// scan can retry it. The guard only touches the row while it still holds
// the claim being released.
func (d *DB) ReleaseFollowUp(ctx context.Context, id string, claimedStage, priorStage int, priorAt *time.Time) (bool, error) {
	var priorTS any
	if priorAt != nil {
		priorTS = priorAt.UTC().Format(time.RFC3339)
	}
	res, err := d.Pool.ExecContext(ctx, `
UPDATE outreach SET follow_up_stage = ?, last_follow_up_at = ?
WHERE id = ? AND follow_up_stage = ?;`,
		priorStage, priorTS, id, claimedStage)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkResponseDetected flags every outreach row for a company or fingerprint
// once a reply arrives; follow-ups stop immediately.
func (d *DB) MarkResponseDetected(ctx context.Context, fingerprint, company string) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE outreach SET response_detected = 1
WHERE (job_fingerprint != '' AND job_fingerprint = ?)
   OR (company != '' AND company = ?);`, fingerprint, company)
	return err
}

// OpenOutreach lists sent messages still awaiting a response with follow-up
// headroom.
func (d *DB) OpenOutreach(ctx context.Context) ([]domain.OutreachMessage, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, job_fingerprint, company, contact, contact_email, channel, subject,
  content, sent_at, queued_at, follow_up_stage, last_follow_up_at,
  response_detected, do_not_follow_up
FROM outreach
WHERE response_detected = 0 AND do_not_follow_up = 0
  AND follow_up_stage < 2 AND contact_email != '' AND sent_at IS NOT NULL;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOutreach(rows)
}

// QueuedOutreach lists messages waiting for a manual send.
func (d *DB) QueuedOutreach(ctx context.Context) ([]domain.OutreachMessage, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, job_fingerprint, company, contact, contact_email, channel, subject,
  content, sent_at, queued_at, follow_up_stage, last_follow_up_at,
  response_detected, do_not_follow_up
FROM outreach WHERE queued_at IS NOT NULL AND sent_at IS NULL;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOutreach(rows)
}

func collectOutreach(rows *sql.Rows) ([]domain.OutreachMessage, error) {
	var out []domain.OutreachMessage
	for rows.Next() {
		var m domain.OutreachMessage
		var channel string
		var sent, queued, lastFU sql.NullString
		var resp, dnf int
		if err := rows.Scan(&m.ID, &m.JobFingerprint, &m.Company, &m.Contact,
			&m.ContactEmail, &channel, &m.Subject, &m.Content,
			&sent, &queued, &m.FollowUpStage, &lastFU, &resp, &dnf); err != nil {
			return nil, err
		}
		m.Channel = domain.OutreachChannel(channel)
		m.SentAt = parseNullTime(sent)
		m.QueuedAt = parseNullTime(queued)
		m.LastFollowUpAt = parseNullTime(lastFU)
		m.ResponseDetected = resp != 0
		m.DoNotFollowUp = dnf != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
