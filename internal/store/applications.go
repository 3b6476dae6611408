package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jobpilot/internal/domain"
)

// SaveApplication inserts or updates a record by id. History rows are never
// deleted.
func (d *DB) SaveApplication(ctx context.Context, r domain.ApplicationRecord) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO applications(id, job_fingerprint, company, title, url, state,
  resume_variant, cover_letter_ref, contact_email, failure_reason,
  created_at, updated_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  state = excluded.state,
  resume_variant = excluded.resume_variant,
  cover_letter_ref = excluded.cover_letter_ref,
  contact_email = excluded.contact_email,
  failure_reason = excluded.failure_reason,
  updated_at = excluded.updated_at;`,
		r.ID, r.JobFingerprint, r.Company, r.Title, r.URL, string(r.State),
		r.ResumeVariant, r.CoverLetterRef, r.ContactEmail, r.FailureReason,
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// LatestApplicationFor returns the newest record for a fingerprint.
func (d *DB) LatestApplicationFor(ctx context.Context, fingerprint string) (domain.ApplicationRecord, bool, error) {
	row := d.Pool.QueryRowContext(ctx, `
SELECT id, job_fingerprint, company, title, url, state, resume_variant,
  cover_letter_ref, contact_email, failure_reason, created_at, updated_at
FROM applications WHERE job_fingerprint = ?
ORDER BY created_at DESC LIMIT 1;`, fingerprint)

	r, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	return r, err == nil, err
}

// ApplicationsInState lists records currently in state, oldest first.
func (d *DB) ApplicationsInState(ctx context.Context, state domain.ApplicationState) ([]domain.ApplicationRecord, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, job_fingerprint, company, title, url, state, resume_variant,
  cover_letter_ref, contact_email, failure_reason, created_at, updated_at
FROM applications WHERE state = ? ORDER BY created_at ASC;`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ApplicationRecord
	for rows.Next() {
		r, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentApplications lists the newest records for the status API.
func (d *DB) RecentApplications(ctx context.Context, limit int) ([]domain.ApplicationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, job_fingerprint, company, title, url, state, resume_variant,
  cover_letter_ref, contact_email, failure_reason, created_at, updated_at
FROM applications ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ApplicationRecord
	for rows.Next() {
		r, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (domain.ApplicationRecord, error) {
	var r domain.ApplicationRecord
	var state, created, updated string
	err := row.Scan(&r.ID, &r.JobFingerprint, &r.Company, &r.Title, &r.URL,
		&state, &r.ResumeVariant, &r.CoverLetterRef, &r.ContactEmail,
		&r.FailureReason, &created, &updated)
	if err != nil {
		return r, err
	}
	r.State = domain.ApplicationState(state)
	r.CreatedAt, _ = time.Parse(time.RFC3339, created)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return r, nil
}
