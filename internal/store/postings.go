package store

import (
	"context"
	"time"

	"jobpilot/internal/domain"
)

// UpsertPosting records a scored posting. Re-admitted postings overwrite
// their previous score and outcome.
func (d *DB) UpsertPosting(ctx context.Context, p domain.JobPosting) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO postings(fingerprint, source, external_id, company, title, location,
  work_mode, salary_min, salary_max, url, discovered_at, score, outcome)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(fingerprint) DO UPDATE SET
  score = excluded.score,
  outcome = excluded.outcome;`,
		p.Fingerprint, p.Source, p.ExternalID, p.Company, p.Title, p.Location,
		p.WorkMode, p.SalaryMin, p.SalaryMax, p.URL,
		p.DiscoveredAt.UTC().Format(time.RFC3339), p.Score, string(p.Outcome),
	)
	return err
}

// RecentPostings lists the newest postings for the status API.
func (d *DB) RecentPostings(ctx context.Context, limit int) ([]domain.JobPosting, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT fingerprint, source, external_id, company, title, location, work_mode,
  salary_min, salary_max, url, discovered_at, score, outcome
FROM postings ORDER BY discovered_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobPosting
	for rows.Next() {
		var p domain.JobPosting
		var disc, outcome string
		if err := rows.Scan(&p.Fingerprint, &p.Source, &p.ExternalID, &p.Company,
			&p.Title, &p.Location, &p.WorkMode, &p.SalaryMin, &p.SalaryMax,
			&p.URL, &disc, &p.Score, &outcome); err != nil {
			return nil, err
		}
		p.DiscoveredAt, _ = time.Parse(time.RFC3339, disc)
		p.Outcome = domain.Outcome(outcome)
		out = append(out, p)
	}
	return out, rows.Err()
}
