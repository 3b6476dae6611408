package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jobpilot/internal/domain"
)

// GetSeen returns the cache entry for fingerprint, or ok=false.
func (d *DB) GetSeen(ctx context.Context, fingerprint string) (domain.SeenEntry, bool, error) {
	var e domain.SeenEntry
	var first, expiry, outcome string

	err := d.Pool.QueryRowContext(ctx, `
SELECT fingerprint, first_seen, ttl_expiry, last_outcome
FROM seen_cache WHERE fingerprint = ?;`, fingerprint).
		Scan(&e.Fingerprint, &first, &expiry, &outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}

	e.FirstSeen, _ = time.Parse(time.RFC3339, first)
	e.TTLExpiry, _ = time.Parse(time.RFC3339, expiry)
	e.LastOutcome = domain.Outcome(outcome)
	return e, true, nil
}

// MarkSeen upserts the entry for fingerprint. A SUBMITTED outcome is sticky:
// later upserts never downgrade it.
func (d *DB) MarkSeen(ctx context.Context, fingerprint string, outcome domain.Outcome, ttl time.Duration, now time.Time) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO seen_cache(fingerprint, first_seen, ttl_expiry, last_outcome)
VALUES(?,?,?,?)
ON CONFLICT(fingerprint) DO UPDATE SET
  ttl_expiry = excluded.ttl_expiry,
  last_outcome = CASE WHEN seen_cache.last_outcome = 'SUBMITTED'
                      THEN seen_cache.last_outcome
                      ELSE excluded.last_outcome END;`,
		fingerprint,
		now.UTC().Format(time.RFC3339),
		now.Add(ttl).UTC().Format(time.RFC3339),
		string(outcome),
	)
	return err
}

// PruneSeen drops expired non-terminal entries older than cutoff. SUBMITTED
// rows are kept forever so a submitted job is never re-evaluated.
func (d *DB) PruneSeen(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.Pool.ExecContext(ctx, `
DELETE FROM seen_cache
WHERE last_outcome != 'SUBMITTED' AND ttl_expiry < ?;`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
