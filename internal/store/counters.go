package store

import (
	"context"
	"database/sql"
	"errors"

	"jobpilot/internal/domain"
)

// GetCounters returns the counters row for date, zero-valued if absent.
func (d *DB) GetCounters(ctx context.Context, date string) (domain.DailyCounters, error) {
	c := domain.DailyCounters{Date: date}
	err := d.Pool.QueryRowContext(ctx, `
SELECT applications_sent, outreach_sent FROM daily_counters WHERE date = ?;`, date).
		Scan(&c.ApplicationsSent, &c.OutreachSent)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	return c, err
}

// ClaimApplicationSlot atomically increments the application counter for
// date if and only if it is still below max. Returns false when the cap is
// spent. The WHERE guard makes concurrent workers unable to double-spend.
func (d *DB) ClaimApplicationSlot(ctx context.Context, date string, max int) (bool, error) {
	return d.claimSlot(ctx, date, "applications_sent", max)
}

// ClaimOutreachSlot is ClaimApplicationSlot for the outreach counter.
func (d *DB) ClaimOutreachSlot(ctx context.Context, date string, max int) (bool, error) {
	return d.claimSlot(ctx, date, "outreach_sent", max)
}

func (d *DB) claimSlot(ctx context.Context, date, column string, max int) (bool, error) {
	if max <= 0 {
		return false, nil
	}
	_, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO daily_counters(date) VALUES(?);`, date)
	if err != nil {
		return false, err
	}

	// column is one of two fixed identifiers, never user input
	res, err := d.Pool.ExecContext(ctx, `
UPDATE daily_counters SET `+column+` = `+column+` + 1
WHERE date = ? AND `+column+` < ?;`, date, max)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReleaseApplicationSlot hands back a claimed slot after a failed attempt
// so a broken form does not burn the daily budget.
func (d *DB) ReleaseApplicationSlot(ctx context.Context, date string) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE daily_counters SET applications_sent = applications_sent - 1
WHERE date = ? AND applications_sent > 0;`, date)
	return err
}
