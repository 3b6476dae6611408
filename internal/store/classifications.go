package store

import (
	"context"
	"time"

	"jobpilot/internal/domain"
)

// SaveClassification persists one classified reply. The (folder, uid) unique
// constraint makes repeated scans idempotent.
func (d *DB) SaveClassification(ctx context.Context, m domain.ClassifiedMessage) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO classifications(id, message_uid, folder, sender, subject,
  class, confidence, matched_app_id, classified_at)
VALUES(?,?,?,?,?,?,?,?,?);`,
		m.ID, m.MessageUID, m.Folder, m.From, m.Subject,
		string(m.Class), m.Confidence, m.MatchedAppID,
		m.ClassifiedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SeenMessage reports whether a mailbox message was already classified.
func (d *DB) SeenMessage(ctx context.Context, folder string, uid uint32) (bool, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `
SELECT COUNT(1) FROM classifications WHERE folder = ? AND message_uid = ?;`,
		folder, uid).Scan(&n)
	return n > 0, err
}
