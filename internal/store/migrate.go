package store

import "database/sql"

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS seen_cache (
  fingerprint TEXT PRIMARY KEY,
  first_seen TEXT NOT NULL,
  ttl_expiry TEXT NOT NULL,
  last_outcome TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_counters (
  date TEXT PRIMARY KEY,
  applications_sent INTEGER NOT NULL DEFAULT 0,
  outreach_sent INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS postings (
  fingerprint TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  external_id TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL,
  title TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  work_mode TEXT NOT NULL DEFAULT 'Unknown',
  salary_min INTEGER NOT NULL DEFAULT 0,
  salary_max INTEGER NOT NULL DEFAULT 0,
  url TEXT NOT NULL,
  discovered_at TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  outcome TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_postings_discovered ON postings(discovered_at DESC);

CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  job_fingerprint TEXT NOT NULL,
  company TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL,
  resume_variant TEXT NOT NULL DEFAULT '',
  cover_letter_ref TEXT NOT NULL DEFAULT '',
  contact_email TEXT NOT NULL DEFAULT '',
  failure_reason TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_fp ON applications(job_fingerprint);

CREATE TABLE IF NOT EXISTS outreach (
  id TEXT PRIMARY KEY,
  job_fingerprint TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  contact TEXT NOT NULL DEFAULT '',
  contact_email TEXT NOT NULL DEFAULT '',
  channel TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL,
  sent_at TEXT,
  queued_at TEXT,
  follow_up_stage INTEGER NOT NULL DEFAULT 0,
  last_follow_up_at TEXT,
  response_detected INTEGER NOT NULL DEFAULT 0,
  do_not_follow_up INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS classifications (
  id TEXT PRIMARY KEY,
  message_uid INTEGER NOT NULL,
  folder TEXT NOT NULL,
  sender TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  class TEXT NOT NULL,
  confidence REAL NOT NULL DEFAULT 0,
  matched_app_id TEXT NOT NULL DEFAULT '',
  classified_at TEXT NOT NULL,
  UNIQUE(folder, message_uid)
);
`)
	return err
}
