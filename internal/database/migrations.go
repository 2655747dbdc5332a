package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "snapshot tables",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_date TEXT PRIMARY KEY,
    record_count INTEGER DEFAULT 0,
    saved_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS chart_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_date TEXT NOT NULL REFERENCES snapshots(snapshot_date) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    app_id TEXT NOT NULL,
    name TEXT NOT NULL,
    developer TEXT NOT NULL DEFAULT '',
    rank INTEGER NOT NULL,
    store TEXT NOT NULL,
    region TEXT NOT NULL,
    region_name TEXT NOT NULL DEFAULT '',
    chart_type TEXT NOT NULL,
    chart_name TEXT NOT NULL DEFAULT '',
    fetch_date TEXT NOT NULL DEFAULT '',
    genre TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    artwork TEXT NOT NULL DEFAULT '',
    price TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_chart_records_date ON chart_records(snapshot_date, position);
CREATE INDEX IF NOT EXISTS idx_chart_records_app ON chart_records(store, app_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "news, analyses and run reports",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS news_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    published_at TEXT,
    description TEXT NOT NULL DEFAULT '',
    content TEXT,
    content_fetched INTEGER DEFAULT 0,
    collected_date TEXT NOT NULL,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analyses (
    report_date TEXT NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('daily', 'weekly')),
    analysis_json TEXT NOT NULL,
    digest_markdown TEXT NOT NULL,
    change_count INTEGER DEFAULT 0,
    top_count INTEGER DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (report_date, kind)
);

CREATE TABLE IF NOT EXISTS run_reports (
    id TEXT PRIMARY KEY,
    report_date TEXT NOT NULL,
    kind TEXT NOT NULL,
    record_count INTEGER DEFAULT 0,
    change_count INTEGER DEFAULT 0,
    failed_steps INTEGER DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_news_collected ON news_items(collected_date);
CREATE INDEX IF NOT EXISTS idx_run_reports_date ON run_reports(report_date);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
