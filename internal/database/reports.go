package database

import (
	"context"
	"database/sql"
)

// InsertReport stores a run report.
func (db *DB) InsertReport(ctx context.Context, r RunReport) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_reports (id, report_date, kind, record_count, change_count, failed_steps)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Date, r.Kind, r.RecordCount, r.ChangeCount, r.FailedSteps,
	)
	return err
}

// GetRecentReports returns up to limit run reports, newest first.
func (db *DB) GetRecentReports(ctx context.Context, limit int) ([]RunReport, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, report_date, kind, record_count, change_count, failed_steps, generated_at
		FROM run_reports ORDER BY generated_at DESC, report_date DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunReport
	for rows.Next() {
		var r RunReport
		if err := rows.Scan(&r.ID, &r.Date, &r.Kind, &r.RecordCount, &r.ChangeCount,
			&r.FailedSteps, &r.GeneratedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLastRunDate returns the date of the most recent run report.
// Returns empty string if no runs exist.
func (db *DB) GetLastRunDate(ctx context.Context) (string, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT report_date FROM run_reports ORDER BY report_date DESC LIMIT 1",
	)

	var date string
	if err := row.Scan(&date); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return date, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM snapshots", &s.Snapshots},
		{"SELECT COUNT(*) FROM chart_records", &s.ChartRecords},
		{"SELECT COUNT(*) FROM news_items", &s.NewsItems},
		{"SELECT COUNT(*) FROM analyses WHERE kind = 'daily'", &s.DailyAnalyses},
		{"SELECT COUNT(*) FROM analyses WHERE kind = 'weekly'", &s.WeeklyAnalyses},
		{"SELECT COUNT(*) FROM run_reports", &s.Runs},
	}

	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
