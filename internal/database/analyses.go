package database

import (
	"context"
	"database/sql"
)

// InsertAnalysis inserts or replaces the analysis for a date and kind.
func (db *DB) InsertAnalysis(ctx context.Context, a Analysis) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO analyses
		(report_date, kind, analysis_json, digest_markdown, change_count, top_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Date, a.Kind, a.AnalysisJSON, a.DigestMarkdown, a.ChangeCount, a.TopCount,
	)
	return err
}

// GetAnalysis returns the analysis for a date and kind, or nil if none exists.
func (db *DB) GetAnalysis(ctx context.Context, date, kind string) (*Analysis, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT report_date, kind, analysis_json, digest_markdown, change_count, top_count, generated_at
		FROM analyses WHERE report_date = ? AND kind = ?`, date, kind,
	)

	var a Analysis
	if err := row.Scan(&a.Date, &a.Kind, &a.AnalysisJSON, &a.DigestMarkdown,
		&a.ChangeCount, &a.TopCount, &a.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// GetAllAnalyses returns all analyses of a kind ordered by date DESC.
func (db *DB) GetAllAnalyses(ctx context.Context, kind string) ([]Analysis, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT report_date, kind, analysis_json, digest_markdown, change_count, top_count, generated_at
		FROM analyses WHERE kind = ? ORDER BY report_date DESC`, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.Date, &a.Kind, &a.AnalysisJSON, &a.DigestMarkdown,
			&a.ChangeCount, &a.TopCount, &a.GeneratedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
