package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

const recordColumns = `app_id, name, developer, rank, store, region, region_name,
	chart_type, chart_name, fetch_date, genre, url, artwork, price`

// SaveSnapshot replaces the snapshot stored for date with records.
// Record order is preserved through the position column.
func (db *DB) SaveSnapshot(ctx context.Context, date string, records []chart.Record) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot %s: %w", date, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chart_records WHERE snapshot_date = ?", date); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", date, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_date, record_count) VALUES (?, ?)
		ON CONFLICT(snapshot_date) DO UPDATE SET
			record_count = excluded.record_count, saved_at = datetime('now')`, date, len(records),
	); err != nil {
		return fmt.Errorf("recording snapshot %s: %w", date, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chart_records (snapshot_date, position, `+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, date, i,
			r.AppID, r.Name, r.Developer, r.Rank, string(r.Store), r.Region, r.RegionName,
			r.ChartType, r.ChartName, r.FetchDate, r.Genre, r.URL, r.Artwork, r.Price,
		); err != nil {
			return fmt.Errorf("inserting record %d of %s: %w", i, date, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns the records stored for date in their saved order.
// A date with no snapshot yields an empty slice.
func (db *DB) LoadSnapshot(ctx context.Context, date string) ([]chart.Record, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM chart_records
		WHERE snapshot_date = ? ORDER BY position`, date,
	)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", date, err)
	}
	defer rows.Close()

	records := []chart.Record{}
	for rows.Next() {
		var r chart.Record
		var store string
		if err := rows.Scan(&r.AppID, &r.Name, &r.Developer, &r.Rank, &store, &r.Region, &r.RegionName,
			&r.ChartType, &r.ChartName, &r.FetchDate, &r.Genre, &r.URL, &r.Artwork, &r.Price); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Store = chart.Store(store)
		records = append(records, r)
	}
	return records, rows.Err()
}

// HasSnapshot reports whether a snapshot row exists for date.
func (db *DB) HasSnapshot(ctx context.Context, date string) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM snapshots WHERE snapshot_date = ?", date,
	).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSnapshots returns all stored snapshots, newest first.
func (db *DB) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT snapshot_date, record_count, saved_at FROM snapshots ORDER BY snapshot_date DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var s SnapshotInfo
		var savedAt sql.NullString
		if err := rows.Scan(&s.Date, &s.RecordCount, &savedAt); err != nil {
			return nil, err
		}
		if savedAt.Valid {
			s.SavedAt = &savedAt.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SnapshotDates returns the dates with a stored snapshot, newest first.
func (db *DB) SnapshotDates(ctx context.Context) ([]string, error) {
	infos, err := db.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(infos))
	for _, s := range infos {
		dates = append(dates, s.Date)
	}
	return dates, nil
}
