package database

import (
	"context"
	"database/sql"
)

// InsertNewsItem inserts a news article. Returns the ID on success, 0 if the URL is already stored.
func (db *DB) InsertNewsItem(ctx context.Context, n NewsItem) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO news_items (url, title, source, published_at, description, content, collected_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.URL, n.Title, n.Source, n.PublishedAt, n.Description, n.Content, n.CollectedDate,
	)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetNewsForDate returns the news collected on date, newest first.
func (db *DB) GetNewsForDate(ctx context.Context, date string) ([]NewsItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, url, title, source, published_at, description, content, content_fetched, collected_date, collected_at
		FROM news_items WHERE collected_date = ? ORDER BY published_at DESC, id`, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

// GetNewsNeedingFetch returns news items for date whose full text has not been fetched.
func (db *DB) GetNewsNeedingFetch(ctx context.Context, date string) ([]NewsItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, url, title, source, published_at, description, content, content_fetched, collected_date, collected_at
		FROM news_items WHERE collected_date = ? AND (content IS NULL OR content = '') AND content_fetched = 0
		ORDER BY id`, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

// UpdateNewsContent stores fetched full text for a news item.
// A nil content marks the fetch as attempted.
func (db *DB) UpdateNewsContent(ctx context.Context, id int64, content *string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE news_items SET content = COALESCE(?, content), content_fetched = 1 WHERE id = ?",
		content, id,
	)
	return err
}

func scanNews(rows *sql.Rows) ([]NewsItem, error) {
	var items []NewsItem
	for rows.Next() {
		var n NewsItem
		var fetched int
		if err := rows.Scan(&n.ID, &n.URL, &n.Title, &n.Source, &n.PublishedAt, &n.Description,
			&n.Content, &fetched, &n.CollectedDate, &n.CollectedAt); err != nil {
			return nil, err
		}
		n.ContentFetched = fetched != 0
		items = append(items, n)
	}
	return items, rows.Err()
}
