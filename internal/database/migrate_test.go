package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func tableExists(t *testing.T, conn *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), version)

	for _, table := range []string{"snapshots", "chart_records", "news_items", "analyses", "run_reports"} {
		assert.True(t, tableExists(t, db.conn, table), "table %s should exist", table)
	}
}

func TestMigrateFromVersionOne(t *testing.T) {
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "v1.db"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, migrateTo(conn, 1))
	version, err := getSchemaVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.True(t, tableExists(t, conn, "chart_records"))
	assert.False(t, tableExists(t, conn, "news_items"))

	_, err = conn.Exec(`INSERT INTO snapshots (snapshot_date, record_count) VALUES ('2026-02-06', 0)`)
	require.NoError(t, err)

	require.NoError(t, migrate(conn))
	version, err = getSchemaVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), version)
	assert.True(t, tableExists(t, conn, "news_items"))

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&n))
	assert.Equal(t, 1, n, "existing snapshot rows should survive the upgrade")
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db1, err := Open(path)
	require.NoError(t, err)
	db1.Close()

	db2, err := Open(path)
	require.NoError(t, err, "second open should succeed")
	defer db2.Close()

	version, err := getSchemaVersion(db2.conn)
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), version)
}

func TestGetSchemaVersionNewDB(t *testing.T) {
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer conn.Close()

	version, err := getSchemaVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestSchemaVersionAccessor(t *testing.T) {
	db := openTestDB(t)
	current, latest, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
	assert.Equal(t, latest, current)
}
