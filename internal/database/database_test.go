package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func sampleRecords() []chart.Record {
	return []chart.Record{
		{AppID: "1", Name: "Alpha", Rank: 1, Store: chart.AppStore, Region: "us", RegionName: "United States",
			ChartType: "topfreeapplications", ChartName: "Top Free Games", FetchDate: "2026-02-06", Developer: "Dev A"},
		{AppID: "2", Name: "Beta", Rank: 2, Store: chart.AppStore, Region: "us", RegionName: "United States",
			ChartType: "topfreeapplications", ChartName: "Top Free Games", FetchDate: "2026-02-06", Price: "0.00"},
		{AppID: "com.x.y", Name: "Gamma", Rank: 1, Store: chart.GooglePlay, Region: "jp",
			ChartType: "topselling_free", FetchDate: "2026-02-06", URL: "https://play.google.com/store/apps/details?id=com.x.y"},
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	records := sampleRecords()
	require.NoError(t, db.SaveSnapshot(ctx, "2026-02-06", records))

	loaded, err := db.LoadSnapshot(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestSaveSnapshotReplaces(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSnapshot(ctx, "2026-02-06", sampleRecords()))
	replacement := sampleRecords()[:1]
	require.NoError(t, db.SaveSnapshot(ctx, "2026-02-06", replacement))

	loaded, err := db.LoadSnapshot(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, replacement, loaded)

	infos, err := db.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].RecordCount)
}

func TestLoadMissingSnapshotIsEmpty(t *testing.T) {
	db := openTestDB(t)
	loaded, err := db.LoadSnapshot(context.Background(), "2020-01-01")
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestEmptySnapshotIsRecorded(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSnapshot(ctx, "2026-02-06", nil))
	ok, err := db.HasSnapshot(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.HasSnapshot(ctx, "2026-02-07")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotDatesNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, d := range []string{"2026-02-05", "2026-02-07", "2026-02-06"} {
		require.NoError(t, db.SaveSnapshot(ctx, d, sampleRecords()))
	}

	dates, err := db.SnapshotDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-07", "2026-02-06", "2026-02-05"}, dates)
}

func TestInsertNewsItemDeduplicates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertNewsItem(ctx, NewsItem{URL: "https://a.com/1", Title: "First", CollectedDate: "2026-02-06"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	id, err = db.InsertNewsItem(ctx, NewsItem{URL: "https://a.com/1", Title: "Again", CollectedDate: "2026-02-06"})
	require.NoError(t, err)
	assert.Zero(t, id, "expected 0 for duplicate news item")
}

func TestNewsNeedingFetch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertNewsItem(ctx, NewsItem{URL: "https://a.com", Title: "No content", CollectedDate: "2026-02-06"})
	require.NoError(t, err)
	_, err = db.InsertNewsItem(ctx, NewsItem{URL: "https://b.com", Title: "Has content", Content: ptr("text"), CollectedDate: "2026-02-06"})
	require.NoError(t, err)

	needing, err := db.GetNewsNeedingFetch(ctx, "2026-02-06")
	require.NoError(t, err)
	require.Len(t, needing, 1)
	assert.Equal(t, "No content", needing[0].Title)

	require.NoError(t, db.UpdateNewsContent(ctx, id, ptr("Fetched")))
	needing, err = db.GetNewsNeedingFetch(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Empty(t, needing)

	items, err := db.GetNewsForDate(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAnalysisRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.GetAnalysis(ctx, "2026-02-06", "daily")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.InsertAnalysis(ctx, Analysis{
		Date: "2026-02-06", Kind: "daily", AnalysisJSON: `{"rising":[]}`,
		DigestMarkdown: "# Digest", ChangeCount: 12, TopCount: 5,
	}))
	require.NoError(t, db.InsertAnalysis(ctx, Analysis{
		Date: "2026-02-06", Kind: "daily", AnalysisJSON: `{}`,
		DigestMarkdown: "# Replaced", ChangeCount: 3,
	}))

	got, err = db.GetAnalysis(ctx, "2026-02-06", "daily")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# Replaced", got.DigestMarkdown)
	assert.Equal(t, 3, got.ChangeCount)

	all, err := db.GetAllAnalyses(ctx, "daily")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReportsAndStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	last, err := db.GetLastRunDate(ctx)
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, db.InsertReport(ctx, RunReport{ID: "a", Date: "2026-02-05", Kind: "daily", RecordCount: 10}))
	require.NoError(t, db.InsertReport(ctx, RunReport{ID: "b", Date: "2026-02-06", Kind: "daily", ChangeCount: 4}))
	require.NoError(t, db.SaveSnapshot(ctx, "2026-02-06", sampleRecords()))

	last, err = db.GetLastRunDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-06", last)

	reports, err := db.GetRecentReports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Snapshots)
	assert.Equal(t, 3, stats.ChartRecords)
	assert.Equal(t, 2, stats.Runs)
}

func TestDateHelpers(t *testing.T) {
	assert.Equal(t, "2026-02-28", PreviousDay("2026-03-01"))
	assert.Equal(t, "2026-03-02", ShiftDate("2026-02-28", 2))
	assert.Equal(t, "garbage", PreviousDay("garbage"))
	assert.Equal(t, []string{"2026-02-04", "2026-02-05", "2026-02-06"}, LastNDays("2026-02-06", 3))
	assert.Equal(t, "Feb 06, 2026", FormatDateDisplay("2026-02-06"))
	assert.True(t, ValidDate("2026-02-06"))
	assert.False(t, ValidDate("../../etc"))
	assert.Len(t, GetToday(), 10)
}
