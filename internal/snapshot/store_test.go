package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/database"
)

func fixture() []chart.Record {
	return []chart.Record{
		{AppID: "100", Name: "Tower Quest", Developer: "Studio", Rank: 1, Store: chart.AppStore,
			Region: "us", RegionName: "United States", ChartType: "topfreeapplications",
			ChartName: "Top Free Games", FetchDate: "2026-02-06"},
		{AppID: "200", Name: "Puzzle Hero", Rank: 2, Store: chart.AppStore,
			Region: "us", RegionName: "United States", ChartType: "topfreeapplications",
			ChartName: "Top Free Games", FetchDate: "2026-02-06", Price: "0.00"},
		{AppID: "com.example.run", Name: "Run", Rank: 1, Store: chart.GooglePlay,
			Region: "jp", RegionName: "Japan", ChartType: "topselling_free",
			ChartName: "Top Free Games", FetchDate: "2026-02-06"},
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"sqlite": NewSQLiteStore(db),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "history")),
		"memory": NewMemoryStore(),
		"cached": NewCachedStore(NewMemoryStore(), newTestRedis(t), time.Minute, zaptest.NewLogger(t)),
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, fixture(), "2026-02-06"))
			got, err := s.Load(ctx, "2026-02-06")
			require.NoError(t, err)
			assert.ElementsMatch(t, fixture(), got)
		})
	}
}

func TestStoreMissingDateIsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Load(ctx, "2026-01-01")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, fixture(), "2026-02-06"))
			require.NoError(t, s.Save(ctx, fixture()[2:], "2026-02-06"))
			require.NoError(t, s.Save(ctx, fixture()[2:], "2026-02-06"))

			got, err := s.Load(ctx, "2026-02-06")
			require.NoError(t, err)
			assert.Equal(t, fixture()[2:], got)
		})
	}
}

func TestStoreDatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, d := range []string{"2026-02-04", "2026-02-06", "2026-02-05"} {
				require.NoError(t, s.Save(ctx, fixture(), d))
			}
			dates, err := s.Dates(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"2026-02-06", "2026-02-05", "2026-02-04"}, dates)
		})
	}
}

func TestStoreRejectsBadDate(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Save(ctx, fixture(), "../../etc/passwd")
			assert.ErrorIs(t, err, ErrInvalidDate)

			_, err = s.Load(ctx, "../x")
			assert.ErrorIs(t, err, ErrInvalidDate)
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(context.Background(), fixture(), "2026-02-06"))

	_, err := os.Stat(filepath.Join(dir, "2026-02-06.json"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	dates, err := s.Dates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-06"}, dates)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-02-06.json"), []byte("{not json"), 0o644))

	_, err := NewFileStore(dir).Load(context.Background(), "2026-02-06")
	assert.Error(t, err)
}

func TestCachedStoreFallsBackWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { rdb.Close() })

	primary := NewMemoryStore()
	s := NewCachedStore(primary, rdb, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, fixture(), "2026-02-06"))

	got, err := s.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, fixture(), got)

	dates, err := s.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-06"}, dates)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)

	c, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 2, c.Options().DB)
}

func newCachedFixture(t *testing.T) (*CachedStore, *MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	primary := NewMemoryStore()
	return NewCachedStore(primary, rdb, time.Minute, zaptest.NewLogger(t)), primary, mr
}

func TestCachedStoreServesFromCache(t *testing.T) {
	s, primary, mr := newCachedFixture(t)
	ctx := context.Background()

	require.NoError(t, primary.Save(ctx, fixture(), "2026-02-06"))
	got, err := s.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, fixture(), got)
	assert.True(t, mr.Exists(snapshotKey("2026-02-06")), "load fills the cache")

	// the cached copy answers even after the primary changes underneath
	require.NoError(t, primary.Save(ctx, fixture()[:1], "2026-02-06"))
	got, err = s.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, fixture(), got)
}

func TestCachedStoreMissingDateNotCached(t *testing.T) {
	s, _, mr := newCachedFixture(t)

	got, err := s.Load(context.Background(), "2026-01-01")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, mr.Exists(snapshotKey("2026-01-01")))
}

func TestCachedStoreReplaceThenLoad(t *testing.T) {
	s, _, _ := newCachedFixture(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, fixture(), "2026-02-06"))
	_, err := s.Load(ctx, "2026-02-06")
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, fixture()[2:], "2026-02-06"))
	got, err := s.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, fixture()[2:], got)
}

func TestCachedStoreEmptyReplace(t *testing.T) {
	s, _, _ := newCachedFixture(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, fixture(), "2026-02-06"))
	require.NoError(t, s.Save(ctx, nil, "2026-02-06"))

	got, err := s.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCachedStoreSaveDuringOutageNeverServesStale(t *testing.T) {
	s, primary, mr := newCachedFixture(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, nil, "2026-02-06"))
	got, err := s.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	require.Empty(t, got)

	mr.SetError("READONLY You can't write against a read only replica.")
	require.NoError(t, s.Save(ctx, fixture(), "2026-02-06"))
	mr.SetError("")

	got, err = s.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, fixture(), got)

	fromPrimary, err := primary.Load(ctx, "2026-02-06")
	require.NoError(t, err)
	assert.Equal(t, fromPrimary, got)

	// the recovered cache now holds the fresh copy
	raw, err := mr.Get(snapshotKey("2026-02-06"))
	require.NoError(t, err)
	assert.Contains(t, raw, "Tower Quest")
	assert.False(t, s.isDirty("2026-02-06"))
}
