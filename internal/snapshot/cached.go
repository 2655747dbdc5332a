package snapshot

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

const keyPrefix = "chartpulse:snapshot:"

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary and overwrite the cache entry. Cache failures are
// logged and never fail a call. A date whose entry could be neither
// overwritten nor deleted is marked dirty and read from the primary until
// the cache accepts a fresh copy.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	dirty map[string]struct{}
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl, logger: logger, dirty: make(map[string]struct{})}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return redis.NewClient(opts), nil
}

func snapshotKey(date string) string {
	return keyPrefix + date
}

func (s *CachedStore) Load(ctx context.Context, date string) ([]chart.Record, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}

	dirty := s.isDirty(date)
	if !dirty {
		data, err := s.rdb.Get(ctx, snapshotKey(date)).Bytes()
		if err == nil {
			records := []chart.Record{}
			if json.Unmarshal(data, &records) == nil {
				if records == nil {
					records = []chart.Record{}
				}
				return records, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("snapshot cache read failed", zap.String("date", date), zap.Error(err))
		}
	}

	records, err := s.primary.Load(ctx, date)
	if err != nil {
		return nil, err
	}
	// Missing days are not cached; they may be collected later today.
	// A dirty date is always rewritten so the stale entry gets replaced.
	if len(records) > 0 || dirty {
		if s.cache(ctx, date, records) {
			s.setDirty(date, false)
		}
	}
	return records, nil
}

func (s *CachedStore) Save(ctx context.Context, records []chart.Record, date string) error {
	if err := checkDate(date); err != nil {
		return err
	}
	if err := s.primary.Save(ctx, records, date); err != nil {
		return err
	}
	if s.cache(ctx, date, records) {
		s.setDirty(date, false)
		return nil
	}
	if err := s.rdb.Del(ctx, snapshotKey(date)).Err(); err != nil {
		s.logger.Warn("snapshot cache invalidation failed, bypassing cache for date",
			zap.String("date", date), zap.Error(err))
		s.setDirty(date, true)
		return nil
	}
	s.setDirty(date, false)
	return nil
}

func (s *CachedStore) Dates(ctx context.Context) ([]string, error) {
	return s.primary.Dates(ctx)
}

// cache stores records for date and reports whether the write succeeded.
func (s *CachedStore) cache(ctx context.Context, date string, records []chart.Record) bool {
	if records == nil {
		records = []chart.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return false
	}
	if err := s.rdb.Set(ctx, snapshotKey(date), data, s.ttl).Err(); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.String("date", date), zap.Error(err))
		return false
	}
	return true
}

func (s *CachedStore) isDirty(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dirty[date]
	return ok
}

func (s *CachedStore) setDirty(date string, dirty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dirty {
		s.dirty[date] = struct{}{}
	} else {
		delete(s.dirty, date)
	}
}
