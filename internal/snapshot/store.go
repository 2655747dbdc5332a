// Package snapshot persists one set of chart records per calendar date.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/database"
)

// Store maps a YYYY-MM-DD date to the records collected that day.
//
// Load returns an empty slice and no error for a date that was never saved.
// Save fully replaces whatever was stored for the date.
type Store interface {
	Load(ctx context.Context, date string) ([]chart.Record, error)
	Save(ctx context.Context, records []chart.Record, date string) error
	Dates(ctx context.Context) ([]string, error)
}

// ErrInvalidDate is returned for keys that are not YYYY-MM-DD dates.
var ErrInvalidDate = errors.New("snapshot date must be YYYY-MM-DD")

func checkDate(date string) error {
	if !database.ValidDate(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// SQLiteStore keeps snapshots in the chartpulse database.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore returns a store backed by db.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context, date string) ([]chart.Record, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	return s.db.LoadSnapshot(ctx, date)
}

func (s *SQLiteStore) Save(ctx context.Context, records []chart.Record, date string) error {
	if err := checkDate(date); err != nil {
		return err
	}
	return s.db.SaveSnapshot(ctx, date, records)
}

func (s *SQLiteStore) Dates(ctx context.Context) ([]string, error) {
	return s.db.SnapshotDates(ctx)
}

// MemoryStore is an in-process Store, used for dry runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]chart.Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string][]chart.Record)}
}

func (s *MemoryStore) Load(_ context.Context, date string) ([]chart.Record, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chart.Record, len(s.snaps[date]))
	copy(out, s.snaps[date])
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, records []chart.Record, date string) error {
	if err := checkDate(date); err != nil {
		return err
	}
	cp := make([]chart.Record, len(records))
	copy(cp, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[date] = cp
	return nil
}

func (s *MemoryStore) Dates(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates := make([]string, 0, len(s.snaps))
	for d := range s.snaps {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}
