package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/database"
)

// FileStore keeps one JSON document per date under <dir>/<date>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a store writing into dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(date string) string {
	return filepath.Join(s.dir, date+".json")
}

func (s *FileStore) Load(_ context.Context, date string) ([]chart.Record, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return []chart.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", date, err)
	}

	records := []chart.Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", date, err)
	}
	return records, nil
}

// Save writes to a temporary file and renames it over the target, so a
// crashed save never leaves a truncated snapshot behind.
func (s *FileStore) Save(_ context.Context, records []chart.Record, date string) error {
	if err := checkDate(date); err != nil {
		return err
	}
	if records == nil {
		records = []chart.Record{}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", date, err)
	}

	tmp, err := os.CreateTemp(s.dir, date+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot %s: %w", date, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot %s: %w", date, err)
	}
	if err := os.Rename(tmp.Name(), s.path(date)); err != nil {
		return fmt.Errorf("replacing snapshot %s: %w", date, err)
	}
	return nil
}

func (s *FileStore) Dates(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		date := strings.TrimSuffix(name, ".json")
		if database.ValidDate(date) {
			dates = append(dates, date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}
