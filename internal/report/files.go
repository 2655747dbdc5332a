package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/chartpulse/internal/analyze"
	"github.com/TobiSchelling/chartpulse/internal/chart"
)

// Writer writes report files under a base directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a report writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the base directory.
func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return os.Create(path)
}

func (w *Writer) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (w *Writer) writeCSV(path string, fn func(f *os.File) error) error {
	f, err := w.create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// WriteDaily writes the daily report directory: charts.csv, changes.csv and
// analysis.md. Returns the directory path.
func (w *Writer) WriteDaily(date string, records []chart.Record, changes []chart.Change, analysis string) (string, error) {
	dir := filepath.Join(w.dir, "daily", date)

	if err := w.writeCSV(filepath.Join(dir, "charts.csv"), func(f *os.File) error {
		return WriteChartsCSV(f, records)
	}); err != nil {
		return "", err
	}
	if err := w.writeCSV(filepath.Join(dir, "changes.csv"), func(f *os.File) error {
		return WriteChangesCSV(f, changes)
	}); err != nil {
		return "", err
	}

	info := fmt.Sprintf("# Daily report %s\n\n- Records: %d\n- Changes: %d\n- Generated: %s\n\n%s\n",
		date, len(records), len(changes), w.now().UTC().Format("2006-01-02 15:04 UTC"), analysis)
	if err := w.writeFile(filepath.Join(dir, "analysis.md"), []byte(info)); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteWeekly writes the weekly report directory: top10.csv (latest entries
// ranked 1-10), changes.csv (the whole week) and summary.md.
func (w *Writer) WriteWeekly(date string, changes []chart.Change, latest []chart.Record, summary string) (string, error) {
	dir := filepath.Join(w.dir, "weekly", date)

	var top []chart.Record
	for _, r := range latest {
		if r.Rank >= 1 && r.Rank <= 10 {
			top = append(top, r)
		}
	}
	if err := w.writeCSV(filepath.Join(dir, "top10.csv"), func(f *os.File) error {
		return WriteChartsCSV(f, top)
	}); err != nil {
		return "", err
	}
	if err := w.writeCSV(filepath.Join(dir, "changes.csv"), func(f *os.File) error {
		return WriteChangesCSV(f, changes)
	}); err != nil {
		return "", err
	}
	if err := w.writeFile(filepath.Join(dir, "summary.md"), []byte(summary+"\n")); err != nil {
		return "", err
	}
	return dir, nil
}

// Latest is the dashboard's latest.json document.
type Latest struct {
	Date       string         `json:"date"`
	Total      int            `json:"total"`
	Regions    int            `json:"regions"`
	Changes    int            `json:"changes"`
	NewEntries int            `json:"new_entries"`
	Data       []chart.Record `json:"data"`
}

// LatestChanges is the dashboard's latest_changes.json document.
type LatestChanges struct {
	Date    string         `json:"date"`
	Changes []chart.Change `json:"changes"`
}

// LatestAnalysis is the dashboard's latest_analysis.json document.
type LatestAnalysis struct {
	Date string `json:"date"`
	*analyze.Analysis
	ChartSummary string `json:"chart_summary,omitempty"`
}

// WriteDashboard writes latest.json, latest_changes.json and
// latest_analysis.json into <dir>/dashboard.
func (w *Writer) WriteDashboard(date string, records []chart.Record, changes []chart.Change, analysis *analyze.Analysis, chartSummary string) error {
	regions := make(map[string]struct{})
	for _, r := range records {
		regions[r.DisplayRegion()] = struct{}{}
	}
	newEntries := 0
	for _, c := range changes {
		if c.ChangeType == chart.NewEntry {
			newEntries++
		}
	}
	if records == nil {
		records = []chart.Record{}
	}
	if changes == nil {
		changes = []chart.Change{}
	}

	dir := filepath.Join(w.dir, "dashboard")
	docs := []struct {
		name string
		v    any
	}{
		{"latest.json", Latest{Date: date, Total: len(records), Regions: len(regions),
			Changes: len(changes), NewEntries: newEntries, Data: records}},
		{"latest_changes.json", LatestChanges{Date: date, Changes: changes}},
		{"latest_analysis.json", LatestAnalysis{Date: date, Analysis: analysis, ChartSummary: chartSummary}},
	}
	for _, d := range docs {
		data, err := json.MarshalIndent(d.v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", d.name, err)
		}
		if err := w.writeFile(filepath.Join(dir, d.name), data); err != nil {
			return fmt.Errorf("writing %s: %w", d.name, err)
		}
	}
	return nil
}
