package pipeline

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/chartpulse/internal/analyze"
	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/database"
	"github.com/TobiSchelling/chartpulse/internal/diff"
	"github.com/TobiSchelling/chartpulse/internal/report"
)

const (
	weekDays    = 7
	weeklySteps = 4
)

type weeklyRecord struct {
	Summary string         `json:"summary"`
	Days    []string       `json:"days"`
	Movers  []moverCount   `json:"movers"`
	Counts  map[string]int `json:"counts"`
}

type moverCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Weekly compares each of the seven days ending at date with its previous
// day, then summarizes, reports and notifies. Days missing either snapshot
// are skipped.
func (p *Pipeline) Weekly(ctx context.Context, date string) *Result {
	r := p.newResult(KindWeekly, date)
	defer p.finish(ctx, r)

	// Step 1: Detect
	var compared []string
	var latest []chart.Record
	err := p.step(r, 1, weeklySteps, "Detect", func() (string, error) {
		for _, day := range database.LastNDays(date, weekDays) {
			today, err := p.store.Load(ctx, day)
			if err != nil {
				return "", fmt.Errorf("loading snapshot %s: %w", day, err)
			}
			if len(today) > 0 {
				latest = today
			}
			yesterday, err := p.store.Load(ctx, database.PreviousDay(day))
			if err != nil {
				return "", fmt.Errorf("loading snapshot %s: %w", database.PreviousDay(day), err)
			}
			if len(today) == 0 || len(yesterday) == 0 {
				continue
			}
			r.Changes = append(r.Changes, p.engine.Detect(today, yesterday).Changes...)
			compared = append(compared, day)
		}
		r.Records = len(latest)
		return fmt.Sprintf("%d changes across %d comparable days", len(r.Changes), len(compared)), nil
	})
	if err != nil {
		return r
	}

	// Step 2: Summarize
	var summary string
	p.step(r, 2, weeklySteps, "Summarize", func() (string, error) {
		summary = p.analyzer.WeeklySummary(ctx, date, r.Changes, latest)
		if !p.analyzer.Available() {
			return "No model configured, data-only summary", nil
		}
		return "Weekly summary generated", nil
	})
	r.Digest = report.WeeklyDigest(summary, date)

	// Step 3: Report
	p.step(r, 3, weeklySteps, "Report", func() (string, error) {
		dir, err := p.reports.WriteWeekly(date, r.Changes, latest, summary)
		if err != nil {
			return "", err
		}
		rec := weeklyRecord{Summary: summary, Days: compared, Counts: make(map[string]int)}
		for _, m := range analyze.FrequentMovers(r.Changes, 10) {
			rec.Movers = append(rec.Movers, moverCount{Name: m.Name, Count: m.Count})
		}
		for t, n := range diff.CountByType(r.Changes) {
			rec.Counts[string(t)] = n
		}
		if err := p.storeAnalysis(ctx, KindWeekly, date, rec, r.Digest, len(r.Changes), len(rec.Movers)); err != nil {
			return "", fmt.Errorf("storing weekly analysis: %w", err)
		}
		return "Weekly report written to " + dir, nil
	})

	// Step 4: Notify
	p.step(r, 4, weeklySteps, "Notify", func() (string, error) {
		return p.send(ctx, "Mobile game market weekly "+date, r.Digest)
	})

	return r
}
