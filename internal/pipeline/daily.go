package pipeline

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/analyze"
	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/collect"
	"github.com/TobiSchelling/chartpulse/internal/database"
	"github.com/TobiSchelling/chartpulse/internal/diff"
	"github.com/TobiSchelling/chartpulse/internal/metrics"
	"github.com/TobiSchelling/chartpulse/internal/report"
)

const dailySteps = 7

// Daily runs collect, news, save, detect, analyze, report and notify for date.
// Collection and save failures stop the run; later steps degrade instead.
func (p *Pipeline) Daily(ctx context.Context, date string) *Result {
	r := p.newResult(KindDaily, date)
	defer p.finish(ctx, r)

	// Step 1: Collect
	var records []chart.Record
	err := p.step(r, 1, dailySteps, "Collect", func() (string, error) {
		res := p.source.CollectCharts(ctx, date)
		records = res.Records
		if len(records) == 0 {
			return fmt.Sprintf("0 records from %d charts", res.Charts), ErrNoRecords
		}
		return fmt.Sprintf("Collected %d records from %d charts (%d failed)",
			len(records), res.Charts, res.Failed), nil
	})
	if err != nil {
		return r
	}
	r.Records = len(records)

	// Step 2: News
	var news []collect.NewsEntry
	p.step(r, 2, dailySteps, "News", func() (string, error) {
		news = p.source.CollectNews(ctx)
		stored, err := p.storeNews(ctx, date, news)
		if err != nil {
			return "", err
		}
		summary := fmt.Sprintf("Collected %d news items (%d new)", len(news), stored)
		if p.fetcher != nil {
			fr, err := p.fetcher.FetchMissingContent(ctx, date)
			if err != nil {
				return summary, err
			}
			summary += fmt.Sprintf(", fetched %d articles (%d failed)", fr.Fetched, fr.Failed)
		}
		return summary, nil
	})

	// Step 3: Save
	previousDate := database.PreviousDay(date)
	var previous []chart.Record
	err = p.step(r, 3, dailySteps, "Save", func() (string, error) {
		var err error
		previous, err = p.store.Load(ctx, previousDate)
		if err != nil {
			return "", fmt.Errorf("loading snapshot %s: %w", previousDate, err)
		}
		if err := p.store.Save(ctx, records, date); err != nil {
			return "", fmt.Errorf("saving snapshot %s: %w", date, err)
		}
		metrics.LastSnapshotRecords.Set(float64(len(records)))
		return fmt.Sprintf("Saved %d records for %s (previous %s: %d records)",
			len(records), date, previousDate, len(previous)), nil
	})
	if err != nil {
		return r
	}

	// Step 4: Detect
	p.step(r, 4, dailySteps, "Detect", func() (string, error) {
		if len(previous) == 0 {
			return fmt.Sprintf("No snapshot for %s, first run: detection skipped", previousDate), nil
		}
		res := p.engine.Detect(records, previous)
		r.Changes = res.Changes
		r.Top = p.engine.TopMovers(res.Changes)

		counts := diff.CountByType(res.Changes)
		for t, n := range counts {
			metrics.ChangesDetected.WithLabelValues(string(t)).Add(float64(n))
		}
		metrics.SkippedRecords.WithLabelValues("malformed").Add(float64(res.Warnings.Malformed))
		metrics.SkippedRecords.WithLabelValues("duplicate").Add(float64(res.Warnings.Duplicates))

		return fmt.Sprintf("%d changes: %d new, %d dropped, %d rising, %d falling (%d skipped)",
			len(res.Changes), counts[chart.NewEntry], counts[chart.Dropped], counts[chart.Rising],
			counts[chart.Falling], res.Warnings.Malformed+res.Warnings.Duplicates), nil
	})

	// Step 5: Analyze
	var analysis *analyze.Analysis
	p.step(r, 5, dailySteps, "Analyze", func() (string, error) {
		analysis = p.analyzer.AnalyzeChanges(ctx, date, r.Top, news)
		if !p.analyzer.Available() {
			return "No model configured, data-only analysis", nil
		}
		return fmt.Sprintf("Analysis with %d rising, %d falling, %d new highlights",
			len(analysis.Rising), len(analysis.Falling), len(analysis.NewEntries)), nil
	})

	// Step 6: Report
	analysisMD := analysis.Markdown()
	summary := analyze.ChartSummary(records, date)
	r.Digest = report.DailyDigest(r.Top, len(r.Changes), analysisMD, date)
	p.step(r, 6, dailySteps, "Report", func() (string, error) {
		dir, err := p.reports.WriteDaily(date, records, r.Changes, analysisMD+"\n\n"+summary)
		if err != nil {
			return "", err
		}
		if err := p.reports.WriteDashboard(date, records, r.Changes, analysis, summary); err != nil {
			return "", err
		}
		if err := p.storeAnalysis(ctx, KindDaily, date, analysis, r.Digest, len(r.Changes), len(r.Top)); err != nil {
			return "", fmt.Errorf("storing analysis: %w", err)
		}
		return "Report written to " + dir, nil
	})

	// Step 7: Notify
	p.step(r, 7, dailySteps, "Notify", func() (string, error) {
		return p.send(ctx, "Mobile game charts "+date, r.Digest)
	})

	return r
}

func (p *Pipeline) storeNews(ctx context.Context, date string, news []collect.NewsEntry) (int, error) {
	if p.db == nil {
		return 0, nil
	}
	stored := 0
	for _, n := range news {
		item := database.NewsItem{
			URL:           n.URL,
			Title:         n.Title,
			Source:        n.Source,
			Description:   n.Description,
			CollectedDate: date,
		}
		if ts := n.PublishedString(); ts != "" {
			item.PublishedAt = &ts
		}
		id, err := p.db.InsertNewsItem(ctx, item)
		if err != nil {
			return stored, fmt.Errorf("storing news %s: %w", n.URL, err)
		}
		if id > 0 {
			stored++
		}
	}
	return stored, nil
}

// DryRun reports what a daily run for date would do without fetching or
// writing anything.
func (p *Pipeline) DryRun(ctx context.Context, date string) *Result {
	r := &Result{Date: date, Kind: KindDaily}

	charts := 0
	if p.cfg.AppStore.Enabled {
		charts += len(p.cfg.Regions) * len(p.cfg.AppStore.Charts)
	}
	if p.cfg.GooglePlay.Enabled {
		charts += len(p.cfg.Regions) * len(p.cfg.GooglePlay.Charts)
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] Would fetch %d charts across %d regions", charts, len(p.cfg.Regions)),
	})

	newsSummary := "[dry-run] News disabled"
	if p.cfg.News.Enabled {
		newsSummary = fmt.Sprintf("[dry-run] Would read %d news feeds", len(p.cfg.News.Feeds))
		if p.cfg.News.NewsAPI.APIKeyEnv != "" && os.Getenv(p.cfg.News.NewsAPI.APIKeyEnv) != "" {
			newsSummary += " and search NewsAPI"
		}
	}
	r.Steps = append(r.Steps, StepResult{Name: "News", Summary: newsSummary})

	existing, err := p.store.Load(ctx, date)
	saveSummary := fmt.Sprintf("[dry-run] Would save a new snapshot for %s", date)
	if len(existing) > 0 {
		saveSummary = fmt.Sprintf("[dry-run] Would replace the %d-record snapshot for %s", len(existing), date)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Save", Summary: saveSummary, Err: err})

	previousDate := database.PreviousDay(date)
	previous, err := p.store.Load(ctx, previousDate)
	detectSummary := fmt.Sprintf("[dry-run] No snapshot for %s, detection would be skipped", previousDate)
	if len(previous) > 0 {
		detectSummary = fmt.Sprintf("[dry-run] Would compare against %d records from %s", len(previous), previousDate)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Detect", Summary: detectSummary, Err: err})

	analyzeSummary := "[dry-run] No model configured, data-only analysis"
	if p.analyzer.Available() {
		analyzeSummary = "[dry-run] Would generate a model analysis"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Analyze", Summary: analyzeSummary})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Report",
		Summary: fmt.Sprintf("[dry-run] Would write reports under %s", p.reports.Dir()),
	})

	notifySummary := "[dry-run] No notification channel configured"
	if p.notifier.Enabled() {
		notifySummary = "[dry-run] Would send the daily digest"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Notify", Summary: notifySummary})

	p.logger.Debug("dry run complete", zap.String("date", date))
	return r
}
