package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/chartpulse/internal/analyze"
	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/collect"
	"github.com/TobiSchelling/chartpulse/internal/database"
	"github.com/TobiSchelling/chartpulse/internal/diff"
	"github.com/TobiSchelling/chartpulse/internal/pipeline"
	"github.com/TobiSchelling/chartpulse/internal/report"
	"github.com/TobiSchelling/chartpulse/internal/snapshot"
)

var runDate string

func resolveDate() (string, error) {
	if runDate == "" {
		return database.GetToday(), nil
	}
	if !database.ValidDate(runDate) {
		return "", fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", runDate)
	}
	return runDate, nil
}

// withPipeline opens storage, builds the pipeline and hands it to fn.
func withPipeline(fn func(p *pipeline.Pipeline) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := openStore(db)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(pipeline.New(cfg, pipeline.Options{DB: db, Store: store, Logger: logger}))
}

func printResult(r *pipeline.Result) {
	for i, step := range r.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(r.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

// --- collect command ---

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect today's charts and save the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := resolveDate()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, closeStore, err := openStore(db)
		if err != nil {
			return err
		}
		defer closeStore()

		fmt.Printf("Collecting charts for %s...\n", date)
		result := collect.NewCollector(cfg, logger).CollectCharts(cmd.Context(), date)

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Charts: %d (%d failed)\n", result.Charts, result.Failed)
		fmt.Printf("  Records: %d\n", len(result.Records))
		if len(result.ByStore) > 0 {
			fmt.Println("\nRecords by store:")
			for _, s := range []chart.Store{chart.AppStore, chart.GooglePlay} {
				if n, ok := result.ByStore[s]; ok {
					fmt.Printf("  %s: %d\n", s.Label(), n)
				}
			}
		}

		if len(result.Records) == 0 {
			return pipeline.ErrNoRecords
		}
		if err := store.Save(cmd.Context(), result.Records, date); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		fmt.Printf("\nSaved snapshot for %s\n", date)

		if collectLeaders {
			fmt.Println("\nChart leaders:")
			for _, line := range analyze.ChartDigestLines(result.Records) {
				fmt.Println("  " + line)
			}
		}
		return nil
	},
}

var collectLeaders bool

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily pipeline: collect -> news -> save -> detect -> analyze -> report -> notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := resolveDate()
		if err != nil {
			return err
		}
		return withPipeline(func(p *pipeline.Pipeline) error {
			var result *pipeline.Result
			if dryRun {
				result = p.DryRun(cmd.Context(), date)
			} else {
				result = p.Daily(cmd.Context(), date)
			}
			printResult(result)

			if !dryRun {
				fmt.Printf("\nPipeline complete for %s: %d changes, %d failed step(s).\n",
					date, len(result.Changes), result.Failed())
				fmt.Println("Run 'chartpulse serve' to browse the results.")
			}
			return nil
		})
	},
}

// --- weekly command ---

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Build the weekly report from the last seven days of snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := resolveDate()
		if err != nil {
			return err
		}
		return withPipeline(func(p *pipeline.Pipeline) error {
			result := p.Weekly(cmd.Context(), date)
			printResult(result)
			fmt.Printf("\nWeekly report complete for the week ending %s.\n", date)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{collectCmd, runCmd, weeklyCmd} {
		c.Flags().StringVar(&runDate, "date", "", "Snapshot date (YYYY-MM-DD, default today)")
	}
	collectCmd.Flags().BoolVar(&collectLeaders, "leaders", false, "Print the top five of every chart after saving")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- diff command ---

var (
	diffCSV bool
	diffTop bool
)

var diffCmd = &cobra.Command{
	Use:   "diff [date] [previous]",
	Short: "Compare two stored snapshots (default: latest against the day before)",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, closeStore, err := openStore(db)
		if err != nil {
			return err
		}
		defer closeStore()

		date, previous, err := diffDates(cmd.Context(), store, args)
		if err != nil {
			return err
		}

		today, err := store.Load(cmd.Context(), date)
		if err != nil {
			return err
		}
		yesterday, err := store.Load(cmd.Context(), previous)
		if err != nil {
			return err
		}
		if len(yesterday) == 0 {
			logger.Sugar().Warnf("no snapshot for %s: every record will be a new entry", previous)
		}

		engine := diff.New(diff.Options{
			Threshold: cfg.Detection.Threshold,
			TopN:      cfg.Detection.TopN,
			Logger:    logger,
		})
		result := engine.Detect(today, yesterday)
		changes := result.Changes
		if diffTop {
			changes = engine.TopMovers(changes)
		}

		if diffCSV {
			return report.WriteChangesCSV(os.Stdout, changes)
		}

		counts := diff.CountByType(result.Changes)
		fmt.Printf("%s vs %s: %d records vs %d\n", date, previous, len(today), len(yesterday))
		fmt.Printf("%d changes (%d new, %d dropped, %d rising, %d falling), %d malformed, %d duplicates\n\n",
			len(result.Changes), counts[chart.NewEntry], counts[chart.Dropped], counts[chart.Rising], counts[chart.Falling],
			result.Warnings.Malformed, result.Warnings.Duplicates)
		for _, c := range changes {
			fmt.Println(analyze.ChangeLine(c))
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffCSV, "csv", false, "Write changes as CSV to stdout")
	diffCmd.Flags().BoolVar(&diffTop, "top", false, "Only show top movers")
}

func diffDates(ctx context.Context, store snapshot.Store, args []string) (string, string, error) {
	var date string
	switch {
	case len(args) > 0:
		date = args[0]
	default:
		dates, err := store.Dates(ctx)
		if err != nil {
			return "", "", err
		}
		if len(dates) == 0 {
			return "", "", fmt.Errorf("no snapshots stored yet; run 'chartpulse collect' first")
		}
		date = dates[0]
	}
	if !database.ValidDate(date) {
		return "", "", fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}

	previous := database.PreviousDay(date)
	if len(args) > 1 {
		previous = args[1]
		if !database.ValidDate(previous) {
			return "", "", fmt.Errorf("invalid date %q (want YYYY-MM-DD)", previous)
		}
	}
	return date, previous, nil
}

// --- snapshots command ---

var snapshotsLimit int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, closeStore, err := openStore(db)
		if err != nil {
			return err
		}
		defer closeStore()

		dates, err := store.Dates(cmd.Context())
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			fmt.Println("No snapshots stored. Collect one with: chartpulse collect")
			return nil
		}
		if snapshotsLimit > 0 && len(dates) > snapshotsLimit {
			dates = dates[:snapshotsLimit]
		}

		fmt.Println("Snapshots:")
		for _, d := range dates {
			records, err := store.Load(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Printf("  %s  %5d records\n", d, len(records))
		}
		return nil
	},
}

func init() {
	snapshotsCmd.Flags().IntVarP(&snapshotsLimit, "limit", "n", 14, "Number of most recent snapshots to list")
}
